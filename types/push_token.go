package types

import (
	"strings"
	"time"

	"github.com/mesahub/mesa/validator"
)

type PushToken struct {
	ID         string       `db:"id" json:"id"`
	UserID     string       `db:"user_id" json:"userID"`
	Endpoint   string       `db:"endpoint" json:"-"`
	P256dh     string       `db:"p256dh" json:"-"`
	Auth       string       `db:"auth" json:"-"`
	Platform   PushPlatform `db:"platform" json:"platform"`
	DeviceName *string      `db:"device_name" json:"deviceName"`
	Active     bool         `db:"active" json:"active"`
	LastUsedAt *time.Time   `db:"last_used_at" json:"lastUsedAt"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time    `db:"updated_at" json:"updatedAt"`
}

type PushPlatform string

const (
	PushPlatformWeb     PushPlatform = "web"
	PushPlatformAndroid PushPlatform = "android"
	PushPlatformIOS     PushPlatform = "ios"
)

func (p PushPlatform) String() string {
	return string(p)
}

func (p PushPlatform) Valid() bool {
	switch p {
	case PushPlatformWeb, PushPlatformAndroid, PushPlatformIOS:
		return true
	}
	return false
}

type RegisterPushToken struct {
	Endpoint   string
	P256dh     string
	Auth       string
	Platform   PushPlatform
	DeviceName string

	loggedInUserID string
}

func (in *RegisterPushToken) SetLoggedInUserID(userID string) {
	in.loggedInUserID = userID
}

func (in RegisterPushToken) LoggedInUserID() string {
	return in.loggedInUserID
}

func (in *RegisterPushToken) Validate() error {
	v := validator.New()

	in.Endpoint = strings.TrimSpace(in.Endpoint)

	if in.Endpoint == "" {
		v.AddError("Endpoint", "Endpoint is required")
	}
	if in.P256dh == "" {
		v.AddError("P256dh", "P256dh key is required")
	}
	if in.Auth == "" {
		v.AddError("Auth", "Auth secret is required")
	}

	if in.Platform == "" {
		in.Platform = PushPlatformWeb
	}
	if !in.Platform.Valid() {
		v.AddError("Platform", "Platform must be one of: web, android, ios")
	}

	return v.AsError()
}
