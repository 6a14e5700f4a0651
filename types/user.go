package types

import (
	"strings"
	"time"

	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/validator"
)

type User struct {
	ID        string    `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	AvatarURL *string   `db:"avatar" json:"avatarURL"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DisplayName is what notifications use as their title.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}

type RetrieveUser struct {
	UserID   string
	Username string
}

func (in *RetrieveUser) Validate() error {
	v := validator.New()

	in.Username = strings.TrimSpace(in.Username)

	if in.UserID == "" && in.Username == "" {
		v.AddError("UserID", "User ID or username is required")
	}
	if in.UserID != "" && !id.Valid(in.UserID) {
		v.AddError("UserID", "User ID is invalid")
	}

	return v.AsError()
}

type UpsertUser struct {
	Username string
}

func (in *UpsertUser) Validate() error {
	v := validator.New()

	in.Username = strings.TrimSpace(in.Username)

	if in.Username == "" {
		v.AddError("Username", "Username is required")
	}
	if len(in.Username) > 64 {
		v.AddError("Username", "Username must be at most 64 characters")
	}

	return v.AsError()
}

type Login struct {
	Username string
}

func (in *Login) Validate() error {
	v := validator.New()

	in.Username = strings.TrimSpace(in.Username)

	if in.Username == "" {
		v.AddError("Username", "Username is required")
	}

	return v.AsError()
}

type LoginOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}
