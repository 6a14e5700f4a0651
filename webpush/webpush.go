// Package webpush delivers push payloads to browser push services
// using VAPID authentication.
package webpush

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/mesahub/mesa/types"
)

// ErrTokenGone reports that the push service no longer knows the
// subscription. The token is dead and should be deactivated.
var ErrTokenGone = errors.New("webpush: subscription gone")

type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact the push service may use to reach the
	// operator, a mailto: or https: URL.
	Subscriber string
}

type Client struct {
	conf Config
}

func NewClient(conf Config) *Client {
	return &Client{conf: conf}
}

// Enabled reports whether VAPID credentials were configured.
// A disabled client makes Send fail, nothing else.
func (c *Client) Enabled() bool {
	return c.conf.VAPIDPublicKey != "" && c.conf.VAPIDPrivateKey != ""
}

func (c *Client) Send(ctx context.Context, token types.PushToken, payload []byte, priority types.NotificationPriority) error {
	if !c.Enabled() {
		return errors.New("webpush: VAPID credentials not configured")
	}

	sub := &webpush.Subscription{
		Endpoint: token.Endpoint,
		Keys: webpush.Keys{
			P256dh: token.P256dh,
			Auth:   token.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, sub, &webpush.Options{
		Subscriber:      c.conf.Subscriber,
		VAPIDPublicKey:  c.conf.VAPIDPublicKey,
		VAPIDPrivateKey: c.conf.VAPIDPrivateKey,
		TTL:             ttlFor(priority),
		Urgency:         urgencyFor(priority),
	})
	if err != nil {
		return fmt.Errorf("webpush: send notification: %w", err)
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrTokenGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("webpush: push service responded with %s", resp.Status)
	}

	return nil
}

func urgencyFor(p types.NotificationPriority) webpush.Urgency {
	switch p {
	case types.NotificationPriorityLow:
		return webpush.UrgencyLow
	case types.NotificationPriorityHigh, types.NotificationPriorityUrgent:
		return webpush.UrgencyHigh
	}
	return webpush.UrgencyNormal
}

func ttlFor(p types.NotificationPriority) int {
	// Low priority notifications may wait out a long offline window,
	// urgent ones are stale after a few minutes.
	switch p {
	case types.NotificationPriorityLow:
		return 60 * 60 * 24
	case types.NotificationPriorityUrgent:
		return 60 * 5
	}
	return 60 * 60
}
