package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mesahub/mesa/types"
	"github.com/mesahub/mesa/webpush"
	"golang.org/x/sync/errgroup"
)

// PushSender abstracts the push provider so delivery can be faked in
// tests. *webpush.Client is the production implementation.
type PushSender interface {
	Enabled() bool
	Send(ctx context.Context, token types.PushToken, payload []byte, priority types.NotificationPriority) error
}

type pushPayload struct {
	Notification pushNotification `json:"notification"`
	Data         pushData         `json:"data"`
	Hints        pushHints        `json:"hints"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushData struct {
	Type           string `json:"type"`
	NotificationID string `json:"notificationID"`
	Link           string `json:"link"`
	Priority       string `json:"priority"`
}

type pushHints struct {
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	Tag                string `json:"tag,omitempty"`
	RequireInteraction bool   `json:"requireInteraction"`
	Silent             bool   `json:"silent"`
	Vibrate            []int  `json:"vibrate,omitempty"`
}

// vibrationFor maps notification priority to the Notification API
// vibration pattern. Low priority stays still; urgent insists.
func vibrationFor(p types.NotificationPriority) []int {
	switch p {
	case types.NotificationPriorityLow:
		return nil
	case types.NotificationPriorityUrgent:
		return []int{200, 100, 200, 100, 200}
	default:
		return []int{100}
	}
}

// dispatchPush sends one notification to every active device of its
// recipient, at most pushConcurrency sends in flight. Dead tokens are
// deactivated along the way so the registry self-heals, and push_sent
// is stamped once at least one device took the payload.
func (svc *Service) dispatchPush(ctx context.Context, n types.Notification) (types.NotificationDelivery, error) {
	out := types.NotificationDelivery{Success: true, NotificationID: n.ID}

	if svc.WebPush == nil || !svc.WebPush.Enabled() {
		return out, nil
	}

	tokens, err := svc.Cockroach.ActivePushTokens(ctx, n.UserID)
	if err != nil {
		return out, err
	}

	out.Total = len(tokens)
	if out.Total == 0 {
		return out, nil
	}

	payload, err := json.Marshal(pushPayload{
		Notification: pushNotification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: pushData{
			Type:           n.Kind.String(),
			NotificationID: n.ID,
			Link:           n.Link(),
			Priority:       n.Priority.String(),
		},
		Hints: pushHints{
			Icon:               "/icons/" + n.Kind.String() + ".png",
			Badge:              "/icons/badge.png",
			Tag:                n.ID,
			RequireInteraction: n.Priority == types.NotificationPriorityUrgent,
			Silent:             n.Priority == types.NotificationPriorityLow,
			Vibrate:            vibrationFor(n.Priority),
		},
	})
	if err != nil {
		return out, fmt.Errorf("encode push payload: %w", err)
	}

	var (
		mu   sync.Mutex
		sent []string
	)

	var g errgroup.Group
	g.SetLimit(svc.pushConcurrency)

	for _, token := range tokens {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, svc.pushTimeout)
			defer cancel()

			err := svc.WebPush.Send(sendCtx, token, payload, n.Priority)
			switch {
			case errors.Is(err, webpush.ErrTokenGone):
				pushSendsTotal.WithLabelValues(pushOutcomeGone).Inc()
				if err := svc.Cockroach.DeactivatePushToken(ctx, token.ID); err != nil {
					svc.Logger.Error("could not deactivate dead push token", "pushTokenID", token.ID, "error", err)
				}
				mu.Lock()
				out.Failed++
				mu.Unlock()
			case err != nil:
				pushSendsTotal.WithLabelValues(pushOutcomeFailed).Inc()
				svc.Logger.Error("push send failed", "pushTokenID", token.ID, "error", err)
				mu.Lock()
				out.Failed++
				mu.Unlock()
			default:
				pushSendsTotal.WithLabelValues(pushOutcomeSent).Inc()
				mu.Lock()
				out.SentTo++
				sent = append(sent, token.ID)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = g.Wait()

	if err := svc.Cockroach.TouchPushTokens(ctx, sent); err != nil {
		svc.Logger.Error("could not touch push tokens", "error", err)
	}

	if out.SentTo > 0 {
		if err := svc.Cockroach.MarkNotificationPushSent(ctx, n.ID); err != nil {
			return out, err
		}
		out.PushSent = true
	}

	return out, nil
}
