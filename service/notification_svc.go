package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mesahub/mesa/auth"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/textutil"
	"github.com/mesahub/mesa/types"
	"github.com/vmihailenco/msgpack/v5"
)

const notificationBodyLength = 120

func notificationTopic(userID string) string {
	return "notifications." + userID
}

// notifyNewMessage fans one message out to every active, unmuted
// participant except the sender. Each recipient gets an in-app
// notification, a realtime broadcast, and a best-effort push.
func (svc *Service) notifyNewMessage(ctx context.Context, msg types.Message, sender types.User) error {
	body := textutil.Truncate(msg.Content, notificationBodyLength)
	if body == "" && msg.Media != nil {
		body = "[" + msg.Media.Type.String() + "]"
	}

	nn, err := svc.Cockroach.CreateMessageNotifications(ctx, types.FanoutMessageNotifications{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Title:          sender.DisplayName(),
		Body:           body,
		Priority:       types.NotificationPriorityNormal,
	})
	if err != nil {
		return err
	}

	notificationFanoutsTotal.Inc()

	for _, n := range nn {
		svc.broadcastNotification(n)

		if _, err := svc.dispatchPush(ctx, n); err != nil {
			svc.Logger.Error("push dispatch failed", "notificationID", n.ID, "error", err)
		}
	}

	return nil
}

func (svc *Service) broadcastNotification(n types.Notification) {
	b, err := msgpack.Marshal(n)
	if err != nil {
		svc.Logger.Error("could not encode notification for broadcast", "error", err)
		return
	}

	if err := svc.PubSub.Pub(notificationTopic(n.UserID), b); err != nil {
		svc.Logger.Error("could not broadcast notification", "error", err)
	}
}

// SendNotification creates a notification for one recipient and
// dispatches push synchronously, reporting the delivery outcome.
func (svc *Service) SendNotification(ctx context.Context, in types.CreateNotification) (types.NotificationDelivery, error) {
	var out types.NotificationDelivery

	if err := in.Validate(); err != nil {
		return out, err
	}

	if _, loggedIn := auth.UserFromContext(ctx); !loggedIn {
		return out, errs.Unauthenticated
	}

	exists, err := svc.Cockroach.UserExists(ctx, in.RecipientID)
	if err != nil {
		return out, err
	}
	if !exists {
		return out, errs.NewNotFoundError("recipient not found")
	}

	n, err := svc.Cockroach.CreateNotification(ctx, in)
	if err != nil {
		return out, err
	}

	svc.broadcastNotification(n)

	return svc.dispatchPush(ctx, n)
}

func (svc *Service) Notifications(ctx context.Context, in types.ListNotifications) (types.Page[types.Notification], error) {
	var out types.Page[types.Notification]

	if err := in.PageArgs.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetUserID(loggedInUser.ID)

	return svc.Cockroach.Notifications(ctx, in)
}

func (svc *Service) ReadNotification(ctx context.Context, in types.ReadNotification) (types.Notification, error) {
	var out types.Notification

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetUserID(loggedInUser.ID)

	return svc.Cockroach.ReadNotification(ctx, in)
}

func (svc *Service) ReadNotifications(ctx context.Context) error {
	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return errs.Unauthenticated
	}

	return svc.Cockroach.ReadNotifications(ctx, loggedInUser.ID)
}

func (svc *Service) HasUnreadNotifications(ctx context.Context) (bool, error) {
	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return false, errs.Unauthenticated
	}

	return svc.Cockroach.HasUnreadNotifications(ctx, loggedInUser.ID)
}

// NotificationStream delivers the authenticated user's notifications
// in realtime until ctx is done.
func (svc *Service) NotificationStream(ctx context.Context) (<-chan types.Notification, error) {
	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return nil, errs.Unauthenticated
	}

	nn := make(chan types.Notification)

	// Callbacks may still be in flight when the subscription ends, so
	// the channel close is fenced behind the same mutex as the sends.
	var mu sync.Mutex
	closed := false

	unsub, err := svc.PubSub.Sub(notificationTopic(loggedInUser.ID), func(data []byte) {
		var n types.Notification
		if err := msgpack.Unmarshal(data, &n); err != nil {
			svc.Logger.Error("could not decode streamed notification", "error", err)
			return
		}

		mu.Lock()
		defer mu.Unlock()

		if closed {
			return
		}

		select {
		case nn <- n:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to notifications: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := unsub(); err != nil {
			svc.Logger.Error("could not unsubscribe from notifications", "error", err)
		}

		mu.Lock()
		closed = true
		close(nn)
		mu.Unlock()
	}()

	return nn, nil
}

func (svc *Service) RegisterPushToken(ctx context.Context, in types.RegisterPushToken) (types.PushToken, error) {
	var out types.PushToken

	if err := in.Validate(); err != nil {
		return out, err
	}

	loggedInUser, loggedIn := auth.UserFromContext(ctx)
	if !loggedIn {
		return out, errs.Unauthenticated
	}

	in.SetLoggedInUserID(loggedInUser.ID)

	return svc.Cockroach.UpsertPushToken(ctx, in)
}
