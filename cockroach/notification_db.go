package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/types"
	"github.com/nicolasparada/go-db"
)

// CreateMessageNotifications inserts one notification per active,
// unmuted participant of the conversation, excluding the sender.
// Muted participants keep their unread state untouched on purpose.
func (c *Cockroach) CreateMessageNotifications(ctx context.Context, in types.FanoutMessageNotifications) ([]types.Notification, error) {
	const q = `
		INSERT INTO notifications (id, user_id, kind, title, body, priority, conversation_id, message_id)
		SELECT
			gen_random_uuid()::STRING,
			conversation_participants.user_id,
			@kind,
			@title,
			@body,
			@priority,
			@conversation_id,
			@message_id
		FROM conversation_participants
		WHERE conversation_participants.conversation_id = @conversation_id
			AND conversation_participants.active
			AND NOT conversation_participants.muted
			AND conversation_participants.user_id != @sender_id
		RETURNING *
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"kind":            types.NotificationKindMessage,
		"title":           in.Title,
		"body":            in.Body,
		"priority":        in.Priority,
		"conversation_id": in.ConversationID,
		"message_id":      in.MessageID,
		"sender_id":       in.SenderID,
	})
	if err != nil {
		return nil, fmt.Errorf("sql insert message notifications: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Notification])
	if err != nil {
		return nil, fmt.Errorf("sql collect message notifications: %w", err)
	}

	return out, nil
}

func (c *Cockroach) CreateNotification(ctx context.Context, in types.CreateNotification) (types.Notification, error) {
	var out types.Notification

	const q = `
		INSERT INTO notifications (id, user_id, kind, title, body, priority, conversation_id, message_id)
		VALUES (@notification_id, @user_id, @kind, @title, @body, @priority, @conversation_id, @message_id)
		RETURNING *
	`

	var conversationID, messageID *string
	if in.ConversationID != "" {
		conversationID = &in.ConversationID
	}
	if in.MessageID != "" {
		messageID = &in.MessageID
	}

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"notification_id": id.Generate(),
		"user_id":         in.RecipientID,
		"kind":            in.Kind,
		"title":           in.Title,
		"body":            in.Body,
		"priority":        in.Priority,
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	if err != nil {
		return out, fmt.Errorf("sql insert notification: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Notification])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted notification: %w", err)
	}

	return out, nil
}

// MarkNotificationPushSent flips push_sent exactly once.
// Calling it again is a no-op so retries cannot double-stamp.
func (c *Cockroach) MarkNotificationPushSent(ctx context.Context, notificationID string) error {
	const q = `
		UPDATE notifications
		SET push_sent = true, push_sent_at = now()
		WHERE id = @notification_id
			AND NOT push_sent
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"notification_id": notificationID,
	})
	if err != nil {
		return fmt.Errorf("sql update notification push sent: %w", err)
	}

	return nil
}

func (c *Cockroach) Notifications(ctx context.Context, in types.ListNotifications) (types.Page[types.Notification], error) {
	var out types.Page[types.Notification]

	pa, err := parsePageArgs(in.PageArgs)
	if err != nil {
		return out, err
	}

	query := `
		SELECT notifications.*
		FROM notifications
		WHERE notifications.user_id = @user_id
	`
	args := pgx.StrictNamedArgs{
		"user_id": in.UserID(),
	}

	query = addPageFilter(query, "notifications", args, pa)
	query = addPageOrder(query, "notifications", pa)
	query = addPageLimit(query, args, pa)

	rows, err := c.db.Query(ctx, query, args)
	if err != nil {
		return out, fmt.Errorf("sql select notifications: %w", err)
	}

	out.Items, err = pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Notification])
	if err != nil {
		return out, fmt.Errorf("sql collect notifications: %w", err)
	}

	err = applyPageInfo(&out, pa, func(n types.Notification) Cursor {
		return Cursor{ID: n.ID, Value: n.CreatedAt}
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

func (c *Cockroach) ReadNotification(ctx context.Context, in types.ReadNotification) (types.Notification, error) {
	var out types.Notification

	const q = `
		UPDATE notifications
		SET read_at = now()
		WHERE id = @notification_id
			AND user_id = @user_id
			AND read_at IS NULL
		RETURNING *
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"notification_id": in.NotificationID,
		"user_id":         in.UserID(),
	})
	if err != nil {
		return out, fmt.Errorf("sql update notification read: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Notification])
	if db.IsNotFoundError(err) {
		return c.notification(ctx, in)
	}

	if err != nil {
		return out, fmt.Errorf("sql collect read notification: %w", err)
	}

	return out, nil
}

// notification fetches without touching read_at. ReadNotification falls
// back to it so re-reading an already-read notification stays idempotent.
func (c *Cockroach) notification(ctx context.Context, in types.ReadNotification) (types.Notification, error) {
	var out types.Notification

	const q = `
		SELECT notifications.*
		FROM notifications
		WHERE id = @notification_id
			AND user_id = @user_id
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"notification_id": in.NotificationID,
		"user_id":         in.UserID(),
	})
	if err != nil {
		return out, fmt.Errorf("sql select notification: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Notification])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("notification not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect notification: %w", err)
	}

	return out, nil
}

// ReadConversationNotifications clears the unread state a conversation
// accumulated for one user. Opening the conversation calls this.
func (c *Cockroach) ReadConversationNotifications(ctx context.Context, conversationID, userID string) error {
	const q = `
		UPDATE notifications
		SET read_at = now()
		WHERE user_id = @user_id
			AND conversation_id = @conversation_id
			AND read_at IS NULL
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"user_id":         userID,
		"conversation_id": conversationID,
	})
	if err != nil {
		return fmt.Errorf("sql update conversation notifications read: %w", err)
	}

	return nil
}

func (c *Cockroach) ReadNotifications(ctx context.Context, userID string) error {
	const q = `
		UPDATE notifications
		SET read_at = now()
		WHERE user_id = @user_id
			AND read_at IS NULL
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"user_id": userID,
	})
	if err != nil {
		return fmt.Errorf("sql update notifications read: %w", err)
	}

	return nil
}

func (c *Cockroach) HasUnreadNotifications(ctx context.Context, userID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM notifications
			WHERE user_id = @user_id
				AND read_at IS NULL
		)
	`

	var exists bool
	err := c.db.QueryRow(ctx, q, pgx.StrictNamedArgs{
		"user_id": userID,
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sql select has unread notifications: %w", err)
	}

	return exists, nil
}
