package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/nicolasparada/go-db"

	"github.com/jackc/pgx/v5"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/textutil"
	"github.com/mesahub/mesa/types"
)

// messagePreviewLength bounds the conversation's last-message summary.
const messagePreviewLength = 120

const insertMessageQuery = `
	INSERT INTO messages (id, conversation_id, sender_id, content, message_type, media, reply_to_message_id, metadata)
	VALUES (@message_id, @conversation_id, @sender_id, @content, @message_type, @media, @reply_to_message_id, @metadata)
	RETURNING *
`

const updateSummaryQuery = `
	UPDATE conversations
	SET last_message_preview = @preview,
		last_message_sender_id = @sender_id,
		last_message_at = @last_message_at,
		messages_count = (SELECT count(*) FROM messages WHERE conversation_id = @conversation_id),
		updated_at = NOW()
	WHERE id = @conversation_id
`

// CreateMessageSafely is the primary write path: membership check,
// message insert and conversation summary reconcile in one retryable
// transaction.
func (c *Cockroach) CreateMessageSafely(ctx context.Context, in types.SendMessage, conversationID string) (types.Message, error) {
	var out types.Message

	err := c.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var senderActive bool
		err := tx.QueryRow(ctx, `
			SELECT active FROM conversation_participants
			WHERE conversation_id = @conversation_id
				AND user_id = @sender_id
		`, pgx.StrictNamedArgs{
			"conversation_id": conversationID,
			"sender_id":       in.LoggedInUserID(),
		}).Scan(&senderActive)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !senderActive) {
			return errs.NewPermissionDeniedError("not a participant of this conversation")
		}

		if err != nil {
			return fmt.Errorf("sql select sender membership: %w", err)
		}

		rows, err := tx.Query(ctx, insertMessageQuery, messageInsertArgs(in, conversationID))
		if err != nil {
			return fmt.Errorf("sql insert message: %w", err)
		}

		out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
		if err != nil {
			return fmt.Errorf("sql collect inserted message: %w", err)
		}

		if _, err := tx.Exec(ctx, updateSummaryQuery, summaryArgs(out)); err != nil {
			return fmt.Errorf("sql update conversation summary: %w", err)
		}

		return nil
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

// InsertMessage is the fallback write path: a plain insert with no
// bookkeeping. Callers follow up with UpdateConversationSummary; a
// crash in between leaves the summary stale until the next send, since
// the summary update recounts instead of incrementing.
func (c *Cockroach) InsertMessage(ctx context.Context, in types.SendMessage, conversationID string) (types.Message, error) {
	var out types.Message

	rows, err := c.db.Query(ctx, insertMessageQuery, messageInsertArgs(in, conversationID))
	if err != nil {
		return out, fmt.Errorf("sql insert message: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect inserted message: %w", err)
	}

	return out, nil
}

func (c *Cockroach) UpdateConversationSummary(ctx context.Context, msg types.Message) error {
	if _, err := c.db.Exec(ctx, updateSummaryQuery, summaryArgs(msg)); err != nil {
		return fmt.Errorf("sql update conversation summary: %w", err)
	}

	return nil
}

func messageInsertArgs(in types.SendMessage, conversationID string) pgx.StrictNamedArgs {
	var replyTo *string
	if in.ReplyToMessageID != "" {
		replyTo = &in.ReplyToMessageID
	}

	return pgx.StrictNamedArgs{
		"message_id":          id.Generate(),
		"conversation_id":     conversationID,
		"sender_id":           in.LoggedInUserID(),
		"content":             in.Content,
		"message_type":        in.MessageType,
		"media":               in.Media,
		"reply_to_message_id": replyTo,
		"metadata":            in.Metadata,
	}
}

func summaryArgs(msg types.Message) pgx.StrictNamedArgs {
	preview := textutil.Truncate(msg.Content, messagePreviewLength)
	if preview == "" && msg.Media != nil {
		preview = "[" + msg.Media.Type.String() + "]"
	}

	return pgx.StrictNamedArgs{
		"conversation_id": msg.ConversationID,
		"preview":         preview,
		"sender_id":       msg.SenderID,
		"last_message_at": msg.CreatedAt,
	}
}

// MessageConversationID resolves which conversation a message belongs
// to. Reply references are validated with it.
func (c *Cockroach) MessageConversationID(ctx context.Context, messageID string) (string, error) {
	var conversationID string

	err := c.db.QueryRow(ctx, `
		SELECT conversation_id FROM messages WHERE id = $1
	`, messageID).Scan(&conversationID)
	if errors.Is(err, pgx.ErrNoRows) || db.IsNotFoundError(err) {
		return "", errs.NewNotFoundError("message not found")
	}

	if err != nil {
		return "", fmt.Errorf("sql select message conversation: %w", err)
	}

	return conversationID, nil
}

func (c *Cockroach) Messages(ctx context.Context, in types.ListMessages) (types.Page[types.Message], error) {
	var out types.Page[types.Message]

	pa, err := parsePageArgs(in.PageArgs)
	if err != nil {
		return out, err
	}

	query := `
		SELECT messages.*,
			json_build_object(
				'id', users.id,
				'username', users.username,
				'avatarURL', users.avatar
			) AS sender,
			json_build_object(
				'isMine', messages.sender_id = @user_id
			) AS relationship
		FROM messages
		INNER JOIN users ON messages.sender_id = users.id
		WHERE messages.conversation_id = @conversation_id
	`
	args := pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	}

	query = addPageFilter(query, "messages", args, pa)
	query = addPageOrder(query, "messages", pa)
	query = addPageLimit(query, args, pa)

	rows, err := c.db.Query(ctx, query, args)
	if err != nil {
		return out, fmt.Errorf("sql select messages: %w", err)
	}

	out.Items, err = pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Message])
	if err != nil {
		return out, fmt.Errorf("sql collect messages: %w", err)
	}

	err = applyPageInfo(&out, pa, func(m types.Message) Cursor {
		return Cursor{ID: m.ID, Value: m.CreatedAt}
	})
	if err != nil {
		return out, err
	}

	return out, nil
}
