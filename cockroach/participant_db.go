package cockroach

import (
	"context"
	"fmt"

	"github.com/nicolasparada/go-db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/types"
)

func (c *Cockroach) Participant(ctx context.Context, conversationID, userID string) (types.Participant, error) {
	var out types.Participant

	const q = `
		SELECT conversation_participants.*
		FROM conversation_participants
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select participant: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Participant])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("participant not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect participant: %w", err)
	}

	return out, nil
}

// EnsureParticipant is the membership gate ahead of a message write.
// Inactive conversations reject everyone. Existing active members of an
// active conversation pass through. Anyone else may join on send,
// but only into an active group conversation; direct conversations
// admit nobody past the two the resolver created.
func (c *Cockroach) EnsureParticipant(ctx context.Context, conversationID, userID string) error {
	return c.db.RunTx(ctx, func(ctx context.Context) error {
		p, err := c.Participant(ctx, conversationID, userID)
		if err != nil && !errs.IsNotFound(err) {
			return err
		}

		returningMember := err == nil

		conversation, err := c.conversationRow(ctx, conversationID)
		if err != nil {
			return err
		}

		if !conversation.Active {
			return errs.NewPermissionDeniedError("conversation is inactive")
		}

		if returningMember && p.Active {
			return nil
		}

		// Returning members rejoin regardless of kind.
		if returningMember {
			return c.reactivateParticipant(ctx, conversationID, userID)
		}

		if conversation.Kind != types.ConversationKindGroup {
			return errs.NewPermissionDeniedError("not a participant of this conversation")
		}

		return c.insertParticipant(ctx, conversationID, userID)
	})
}

func (c *Cockroach) conversationRow(ctx context.Context, conversationID string) (types.Conversation, error) {
	var out types.Conversation

	rows, err := c.db.Query(ctx, `
		SELECT conversations.*
		FROM conversations
		WHERE id = @conversation_id
	`, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation row: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation row: %w", err)
	}

	return out, nil
}

func (c *Cockroach) reactivateParticipant(ctx context.Context, conversationID, userID string) error {
	const q = `
		UPDATE conversation_participants
		SET active = true,
			updated_at = NOW()
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	if err != nil {
		return fmt.Errorf("sql reactivate participant: %w", err)
	}

	return nil
}

func (c *Cockroach) insertParticipant(ctx context.Context, conversationID, userID string) error {
	const q = `
		INSERT INTO conversation_participants (conversation_id, user_id, role)
		VALUES (@conversation_id, @user_id, @role)
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
		"role":            types.ParticipantRoleMember,
	})
	if err != nil {
		return fmt.Errorf("sql insert participant: %w", err)
	}

	return nil
}

func (c *Cockroach) Participants(ctx context.Context, conversationID string) ([]types.Participant, error) {
	const q = `
		SELECT conversation_participants.*
		FROM conversation_participants
		WHERE conversation_id = $1
			AND active
	`

	out, err := pgxutil.Select(ctx, c.db, q, []any{conversationID}, pgx.RowToStructByNameLax[types.Participant])
	if err != nil {
		return nil, fmt.Errorf("sql select participants: %w", err)
	}

	return out, nil
}

// SetParticipantMuted flips per-participant notification muting;
// muted members keep receiving messages but no notifications.
func (c *Cockroach) SetParticipantMuted(ctx context.Context, conversationID, userID string, muted bool) error {
	const q = `
		UPDATE conversation_participants
		SET muted = @muted,
			updated_at = NOW()
		WHERE conversation_id = @conversation_id
			AND user_id = @user_id
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
		"user_id":         userID,
		"muted":           muted,
	})
	if err != nil {
		return fmt.Errorf("sql update participant muted: %w", err)
	}

	return nil
}
