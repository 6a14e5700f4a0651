package cockroach

import (
	"context"
	"fmt"

	"github.com/nicolasparada/go-db"

	"github.com/jackc/pgx/v5"
	"github.com/mesahub/mesa/errs"
	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/types"
)

// directConversationKey is the sorted participant pair that backs the
// uniqueness constraint guaranteeing one direct conversation per pair.
func directConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// ResolveDirectConversation returns the existing direct conversation
// between the logged in user and the recipient, or creates it together
// with both participant rows in a single transaction. Concurrent
// duplicate calls race on the direct_key unique constraint; the loser
// re-reads and returns the winning row.
func (c *Cockroach) ResolveDirectConversation(ctx context.Context, in types.ResolveConversation) (types.ResolvedConversation, error) {
	var out types.ResolvedConversation

	key := directConversationKey(in.LoggedInUserID(), in.RecipientID)

	existing, found, err := c.directConversationByKey(ctx, key)
	if err != nil {
		return out, err
	}

	if found {
		existing.Existing = true
		return existing, nil
	}

	recipientExists, err := c.UserExists(ctx, in.RecipientID)
	if err != nil {
		return out, err
	}

	if !recipientExists {
		return out, errs.NewNotFoundError("recipient not found")
	}

	err = c.ExecuteTx(ctx, func(tx pgx.Tx) error {
		const q = `
			INSERT INTO conversations (id, kind, created_by, direct_key)
			VALUES (@conversation_id, @kind, @created_by, @direct_key)
			RETURNING id, created_at
		`

		row := tx.QueryRow(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": id.Generate(),
			"kind":            types.ConversationKindDirect,
			"created_by":      in.LoggedInUserID(),
			"direct_key":      key,
		})
		if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
			return fmt.Errorf("sql insert conversation: %w", err)
		}

		const pq = `
			INSERT INTO conversation_participants (conversation_id, user_id, role)
			VALUES (@conversation_id, @sender_id, @role)
				 , (@conversation_id, @recipient_id, @role)
		`

		if _, err := tx.Exec(ctx, pq, pgx.StrictNamedArgs{
			"conversation_id": out.ID,
			"sender_id":       in.LoggedInUserID(),
			"recipient_id":    in.RecipientID,
			"role":            types.ParticipantRoleMember,
		}); err != nil {
			return fmt.Errorf("sql insert participants: %w", err)
		}

		return nil
	})
	if isUniqueViolation(err) {
		// Lost the race. The winning row satisfies this request.
		existing, found, err := c.directConversationByKey(ctx, key)
		if err != nil {
			return out, err
		}

		if !found {
			return out, fmt.Errorf("direct conversation vanished after conflict")
		}

		existing.Existing = true
		return existing, nil
	}

	if err != nil {
		return out, err
	}

	return out, nil
}

func (c *Cockroach) directConversationByKey(ctx context.Context, key string) (types.ResolvedConversation, bool, error) {
	var out types.ResolvedConversation

	const q = `
		SELECT id, created_at
		FROM conversations
		WHERE direct_key = @direct_key
			AND active
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"direct_key": key,
	})
	if err != nil {
		return out, false, fmt.Errorf("sql select direct conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.ResolvedConversation])
	if db.IsNotFoundError(err) {
		return out, false, nil
	}

	if err != nil {
		return out, false, fmt.Errorf("sql collect direct conversation: %w", err)
	}

	return out, true, nil
}

func (c *Cockroach) Conversation(ctx context.Context, in types.RetrieveConversation) (types.Conversation, error) {
	var out types.Conversation

	const q = `
		SELECT conversations.*,
			json_build_object(
				'conversationID', conversation_participants.conversation_id,
				'userID', conversation_participants.user_id,
				'role', conversation_participants.role,
				'active', conversation_participants.active,
				'muted', conversation_participants.muted,
				'joinedAt', conversation_participants.joined_at,
				'updatedAt', conversation_participants.updated_at
			) AS participation
		FROM conversations
		INNER JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id
		WHERE conversations.id = @conversation_id
			AND conversation_participants.user_id = @user_id
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": in.ConversationID,
		"user_id":         in.LoggedInUserID(),
	})
	if err != nil {
		return out, fmt.Errorf("sql select conversation: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.Conversation])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("conversation not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect conversation: %w", err)
	}

	return out, nil
}

func (c *Cockroach) Conversations(ctx context.Context, in types.ListConversations) (types.Page[types.Conversation], error) {
	var out types.Page[types.Conversation]

	pa, err := parsePageArgs(in.PageArgs)
	if err != nil {
		return out, err
	}

	query := `
		SELECT conversations.*,
			json_build_object(
				'conversationID', conversation_participants.conversation_id,
				'userID', conversation_participants.user_id,
				'role', conversation_participants.role,
				'active', conversation_participants.active,
				'muted', conversation_participants.muted,
				'joinedAt', conversation_participants.joined_at,
				'updatedAt', conversation_participants.updated_at
			) AS participation
		FROM conversations
		INNER JOIN conversation_participants ON conversation_participants.conversation_id = conversations.id
		WHERE conversation_participants.user_id = @user_id
			AND conversation_participants.active
			AND conversations.active
	`
	args := pgx.StrictNamedArgs{
		"user_id": in.LoggedInUserID(),
	}

	query = addPageFilter(query, "conversations", args, pa)
	query = addPageOrder(query, "conversations", pa)
	query = addPageLimit(query, args, pa)

	rows, err := c.db.Query(ctx, query, args)
	if err != nil {
		return out, fmt.Errorf("sql select conversations: %w", err)
	}

	out.Items, err = pgx.CollectRows(rows, pgx.RowToStructByNameLax[types.Conversation])
	if err != nil {
		return out, fmt.Errorf("sql collect conversations: %w", err)
	}

	err = applyPageInfo(&out, pa, func(c types.Conversation) Cursor {
		return Cursor{ID: c.ID, Value: c.CreatedAt}
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

// CreateGroupConversation backs multi-party threads. The creator is
// admitted as admin; everyone else joins on send (see EnsureParticipant).
func (c *Cockroach) CreateGroupConversation(ctx context.Context, createdBy string) (types.Created, error) {
	var out types.Created

	err := c.ExecuteTx(ctx, func(tx pgx.Tx) error {
		const q = `
			INSERT INTO conversations (id, kind, created_by)
			VALUES (@conversation_id, @kind, @created_by)
			RETURNING id, created_at
		`

		row := tx.QueryRow(ctx, q, pgx.StrictNamedArgs{
			"conversation_id": id.Generate(),
			"kind":            types.ConversationKindGroup,
			"created_by":      createdBy,
		})
		if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
			return fmt.Errorf("sql insert group conversation: %w", err)
		}

		const pq = `
			INSERT INTO conversation_participants (conversation_id, user_id, role)
			VALUES (@conversation_id, @user_id, @role)
		`

		if _, err := tx.Exec(ctx, pq, pgx.StrictNamedArgs{
			"conversation_id": out.ID,
			"user_id":         createdBy,
			"role":            types.ParticipantRoleAdmin,
		}); err != nil {
			return fmt.Errorf("sql insert group creator participant: %w", err)
		}

		return nil
	})
	if err != nil {
		return out, err
	}

	return out, nil
}

// DeactivateConversation soft-deletes; nothing in this service hard-deletes
// conversations.
func (c *Cockroach) DeactivateConversation(ctx context.Context, conversationID string) error {
	const q = `
		UPDATE conversations
		SET active = false,
			updated_at = NOW()
		WHERE id = @conversation_id
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"conversation_id": conversationID,
	})
	if err != nil {
		return fmt.Errorf("sql deactivate conversation: %w", err)
	}

	return nil
}
