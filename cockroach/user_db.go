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

func (c *Cockroach) UpsertUser(ctx context.Context, in types.UpsertUser) (types.User, error) {
	var out types.User

	const q = `
		INSERT INTO users (id, username)
		VALUES (@user_id, @username)
		ON CONFLICT (username) DO UPDATE
		SET updated_at = NOW()
		RETURNING *
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":  id.Generate(),
		"username": in.Username,
	})
	if err != nil {
		return out, fmt.Errorf("sql upsert user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if err != nil {
		return out, fmt.Errorf("sql collect upserted user: %w", err)
	}

	return out, nil
}

func (c *Cockroach) User(ctx context.Context, in types.RetrieveUser) (types.User, error) {
	var out types.User

	const q = `
		SELECT users.*
		FROM users
		WHERE CASE
			WHEN @user_id != '' THEN users.id = @user_id
			ELSE users.username = @username
		END
	`

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"user_id":  in.UserID,
		"username": in.Username,
	})
	if err != nil {
		return out, fmt.Errorf("sql select user: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.User])
	if db.IsNotFoundError(err) {
		return out, errs.NewNotFoundError("user not found")
	}

	if err != nil {
		return out, fmt.Errorf("sql collect user: %w", err)
	}

	return out, nil
}

func (c *Cockroach) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := c.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM users WHERE id = $1
	)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sql check user exists: %w", err)
	}

	return exists, nil
}
