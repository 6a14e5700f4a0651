package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgxutil"
	"github.com/mesahub/mesa/id"
	"github.com/mesahub/mesa/types"
)

// UpsertPushToken registers a device for push delivery. Re-registering
// an endpoint reclaims it for the current user and reactivates it.
func (c *Cockroach) UpsertPushToken(ctx context.Context, in types.RegisterPushToken) (types.PushToken, error) {
	var out types.PushToken

	const q = `
		INSERT INTO push_tokens (id, user_id, endpoint, p256dh, auth, platform, device_name)
		VALUES (@push_token_id, @user_id, @endpoint, @p256dh, @auth, @platform, @device_name)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			platform = excluded.platform,
			device_name = excluded.device_name,
			active = true,
			updated_at = now()
		RETURNING *
	`

	var deviceName *string
	if in.DeviceName != "" {
		deviceName = &in.DeviceName
	}

	rows, err := c.db.Query(ctx, q, pgx.StrictNamedArgs{
		"push_token_id": id.Generate(),
		"user_id":       in.LoggedInUserID(),
		"endpoint":      in.Endpoint,
		"p256dh":        in.P256dh,
		"auth":          in.Auth,
		"platform":      in.Platform,
		"device_name":   deviceName,
	})
	if err != nil {
		return out, fmt.Errorf("sql upsert push token: %w", err)
	}

	out, err = pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[types.PushToken])
	if err != nil {
		return out, fmt.Errorf("sql collect upserted push token: %w", err)
	}

	return out, nil
}

func (c *Cockroach) ActivePushTokens(ctx context.Context, userID string) ([]types.PushToken, error) {
	const q = `
		SELECT push_tokens.*
		FROM push_tokens
		WHERE user_id = $1
			AND active
		ORDER BY created_at
	`

	out, err := pgxutil.Select(ctx, c.db, q, []any{userID}, pgx.RowToStructByNameLax[types.PushToken])
	if err != nil {
		return nil, fmt.Errorf("sql select active push tokens: %w", err)
	}

	return out, nil
}

// DeactivatePushToken retires a token the push provider reported gone.
// Tokens are never deleted or reactivated here, only registration
// through UpsertPushToken can bring one back.
func (c *Cockroach) DeactivatePushToken(ctx context.Context, pushTokenID string) error {
	const q = `
		UPDATE push_tokens
		SET active = false, updated_at = now()
		WHERE id = @push_token_id
			AND active
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"push_token_id": pushTokenID,
	})
	if err != nil {
		return fmt.Errorf("sql update push token inactive: %w", err)
	}

	return nil
}

func (c *Cockroach) TouchPushTokens(ctx context.Context, pushTokenIDs []string) error {
	if len(pushTokenIDs) == 0 {
		return nil
	}

	const q = `
		UPDATE push_tokens
		SET last_used_at = now()
		WHERE id = ANY(@push_token_ids)
	`

	_, err := c.db.Exec(ctx, q, pgx.StrictNamedArgs{
		"push_token_ids": pushTokenIDs,
	})
	if err != nil {
		return fmt.Errorf("sql update push tokens last used: %w", err)
	}

	return nil
}
