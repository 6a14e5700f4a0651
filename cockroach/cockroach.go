package cockroach

import (
	"context"
	"embed"
	"errors"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nicolasparada/go-db"
)

//go:embed migrations/*.sql
var MigrationsFS embed.FS

type Cockroach struct {
	db   *db.DB
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Cockroach {
	return &Cockroach{
		db:   db.New(pool),
		pool: pool,
	}
}

// ExecuteTx runs fn in a transaction that is automatically
// retried on serialization failures.
func (c *Cockroach) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return crdbpgxv5.ExecuteTx(ctx, c.pool, pgx.TxOptions{}, fn)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
