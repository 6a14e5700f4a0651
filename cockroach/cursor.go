package cockroach

import (
	"fmt"
	"slices"
	"time"

	"github.com/btcsuite/btcutil/base58"
	"github.com/mesahub/mesa/types"
	"github.com/nicolasparada/go-errs"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/jackc/pgx/v5"
)

const defaultPageSize = 25

// Cursor is the opaque pagination token. Every paginated table here
// orders by (created_at, id) so a time value is all it needs to carry.
type Cursor struct {
	ID    string    `msgpack:"i"`
	Value time.Time `msgpack:"v"`
}

func EncodeCursor(cursor Cursor) (string, error) {
	b, err := msgpack.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("msgpack marshal cursor: %w", err)
	}

	return base58.Encode(b), nil
}

func DecodeCursor(s string) (Cursor, error) {
	var c Cursor

	b := base58.Decode(s)
	if err := msgpack.Unmarshal(b, &c); err != nil {
		return c, errs.InvalidArgumentError("invalid cursor")
	}

	return c, nil
}

type pageArgs struct {
	First  *uint
	After  *Cursor
	Last   *uint
	Before *Cursor
}

func (args pageArgs) IsBackwards() bool {
	return args.Last != nil || args.Before != nil
}

func parsePageArgs(in types.PageArgs) (pageArgs, error) {
	var out pageArgs

	if in.After != nil {
		after, err := DecodeCursor(*in.After)
		if err != nil {
			return out, fmt.Errorf("decode after cursor: %w", err)
		}

		out.After = &after
	}

	if in.Before != nil {
		before, err := DecodeCursor(*in.Before)
		if err != nil {
			return out, fmt.Errorf("decode before cursor: %w", err)
		}

		out.Before = &before
	}

	out.First = in.First
	out.Last = in.Last

	return out, nil
}

// addPageFilter expects query to already carry a WHERE clause.
func addPageFilter(query, table string, args pgx.StrictNamedArgs, pa pageArgs) string {
	if pa.After != nil {
		args["cursor_created_at"] = pa.After.Value
		args["cursor_id"] = pa.After.ID
		query += ` AND (` + table + `.created_at, ` + table + `.id) < (@cursor_created_at, @cursor_id)`
	}

	if pa.Before != nil {
		args["cursor_created_at"] = pa.Before.Value
		args["cursor_id"] = pa.Before.ID
		query += ` AND (` + table + `.created_at, ` + table + `.id) > (@cursor_created_at, @cursor_id)`
	}

	return query
}

func addPageOrder(query, table string, pa pageArgs) string {
	if pa.IsBackwards() {
		return query + ` ORDER BY ` + table + `.created_at ASC, ` + table + `.id ASC`
	}

	return query + ` ORDER BY ` + table + `.created_at DESC, ` + table + `.id DESC`
}

func addPageLimit(query string, args pgx.StrictNamedArgs, pa pageArgs) string {
	var size uint
	if pa.IsBackwards() {
		size = or(pa.Last, defaultPageSize)
	} else {
		size = or(pa.First, defaultPageSize)
	}

	// one extra row to know whether there is a next page
	args["limit"] = size + 1

	return query + ` LIMIT @limit`
}

// applyPageInfo modifies the given page in-place.
// It cuts the extra row back and reverses items on backwards pagination.
func applyPageInfo[I any](page *types.Page[I], pa pageArgs, cursorFunc func(item I) Cursor) error {
	l := uint(len(page.Items))
	if l == 0 {
		return nil
	}

	backwards := pa.IsBackwards()
	if backwards {
		last := or(pa.Last, defaultPageSize)
		page.PageInfo.HasPreviousPage = l > last
		if page.PageInfo.HasPreviousPage {
			page.Items = page.Items[:last]
		}
		page.PageInfo.HasNextPage = pa.Before != nil
	} else {
		first := or(pa.First, defaultPageSize)
		page.PageInfo.HasNextPage = l > first
		if page.PageInfo.HasNextPage {
			page.Items = page.Items[:first]
		}
		page.PageInfo.HasPreviousPage = pa.After != nil
	}

	if backwards {
		slices.Reverse(page.Items)
	}

	l = uint(len(page.Items))
	if l == 0 {
		return nil
	}

	startCursor := cursorFunc(page.Items[0])
	endCursor := cursorFunc(page.Items[l-1])

	if c, err := EncodeCursor(startCursor); err != nil {
		return fmt.Errorf("encode start cursor: %w", err)
	} else {
		page.PageInfo.StartCursor = &c
	}

	if c, err := EncodeCursor(endCursor); err != nil {
		return fmt.Errorf("encode end cursor: %w", err)
	} else {
		page.PageInfo.EndCursor = &c
	}

	return nil
}

func or[T any](a *T, b T) T {
	if a != nil {
		return *a
	}

	return b
}
