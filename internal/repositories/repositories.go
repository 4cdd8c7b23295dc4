package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/cardquiz/internal/shared"
)

// querier is satisfied by both [*sql.DB] and [*sql.Tx] so repository methods can run inside a batch.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// NextSequence increments and returns the next sequence number for the given table.
//
// Sequence numbers give stable creation order (newest-first listing) independent of ids and
// timestamp resolution. Callers run it on the same transaction as the insert.
func NextSequence(ctx context.Context, q querier, table string) (int, error) {
	sequenceTable := table + "_sequence"

	if _, err := q.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}
	return sequence, nil
}

// inTx runs fn in a transaction on db, or directly when q is already a transaction.
func inTx(ctx context.Context, q querier, fn func(querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// likePattern wraps q for a LIKE ... ESCAPE '\' contains match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// orderBy maps an API sort key ("-createdAt", "title", ...) to a whitelisted ORDER BY clause.
func orderBy(sort string, columns map[string]string) string {
	desc := strings.HasPrefix(sort, "-")
	key := strings.TrimPrefix(strings.TrimPrefix(sort, "-"), "+")
	col, ok := columns[key]
	if !ok {
		return "sequence DESC"
	}
	if desc {
		return col + " DESC, sequence DESC"
	}
	return col + " ASC, sequence ASC"
}

var baseSortColumns = map[string]string{
	"createdAt": "sequence",
	"updatedAt": "updated_at",
	"created":   "sequence",
	"updated":   "updated_at",
}

func withColumns(extra map[string]string) map[string]string {
	m := make(map[string]string, len(baseSortColumns)+len(extra))
	for k, v := range baseSortColumns {
		m[k] = v
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// notFound converts sql.ErrNoRows into [shared.ErrNotFound].
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
	}
	return fmt.Errorf("failed to scan %s: %w", kind, err)
}

// mustAffect returns ErrNotFound when an UPDATE/DELETE touched no rows.
func mustAffect(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s not found or already deleted: %s", shared.ErrNotFound, kind, id)
	}
	return nil
}

func countRows(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}
