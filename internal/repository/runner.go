package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxRunner runs units of work inside Postgres transactions.
type PgxRunner struct {
	pool *pgxpool.Pool
}

// NewPgxRunner creates a TxRunner backed by the given pool.
func NewPgxRunner(pool *pgxpool.Pool) *PgxRunner {
	return &PgxRunner{pool: pool}
}

// WithinTx begins a transaction, runs fn, and commits. Any error from fn rolls
// the transaction back and is returned unchanged so callers can branch on
// domain error codes.
func (r *PgxRunner) WithinTx(ctx context.Context, fn func(db DBTX) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
