package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carewell-hms/carewell/internal/shared"
)

// WithTx runs fn in a RepeatableRead transaction. A serialization failure or deadlock is
// reported as shared.ErrConflict so callers can reload and retry.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return asConflict(fmt.Errorf("platform/db: commit tx: %w", err))
	}
	return nil
}

func asConflict(err error) error {
	if IsSerializationFailure(err) {
		return fmt.Errorf("%w: %w", shared.ErrConflict, err)
	}
	return err
}
