package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultAdvisoryWait bounds how long a transaction waits for another holder's keys.
const DefaultAdvisoryWait = 5 * time.Second

// Execer is satisfied by pgx.Tx and *pgx.Conn.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AdvisoryXact takes a transaction-scoped Postgres advisory lock per key, in sorted order,
// on the connection that runs tx. The locks are released by commit or rollback.
// Waiting longer than wait fails with ErrBusy.
func AdvisoryXact(ctx context.Context, tx Execer, keys []string, wait time.Duration) error {
	keys = Keys("", keys)
	if len(keys) == 0 {
		return nil
	}
	if wait <= 0 {
		wait = DefaultAdvisoryWait
	}

	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", fmt.Sprintf("%dms", wait.Milliseconds())); err != nil {
		return fmt.Errorf("set lock timeout: %w", err)
	}

	for _, k := range keys {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", k); err != nil {
			var pgErr *pgconn.PgError
			switch {
			case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.LockNotAvailable:
				return ErrBusy.WithCause(err)
			case ctx.Err() != nil:
				return ErrBusy.WithCause(ctx.Err())
			}
			return fmt.Errorf("advisory lock %s: %w", k, err)
		}
	}
	return nil
}
