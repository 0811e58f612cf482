package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

const retryBackoff = 100 * time.Millisecond

// withTx runs fn in one transaction. Serialization failures and lock waits
// are retried once after a short backoff; business-rule errors are not, since
// retrying cannot change their outcome.
func (s *Service) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			s.Logger.Warn().Err(lastErr).Msg("retrying transaction")
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return translate(err)
		}
		lastErr = err
	}
	return translate(lastErr)
}

func (s *Service) runTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func retryable(err error) bool {
	if errors.Is(err, orders.ErrLockTimeout) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
	}
	return false
}

// translate maps the lock-wait SQLSTATE onto the domain error once retries are
// exhausted so callers never see raw driver codes.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" {
		return orders.ErrLockTimeout
	}
	return err
}
