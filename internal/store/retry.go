package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/examprep/backend/internal/metrics"
	"github.com/examprep/backend/internal/models"
)

// MaxRetries bounds how often a conflicting transaction is re-run.
const MaxRetries = 4

// WithRetry runs fn in a transaction, re-running it with exponential
// backoff while it fails with ErrStale. Other errors are returned as is.
// A transaction still stale after MaxRetries surfaces as models.ErrTransient.
func WithRetry(ctx context.Context, s Store, op string, fn func(tx Tx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.InTx(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrStale) {
			metrics.StoreRetries.WithLabelValues(op).Inc()
			slog.Debug("retrying conflicting transaction", "op", op, "attempt", attempt, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx))

	if err != nil && errors.Is(err, ErrStale) {
		return errors.Join(models.ErrTransient, err)
	}
	return err
}
