package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// transitioner is the slice of Service the reaper needs; split out so tests
// can drive sweeps without a database.
type transitioner interface {
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error)
	Transition(ctx context.Context, orderID string, action orders.Action, actorID int64, notes string) (*TransitionResult, error)
}

// Reaper cancels pending_admin_approval orders that outlived the configured
// window. Cancellation goes through the ordinary Transition path, so the
// reservation release and terminal-status guard apply exactly as for a manual
// cancel.
type Reaper struct {
	Svc      transitioner
	MaxAge   time.Duration
	Interval time.Duration
	Logger   zerolog.Logger

	// OnCancelled, when set, runs after each successful auto-cancel; the
	// worker uses it to publish the status-changed event.
	OnCancelled func(res *TransitionResult)
}

func (r *Reaper) Run(ctx context.Context) {
	t := time.NewTicker(r.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Per-order failures are logged and skipped; an order
// approved between listing and locking simply fails its transition check and
// is left alone.
func (r *Reaper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.MaxAge)
	ids, err := r.Svc.ListExpiredPending(ctx, cutoff)
	if err != nil {
		r.Logger.Error().Err(err).Msg("reaper: list expired orders")
		return
	}

	for _, id := range ids {
		res, err := r.Svc.Transition(ctx, id, orders.ActionCancel, 0, "auto-cancelled: approval timeout")
		if err != nil {
			var ite *orders.InvalidTransitionError
			if errors.Is(err, orders.ErrOrderAlreadyTerminal) || errors.As(err, &ite) {
				continue // someone got to it first
			}
			r.Logger.Error().Err(err).Str("order_id", id).Msg("reaper: cancel failed")
			continue
		}
		r.Logger.Info().Str("order_id", id).Msg("reaper: order auto-cancelled")
		if r.OnCancelled != nil {
			r.OnCancelled(res)
		}
	}
}
