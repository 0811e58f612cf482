package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

type fakeTransitioner struct {
	expired     []string
	transitions map[string]error
	cancelled   []string
	gotCutoff   time.Time
}

func (f *fakeTransitioner) ListExpiredPending(_ context.Context, cutoff time.Time) ([]string, error) {
	f.gotCutoff = cutoff
	return f.expired, nil
}

func (f *fakeTransitioner) Transition(_ context.Context, orderID string, action orders.Action, actorID int64, notes string) (*TransitionResult, error) {
	if err, ok := f.transitions[orderID]; ok {
		return nil, err
	}
	f.cancelled = append(f.cancelled, orderID)
	return &TransitionResult{
		Order:         &orders.Order{ID: orderID, Status: orders.StatusCancelled},
		From:          orders.StatusPendingApproval,
		StockReleased: true,
	}, nil
}

func TestSweepCancelsExpiredOrders(t *testing.T) {
	f := &fakeTransitioner{expired: []string{"a", "b"}}
	var notified []string
	r := &Reaper{
		Svc:         f,
		MaxAge:      time.Hour,
		Interval:    time.Minute,
		Logger:      zerolog.Nop(),
		OnCancelled: func(res *TransitionResult) { notified = append(notified, res.Order.ID) },
	}

	r.Sweep(context.Background())

	if len(f.cancelled) != 2 {
		t.Fatalf("expected 2 cancels, got %v", f.cancelled)
	}
	if len(notified) != 2 {
		t.Errorf("expected 2 notifications, got %v", notified)
	}
	if time.Until(f.gotCutoff) > -50*time.Minute {
		t.Errorf("cutoff not pushed back by MaxAge: %v", f.gotCutoff)
	}
}

func TestSweepSkipsAlreadyTerminalOrders(t *testing.T) {
	f := &fakeTransitioner{
		expired:     []string{"a", "b"},
		transitions: map[string]error{"a": orders.ErrOrderAlreadyTerminal},
	}
	r := &Reaper{Svc: f, MaxAge: time.Hour, Interval: time.Minute, Logger: zerolog.Nop()}

	r.Sweep(context.Background())

	if len(f.cancelled) != 1 || f.cancelled[0] != "b" {
		t.Fatalf("expected only b cancelled, got %v", f.cancelled)
	}
}
