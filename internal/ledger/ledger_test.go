package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// fakeDB implements the DB surface in memory. It dispatches on the SQL text
// the ledger actually issues, and records the key order of FOR UPDATE reads so
// lock ordering can be asserted.
type fakeDB struct {
	stock     map[[2]int64]int
	lockOrder [][2]int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{stock: map[[2]int64]int{}}
}

func dbKey(args []any) [2]int64 {
	return [2]int64{args[0].(int64), args[1].(int64)}
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	k := dbKey(args)
	if strings.Contains(sql, "FOR UPDATE") {
		f.lockOrder = append(f.lockOrder, k)
	}
	qty, ok := f.stock[k]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{qty: qty}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	k := dbKey(args)
	switch {
	case strings.HasPrefix(strings.TrimSpace(sql), "INSERT"):
		f.stock[k] = args[2].(int)
	case strings.HasPrefix(strings.TrimSpace(sql), "UPDATE"):
		f.stock[k] = args[2].(int)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

type fakeRow struct {
	qty int
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*int)) = r.qty
	return nil
}

func TestGetForUpdateMissingRow(t *testing.T) {
	l := New(newFakeDB())

	qty, exists, err := l.GetForUpdate(context.Background(), 1, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists || qty != 0 {
		t.Errorf("expected (0, false), got (%d, %v)", qty, exists)
	}
}

func TestAdjustNeverGoesNegative(t *testing.T) {
	db := newFakeDB()
	db.stock[[2]int64{1, 1}] = 8
	l := New(db)
	ctx := context.Background()

	got, err := l.Adjust(ctx, 1, 1, -5)
	if err != nil {
		t.Fatalf("first adjust: %v", err)
	}
	if got != 3 {
		t.Errorf("expected 3 after adjust, got %d", got)
	}

	_, err = l.Adjust(ctx, 1, 1, -5)
	var ins *orders.InsufficientStockError
	if !errors.As(err, &ins) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ins.Available != 3 || ins.Requested != 5 {
		t.Errorf("expected available=3 requested=5, got %+v", ins)
	}
	if db.stock[[2]int64{1, 1}] != 3 {
		t.Errorf("rejected adjust must not change stock, got %d", db.stock[[2]int64{1, 1}])
	}
}

func TestAdjustCreatesRowOnPositiveDelta(t *testing.T) {
	db := newFakeDB()
	l := New(db)

	got, err := l.Adjust(context.Background(), 7, 2, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("expected 10, got %d", got)
	}
	if db.stock[[2]int64{7, 2}] != 10 {
		t.Errorf("row not created")
	}
}

func TestAdjustMissingRowNegativeDelta(t *testing.T) {
	l := New(newFakeDB())

	_, err := l.Adjust(context.Background(), 7, 2, -1)
	if !errors.Is(err, orders.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestAdjustRoundTripRestoresQuantity(t *testing.T) {
	db := newFakeDB()
	db.stock[[2]int64{3, 9}] = 42
	l := New(db)
	ctx := context.Background()

	if _, err := l.Adjust(ctx, 3, 9, -17); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	got, err := l.Adjust(ctx, 3, 9, 17)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42 after round trip, got %d", got)
	}
}

func TestSetAbsolute(t *testing.T) {
	db := newFakeDB()
	l := New(db)
	ctx := context.Background()

	if err := l.SetAbsolute(ctx, 1, 1, -1); !errors.Is(err, orders.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if err := l.SetAbsolute(ctx, 1, 1, 25); err != nil {
		t.Fatalf("set: %v", err)
	}
	if db.stock[[2]int64{1, 1}] != 25 {
		t.Errorf("expected 25, got %d", db.stock[[2]int64{1, 1}])
	}
	// overwrite unconditionally
	if err := l.SetAbsolute(ctx, 1, 1, 0); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if db.stock[[2]int64{1, 1}] != 0 {
		t.Errorf("expected 0, got %d", db.stock[[2]int64{1, 1}])
	}
}
