package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// DB is the query surface the ledger needs. Satisfied by pgx.Tx and
// *pgxpool.Pool; all mutating calls must run on a transaction so the row lock
// taken by GetForUpdate lives until commit/rollback.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// StockLedger is the single source of truth for available quantity per
// (product, location). All mutations happen under the row lock obtained by the
// same transaction that read the value.
type StockLedger struct {
	db DB
}

func New(db DB) *StockLedger { return &StockLedger{db: db} }

// GetForUpdate reads the quantity and takes an exclusive row lock held until
// the enclosing transaction ends. A missing row reports exists=false with
// quantity 0; no row is created.
func (l *StockLedger) GetForUpdate(ctx context.Context, productID, locationID int64) (int, bool, error) {
	var qty int
	err := l.db.QueryRow(ctx,
		`SELECT quantity FROM stock WHERE product_id=$1 AND location_id=$2 FOR UPDATE`,
		productID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapPgError(err)
	}
	return qty, true, nil
}

// Get reads without locking. Used by plain info queries only, never by a
// mutation path.
func (l *StockLedger) Get(ctx context.Context, productID, locationID int64) (int, bool, error) {
	var qty int
	err := l.db.QueryRow(ctx,
		`SELECT quantity FROM stock WHERE product_id=$1 AND location_id=$2`,
		productID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, mapPgError(err)
	}
	return qty, true, nil
}

// Adjust changes the quantity by delta under the row lock and returns the new
// quantity. A negative result is rejected with InsufficientStockError and
// nothing changes. A missing row is created when delta is positive; a negative
// or zero delta against a missing row fails with ErrRecordNotFound.
func (l *StockLedger) Adjust(ctx context.Context, productID, locationID int64, delta int) (int, error) {
	current, exists, err := l.GetForUpdate(ctx, productID, locationID)
	if err != nil {
		return 0, err
	}

	if !exists {
		if delta <= 0 {
			return 0, orders.ErrRecordNotFound
		}
		_, err := l.db.Exec(ctx,
			`INSERT INTO stock(product_id, location_id, quantity) VALUES ($1,$2,$3)`,
			productID, locationID, delta)
		if err != nil {
			return 0, mapPgError(err)
		}
		return delta, nil
	}

	next := current + delta
	if next < 0 {
		return 0, &orders.InsufficientStockError{
			ProductID:  productID,
			LocationID: locationID,
			Available:  current,
			Requested:  -delta,
		}
	}
	_, err = l.db.Exec(ctx,
		`UPDATE stock SET quantity=$3 WHERE product_id=$1 AND location_id=$2`,
		productID, locationID, next)
	if err != nil {
		return 0, mapPgError(err)
	}
	return next, nil
}

// SetAbsolute overwrites (or creates) the record unconditionally. Admin stock
// correction only; order flows always go through Adjust.
func (l *StockLedger) SetAbsolute(ctx context.Context, productID, locationID int64, quantity int) error {
	if quantity < 0 {
		return orders.ErrInvalidQuantity
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO stock(product_id, location_id, quantity)
		VALUES ($1,$2,$3)
		ON CONFLICT (product_id, location_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, productID, locationID, quantity)
	return mapPgError(err)
}

// mapPgError translates the SQLSTATEs the ledger can hit while waiting on a
// row lock into the domain error; everything else passes through.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "55P03" { // lock_not_available
		return orders.ErrLockTimeout
	}
	return err
}
