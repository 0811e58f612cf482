package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// Store wraps the ledger for callers outside an order flow (direct admin
// stock correction). Each call runs in its own transaction.
type Store struct {
	DB *pgxpool.Pool
}

// AdjustStock applies a relative change and returns the new quantity.
func (s *Store) AdjustStock(ctx context.Context, productID, locationID int64, change int) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	newQty, err := New(tx).Adjust(ctx, productID, locationID, change)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return newQty, nil
}

// SetStock overwrites the quantity and returns the value written.
func (s *Store) SetStock(ctx context.Context, productID, locationID int64, quantity int) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := New(tx).SetAbsolute(ctx, productID, locationID, quantity); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return quantity, nil
}

// GetStock reads current quantity without locking.
func (s *Store) GetStock(ctx context.Context, productID, locationID int64) (orders.StockRecord, bool, error) {
	qty, exists, err := New(s.DB).Get(ctx, productID, locationID)
	if err != nil || !exists {
		return orders.StockRecord{}, false, err
	}
	return orders.StockRecord{ProductID: productID, LocationID: locationID, Quantity: qty}, true, nil
}
