package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

const orderColumns = `id, external_id, user_id, status, payment_method, total_amount, admin_notes, created_at, updated_at`

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.ExternalID, &o.UserID, &o.Status, &o.PaymentMethod,
		&o.TotalAmount, &o.AdminNotes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID loads an order with its items.
func (s *Service) GetByID(ctx context.Context, orderID string) (*orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	items, err := s.loadItems(ctx, s.DB, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Service) getByExternalID(ctx context.Context, externalID string) (*orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE external_id=$1`, externalID))
	if err != nil {
		return nil, err
	}
	items, err := s.loadItems(ctx, s.DB, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// lockOrder loads the order row FOR UPDATE so concurrent transitions of the
// same order serialize on it.
func (s *Service) lockOrder(ctx context.Context, tx pgx.Tx, orderID string) (*orders.Order, error) {
	return scanOrder(tx.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Service) loadItems(ctx context.Context, db querier, orderID string) ([]orders.OrderItem, error) {
	rows, err := db.Query(ctx, `
		SELECT order_id, product_id, location_id, quantity, price_at_order_time, reserved_quantity
		FROM order_items WHERE order_id=$1
		ORDER BY product_id, location_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []orders.OrderItem
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.LocationID,
			&it.Quantity, &it.PriceAtOrderTime, &it.ReservedQuantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type ListFilter struct {
	Status orders.Status // empty = any
	UserID int64         // 0 = any
	Limit  int
	Offset int
}

// ListFiltered returns a page of orders plus the total match count. Stable
// pagination order: ascending id.
func (s *Service) ListFiltered(ctx context.Context, f ListFilter) ([]orders.Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, fmt.Errorf("status %q: %w", f.Status, orders.ErrInvalidFilter)
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := ` WHERE 1=1`
	args := []any{}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status=$%d", len(args))
	}
	if f.UserID != 0 {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id=$%d", len(args))
	}

	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	rows, err := s.DB.Query(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+
			fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []orders.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// ListExpiredPending returns ids of orders still waiting for approval past the
// cutoff. The reaper cancels them through the normal Transition path.
func (s *Service) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT id FROM orders WHERE status=$1 AND created_at < $2 ORDER BY id`,
		orders.StatusPendingApproval, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
