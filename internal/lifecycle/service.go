package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ForeverInLaw/nikitabotv2/internal/ledger"
	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// Service orchestrates order creation and status transitions. Every call runs
// in one transaction: stock reservation/release, the order row and its items
// commit together or not at all.
type Service struct {
	DB     *pgxpool.Pool
	Logger zerolog.Logger
}

type CreateOrderInput struct {
	ExternalID    string
	UserID        int64
	PaymentMethod string
	Items         []orders.LineItem
}

// TransitionResult carries the order after a transition plus what the
// transition did, for event emission at the call site.
type TransitionResult struct {
	Order         *orders.Order
	From          orders.Status
	StockReleased bool
}

// CreateOrder validates availability, reserves stock for all items, persists
// the order in pending_admin_approval and returns it. Idempotent by
// external id: a repeated request returns the already-created order with
// existed=true. Any failure aborts the whole transaction; no partial
// reservation or partial order becomes visible.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (order *orders.Order, existed bool, err error) {
	if in.ExternalID == "" || in.UserID == 0 || len(in.Items) == 0 {
		return nil, false, fmt.Errorf("create order: external_id, user_id and items are required")
	}
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return nil, false, fmt.Errorf("%w: qty %d for product %d", orders.ErrInvalidQuantity, it.Qty, it.ProductID)
		}
	}

	// fast path: already created under this external id
	if existing, err := s.getByExternalID(ctx, in.ExternalID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, orders.ErrOrderNotFound) {
		return nil, false, err
	}

	err = s.withTx(ctx, func(tx pgx.Tx) error {
		prices, err := s.snapshotPrices(ctx, tx, in.Items)
		if err != nil {
			return err
		}

		coord := &ledger.Coordinator{Ledger: ledger.New(tx)}
		if err := coord.ReserveAll(ctx, in.Items); err != nil {
			return err
		}

		total := decimal.Zero
		for _, it := range in.Items {
			total = total.Add(prices[it.ProductID].Mul(decimal.NewFromInt(int64(it.Qty))))
		}

		o := &orders.Order{
			ID:            uuid.NewString(),
			ExternalID:    in.ExternalID,
			UserID:        in.UserID,
			Status:        orders.StatusPendingApproval,
			PaymentMethod: in.PaymentMethod,
			TotalAmount:   total,
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO orders(id, external_id, user_id, status, payment_method, total_amount)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at, updated_at
		`, o.ID, o.ExternalID, o.UserID, o.Status, o.PaymentMethod, o.TotalAmount)
		if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
			return err
		}

		for _, it := range in.Items {
			item := orders.OrderItem{
				OrderID:          o.ID,
				ProductID:        it.ProductID,
				LocationID:       it.LocationID,
				Quantity:         it.Qty,
				PriceAtOrderTime: prices[it.ProductID],
				ReservedQuantity: it.Qty,
			}
			_, err := tx.Exec(ctx, `
				INSERT INTO order_items(order_id, product_id, location_id, quantity, price_at_order_time, reserved_quantity)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, item.OrderID, item.ProductID, item.LocationID, item.Quantity, item.PriceAtOrderTime, item.ReservedQuantity)
			if err != nil {
				return err
			}
			o.Items = append(o.Items, item)
		}

		order = o
		return nil
	})
	if err != nil {
		// lost the race against a concurrent request with the same external id
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if existing, rerr := s.getByExternalID(ctx, in.ExternalID); rerr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	s.Logger.Info().
		Str("order_id", order.ID).
		Int64("user_id", order.UserID).
		Int("items", len(order.Items)).
		Str("total", order.TotalAmount.String()).
		Msg("order created")
	return order, false, nil
}

// Transition applies an action to an order through the state machine. When the
// transition releases stock, the reserved quantities go back to the ledger in
// the same transaction that writes the new status, so a release can never be
// observed without its status change (or vice versa). The terminal-status
// check doubles as the double-release guard.
func (s *Service) Transition(ctx context.Context, orderID string, action orders.Action, actorID int64, notes string) (*TransitionResult, error) {
	var res TransitionResult

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		o, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}

		next, releases, err := orders.Next(o.Status, action)
		if err != nil {
			return err
		}

		items, err := s.loadItems(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		o.Items = items

		if releases {
			coord := &ledger.Coordinator{Ledger: ledger.New(tx)}
			if err := coord.ReleaseAll(ctx, items); err != nil {
				return err
			}
		}

		res.From = o.Status
		o.Status = next
		if notes != "" {
			o.AdminNotes = notes
		}
		row := tx.QueryRow(ctx, `
			UPDATE orders SET status=$2, admin_notes=$3, updated_at=now()
			WHERE id=$1
			RETURNING updated_at
		`, o.ID, o.Status, o.AdminNotes)
		if err := row.Scan(&o.UpdatedAt); err != nil {
			return err
		}

		res.Order = o
		res.StockReleased = releases
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Info().
		Str("order_id", orderID).
		Str("action", string(action)).
		Str("from", string(res.From)).
		Str("to", string(res.Order.Status)).
		Int64("actor_id", actorID).
		Bool("stock_released", res.StockReleased).
		Msg("order transitioned")
	return &res, nil
}

// snapshotPrices reads the current price of every distinct product in the
// order; price_at_order_time is immutable once written.
func (s *Service) snapshotPrices(ctx context.Context, tx pgx.Tx, items []orders.LineItem) (map[int64]decimal.Decimal, error) {
	ids := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}

	rows, err := tx.Query(ctx, `SELECT id, price FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prices := make(map[int64]decimal.Decimal, len(ids))
	for rows.Next() {
		var id int64
		var price decimal.Decimal
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := prices[id]; !ok {
			return nil, fmt.Errorf("product %d: %w", id, orders.ErrRecordNotFound)
		}
	}
	return prices, nil
}
