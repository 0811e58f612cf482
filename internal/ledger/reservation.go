package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/ForeverInLaw/nikitabotv2/internal/orders"
)

// Coordinator makes reservation/release atomic across the line items of one
// order. It relies on the caller's transaction for all-or-nothing semantics:
// any error must abort the whole transaction, so a partial reservation never
// survives.
type Coordinator struct {
	Ledger *StockLedger
}

// ReserveAll deducts every item's quantity from available stock. Items are
// locked in ascending (product_id, location_id) order so two concurrent
// multi-item orders that overlap on two or more records can never deadlock on
// each other.
func (c *Coordinator) ReserveAll(ctx context.Context, items []orders.LineItem) error {
	for _, it := range sortedByKey(items) {
		if _, err := c.Ledger.Adjust(ctx, it.ProductID, it.LocationID, -it.Qty); err != nil {
			return err
		}
	}
	return nil
}

// ReleaseAll returns each item's reserved quantity to available stock. The
// caller guards idempotency by checking order status first, so a release is
// issued at most once per order. A missing stock row is a data inconsistency
// (the row existed when the reservation was taken) and fails loudly instead of
// silently creating a fresh record.
func (c *Coordinator) ReleaseAll(ctx context.Context, items []orders.OrderItem) error {
	sorted := make([]orders.OrderItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ProductID != sorted[j].ProductID {
			return sorted[i].ProductID < sorted[j].ProductID
		}
		return sorted[i].LocationID < sorted[j].LocationID
	})

	for _, it := range sorted {
		if it.ReservedQuantity == 0 {
			continue
		}
		_, exists, err := c.Ledger.GetForUpdate(ctx, it.ProductID, it.LocationID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("release stock for product %d at location %d: %w",
				it.ProductID, it.LocationID, orders.ErrRecordNotFound)
		}
		if _, err := c.Ledger.Adjust(ctx, it.ProductID, it.LocationID, it.ReservedQuantity); err != nil {
			return err
		}
	}
	return nil
}

// sortedByKey returns a copy ordered by (product_id, location_id) ascending;
// the shared lock order across all reservation paths.
func sortedByKey(items []orders.LineItem) []orders.LineItem {
	out := make([]orders.LineItem, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out
}
