package orders

import (
	"errors"
	"fmt"
)

// Business-rule errors. These are returned typed so callers branch on kind
// instead of matching message strings; none of them is worth retrying.
var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidFilter        = errors.New("invalid filter")
	ErrOrderAlreadyTerminal = errors.New("order already in terminal status")
)

// Infrastructure errors. LockTimeout may be retried once by the lifecycle
// layer before being surfaced.
var (
	ErrLockTimeout = errors.New("lock acquisition timed out")
)

// InsufficientStockError reports the quantity that was actually available so
// the caller can retry with a smaller amount.
type InsufficientStockError struct {
	ProductID  int64
	LocationID int64
	Available  int
	Requested  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d at location %d: available %d, requested %d",
		e.ProductID, e.LocationID, e.Available, e.Requested)
}

// InvalidTransitionError reports an (status, action) pair outside the
// transition table.
type InvalidTransitionError struct {
	From   Status
	Action Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: action %q not allowed from status %q", e.Action, e.From)
}
