package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockAdjusted      = "StockAdjusted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload per event ----

type OrderCreatedPayload struct {
	OrderID       string     `json:"order_id"`
	ExternalID    string     `json:"external_id"`
	UserID        int64      `json:"user_id"`
	PaymentMethod string     `json:"payment_method"`
	Items         []LineItem `json:"items"`
	TotalAmount   string     `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID       string `json:"order_id"`
	OldStatus     Status `json:"old_status"`
	NewStatus     Status `json:"new_status"`
	Action        Action `json:"action"`
	ActorID       int64  `json:"actor_id"`
	StockReleased bool   `json:"stock_released"`
}

type StockAdjustedPayload struct {
	ProductID   int64 `json:"product_id"`
	LocationID  int64 `json:"location_id"`
	Change      int   `json:"change"`
	NewQuantity int   `json:"new_quantity"`
	AdminID     int64 `json:"admin_id"`
	Absolute    bool  `json:"absolute"` // true for direct set, false for delta
}
