package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           int64
	Name         string
	Manufacturer string
	Price        decimal.Decimal
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Location struct {
	ID        int64
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockRecord is the quantity of one product at one location.
// Created lazily on the first positive adjustment, never negative.
type StockRecord struct {
	ProductID  int64
	LocationID int64
	Quantity   int
}

type Order struct {
	ID            string
	ExternalID    string
	UserID        int64
	Status        Status
	PaymentMethod string
	TotalAmount   decimal.Decimal
	AdminNotes    string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderItem struct {
	OrderID          string
	ProductID        int64
	LocationID       int64
	Quantity         int
	PriceAtOrderTime decimal.Decimal
	// ReservedQuantity mirrors Quantity at reservation time; release works from
	// it so the exact reserved amount comes back even if fulfillment rules
	// later allow partial shipment.
	ReservedQuantity int
}

// LineItem is the (product, location, qty) tuple the ledger operates on.
type LineItem struct {
	ProductID  int64 `json:"product_id"`
	LocationID int64 `json:"location_id"`
	Qty        int   `json:"qty"`
}
