package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderConvertedPI = "ORDER_CONVERTED_TO_PI"
	EventTypeOrderFinalized   = "ORDER_FINALIZED"
	EventTypeOrderDeleted     = "ORDER_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a basket is opened
type OrderCreatedEvent struct {
	BaseEvent
	OrderID    string `json:"order_id"`
	ShopID     string `json:"shop_id"`
	ClientName string `json:"client_name"`
}

// OrderConvertedEvent published when a basket becomes a proforma invoice
type OrderConvertedEvent struct {
	BaseEvent
	OrderID         string          `json:"order_id"`
	ShopID          string          `json:"shop_id"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	Total           decimal.Decimal `json:"total"`
}

// OrderFinalizedEvent published after a sale commits and stock is deducted
type OrderFinalizedEvent struct {
	BaseEvent
	OrderID    string          `json:"order_id"`
	ShopID     string          `json:"shop_id"`
	FinalTotal decimal.Decimal `json:"final_total"`
	Items      []SoldItemData  `json:"items"`
}

// OrderDeletedEvent published when a draft is removed
type OrderDeletedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	ShopID  string `json:"shop_id"`
}

// SoldItemData records how one line was taken from stock
type SoldItemData struct {
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
	FromGodown  int    `json:"from_godown"`
	FromDisplay int    `json:"from_display"`
}
