package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shop is a store location.
type Shop struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// InventoryRow is a product joined with its category and stock counters.
type InventoryRow struct {
	ID           string          `db:"id" json:"id"`
	ItemCode     string          `db:"item_code" json:"item_code"`
	PhotoURL     string          `db:"photo_url" json:"photo_url"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
	VendorName   string          `db:"vendor_name" json:"vendor_name"`
	Remark       string          `db:"remark" json:"remark"`
	CategoryName string          `db:"category_name" json:"category_name"`
	QtyDisplay   int             `db:"qty_display" json:"qty_display"`
	QtyGodown    int             `db:"qty_godown" json:"qty_godown"`
}

// Stock holds the two independent counters of a product.
type Stock struct {
	ProductID  string    `db:"product_id" json:"product_id"`
	QtyDisplay int       `db:"qty_display" json:"qty_display"`
	QtyGodown  int       `db:"qty_godown" json:"qty_godown"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Order represents a basket row.
type Order struct {
	ID              string          `db:"id" json:"id"`
	ShopID          string          `db:"shop_id" json:"shop_id"`
	ClientID        string          `db:"client_id" json:"client_id"`
	ClientName      string          `db:"client_name" json:"client_name"`
	Status          string          `db:"status" json:"status"`
	DiscountPercent decimal.Decimal `db:"discount_percent" json:"discount_percent"`
	FinalTotal      decimal.Decimal `db:"final_total" json:"final_total"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of an order joined with the product code.
type OrderItem struct {
	OrderID    string          `db:"order_id" json:"-"`
	ProductID  string          `db:"product_id" json:"product_id"`
	ItemCode   string          `db:"item_code" json:"item_code"`
	Quantity   int             `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice decimal.Decimal `db:"total_price" json:"total_price"`
}

// Order statuses
const (
	OrderStatusBucket = "bucket"
	OrderStatusPI     = "pi"
	OrderStatusSold   = "sold"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
