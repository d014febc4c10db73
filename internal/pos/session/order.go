package session

import (
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusBucket Status = "bucket"
	StatusPI     Status = "pi"
	StatusSold   Status = "sold"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusBucket, StatusPI, StatusSold:
		return true
	}
	return false
}

// Mutable reports whether items may still change.
func (s Status) Mutable() bool {
	return s == StatusBucket || s == StatusPI
}

var hundred = decimal.NewFromInt(100)

// LineItem is one product within an order. UnitPrice is the selling price at
// the moment the line was created and is never refreshed.
type LineItem struct {
	ProductID string          `json:"product_id"`
	ItemCode  string          `json:"item_code"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Amount is quantity × unit price.
func (li LineItem) Amount() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is a snapshot of a basket. Methods never modify the receiver; every
// mutation returns a new Order.
type Order struct {
	ID              string           `json:"id"`
	ShopID          string           `json:"shop_id"`
	ClientName      string           `json:"client_name"`
	Status          Status           `json:"status"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
	Items           []LineItem       `json:"order_items"`
	FinalTotal      *decimal.Decimal `json:"final_total,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Summary is a row of the per-shop orders list.
type Summary struct {
	ID              string          `json:"id"`
	ClientName      string          `json:"client_name"`
	Status          Status          `json:"status"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewOrder returns an empty bucket for a client.
func NewOrder(id, shopID, clientName string, createdAt time.Time) Order {
	return Order{
		ID:              id,
		ShopID:          shopID,
		ClientName:      clientName,
		Status:          StatusBucket,
		DiscountPercent: decimal.Zero,
		Items:           []LineItem{},
		CreatedAt:       createdAt,
	}
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	c := o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	if o.FinalTotal != nil {
		ft := *o.FinalTotal
		c.FinalTotal = &ft
	}
	return c
}

// Item returns the line for productID.
func (o Order) Item(productID string) (LineItem, bool) {
	if i := o.indexOf(productID); i >= 0 {
		return o.Items[i], true
	}
	return LineItem{}, false
}

func (o Order) indexOf(productID string) int {
	for i, li := range o.Items {
		if li.ProductID == productID {
			return i
		}
	}
	return -1
}

// ItemCount is the sum of line quantities.
func (o Order) ItemCount() int {
	n := 0
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}

// Subtotal is Σ quantity × unit price.
func (o Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Amount())
	}
	return total
}

// DiscountAmount applies the order-level discount once to the subtotal.
func (o Order) DiscountAmount() decimal.Decimal {
	return o.Subtotal().Mul(o.DiscountPercent).Div(hundred)
}

// GrandTotal is subtotal minus discount amount.
func (o Order) GrandTotal() decimal.Decimal {
	return o.Subtotal().Sub(o.DiscountAmount())
}

func (o Order) requireMutable() error {
	if !o.Status.Mutable() {
		return apperr.Newf(apperr.CodeStateViolation, "order %s is %s and can no longer change", o.ID, o.Status)
	}
	return nil
}

// AddItem upserts the line for p. An existing line keeps its unit price and
// gains qty; a new line snapshots p.SellingPrice.
func (o Order) AddItem(p catalog.Product, qty int) (Order, error) {
	if err := o.requireMutable(); err != nil {
		return o, err
	}
	if p.ID == "" {
		return o, apperr.Validation("product id is required")
	}
	if qty < 1 {
		return o, apperr.Validation("quantity must be at least 1")
	}
	next := o.Clone()
	if i := next.indexOf(p.ID); i >= 0 {
		next.Items[i].Quantity += qty
		return next, nil
	}
	next.Items = append(next.Items, LineItem{
		ProductID: p.ID,
		ItemCode:  p.ItemCode,
		Quantity:  qty,
		UnitPrice: p.SellingPrice,
	})
	return next, nil
}

// UpdateQty adjusts a line by delta. When the result would fall below 1 the
// line is removed and removed is true.
func (o Order) UpdateQty(productID string, delta int) (next Order, removed bool, err error) {
	if err := o.requireMutable(); err != nil {
		return o, false, err
	}
	if delta == 0 {
		return o, false, apperr.Validation("quantity change must be non-zero")
	}
	i := o.indexOf(productID)
	if i < 0 {
		return o, false, apperr.Newf(apperr.CodeNotFound, "product %s is not in order %s", productID, o.ID)
	}
	if o.Items[i].Quantity+delta < 1 {
		next, err = o.RemoveItem(productID)
		return next, true, err
	}
	next = o.Clone()
	next.Items[i].Quantity += delta
	return next, false, nil
}

// RemoveItem deletes the line for productID. An absent line is a no-op.
func (o Order) RemoveItem(productID string) (Order, error) {
	if err := o.requireMutable(); err != nil {
		return o, err
	}
	i := o.indexOf(productID)
	if i < 0 {
		return o, nil
	}
	next := o.Clone()
	next.Items = append(next.Items[:i], next.Items[i+1:]...)
	return next, nil
}

// ValidateDiscount checks the 0–100 range and at most two decimal places,
// the precision the store keeps.
func ValidateDiscount(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return apperr.Newf(apperr.CodeValidation, "discount must be between 0 and 100, got %s", percent.String())
	}
	if !percent.Equal(percent.Truncate(2)) {
		return apperr.Newf(apperr.CodeValidation, "discount allows at most 2 decimal places, got %s", percent.String())
	}
	return nil
}

// ConvertToPI stamps the discount and moves a bucket to pi. Items are untouched.
func (o Order) ConvertToPI(percent decimal.Decimal) (Order, error) {
	if o.Status != StatusBucket {
		return o, apperr.Newf(apperr.CodeStateViolation, "only a bucket can become a proforma invoice, order %s is %s", o.ID, o.Status)
	}
	if err := ValidateDiscount(percent); err != nil {
		return o, err
	}
	next := o.Clone()
	next.DiscountPercent = percent
	next.Status = StatusPI
	return next, nil
}

// Finalize freezes the grand total and moves the order to sold.
func (o Order) Finalize() (Order, error) {
	if o.Status == StatusSold {
		return o, apperr.Newf(apperr.CodeStateViolation, "order %s is already sold", o.ID)
	}
	if err := o.requireMutable(); err != nil {
		return o, err
	}
	if len(o.Items) == 0 {
		return o, apperr.Validation("cannot finalize an empty order")
	}
	next := o.Clone()
	total := next.GrandTotal().Round(2)
	next.FinalTotal = &total
	next.Status = StatusSold
	return next, nil
}

// CheckDelete allows deletion of drafts only.
func (o Order) CheckDelete() error {
	if o.Status != StatusBucket {
		return apperr.Newf(apperr.CodeStateViolation, "order %s is %s; only draft buckets can be deleted", o.ID, o.Status)
	}
	return nil
}
