// Package catalog holds the read-only records the POS core receives from the
// remote order/inventory store.
package catalog

import "github.com/shopspring/decimal"

// Shop is a search result of the shop lookup.
type Shop struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Product is owned by the remote store; the core never mutates one.
type Product struct {
	ID           string          `json:"id"`
	ItemCode     string          `json:"item_code"`
	CategoryName string          `json:"category_name"`
	VendorName   string          `json:"vendor_name"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	QtyDisplay   int             `json:"qty_display"`
	QtyGodown    int             `json:"qty_godown"`
	PhotoURL     string          `json:"photo_url,omitempty"`
	Remark       string          `json:"remark,omitempty"`
}

// SearchText is the text an inventory filter matches against.
func (p Product) SearchText() string {
	return p.ItemCode + " " + p.CategoryName + " " + p.VendorName
}

// TotalStock is the sum of the display and godown counters.
func (p Product) TotalStock() int {
	return p.QtyDisplay + p.QtyGodown
}
