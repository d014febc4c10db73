// Package view derives every session indicator the terminal shows from the
// session itself. It keeps no state.
package view

import (
	"fmt"

	"shop-pos/internal/pos/session"

	"github.com/shopspring/decimal"
)

// Line is one row of the mini basket.
type Line struct {
	ProductID string
	ItemCode  string
	Quantity  int
	Amount    decimal.Decimal
}

// View is the full set of session directives.
type View struct {
	BannerVisible bool
	BannerText    string
	ItemCount     int
	Lines         []Line
	GrandTotal    decimal.Decimal
	NavActive     session.Screen

	CanConvert  bool
	CanFinalize bool
	CanDelete   bool
}

// Derive computes the view of s.
func Derive(s session.Session) View {
	v := View{NavActive: s.Screen, GrandTotal: decimal.Zero}
	if v.NavActive == "" {
		v.NavActive = session.ScreenSearch
	}

	o := s.Active
	if o == nil {
		return v
	}

	v.BannerVisible = true
	v.BannerText = fmt.Sprintf("%s · %s", o.ClientName, statusLabel(o.Status))
	v.ItemCount = o.ItemCount()
	v.GrandTotal = o.GrandTotal()
	v.Lines = make([]Line, 0, len(o.Items))
	for _, li := range o.Items {
		v.Lines = append(v.Lines, Line{
			ProductID: li.ProductID,
			ItemCode:  li.ItemCode,
			Quantity:  li.Quantity,
			Amount:    li.Amount(),
		})
	}

	v.CanConvert = o.Status == session.StatusBucket && len(o.Items) > 0
	v.CanFinalize = o.Status.Mutable() && len(o.Items) > 0
	v.CanDelete = o.Status == session.StatusBucket
	return v
}

func statusLabel(s session.Status) string {
	switch s {
	case session.StatusBucket:
		return "Draft"
	case session.StatusPI:
		return "Proforma"
	case session.StatusSold:
		return "Sold"
	}
	return string(s)
}
