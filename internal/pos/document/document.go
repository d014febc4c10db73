package document

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/session"

	"github.com/shopspring/decimal"
)

// Kind selects the document printed for an order.
type Kind string

const (
	KindProforma Kind = "proforma"
	KindInvoice  Kind = "invoice"
)

// Line is one priced row of a document.
type Line struct {
	ItemCode  string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// Document is a print-ready, fully computed order document.
type Document struct {
	Kind            Kind
	Title           string
	OrderID         string
	ClientName      string
	Date            time.Time
	Lines           []Line
	Subtotal        decimal.Decimal
	DiscountPercent decimal.Decimal
	DiscountAmount  decimal.Decimal
	GrandTotal      decimal.Decimal
}

// ShowDiscount reports whether the discount row is printed.
func (d Document) ShowDiscount() bool {
	return d.DiscountAmount.IsPositive()
}

// Render computes a document from snap alone. An invoice needs a sold order;
// a proforma needs one that is not sold yet.
func Render(snap session.Order, kind Kind) (Document, error) {
	switch kind {
	case KindInvoice:
		if snap.Status != session.StatusSold {
			return Document{}, apperr.Newf(apperr.CodeStateViolation, "invoice requires a sold order, %s is %s", snap.ID, snap.Status)
		}
	case KindProforma:
		if snap.Status == session.StatusSold {
			return Document{}, apperr.Newf(apperr.CodeStateViolation, "order %s is sold; print its invoice instead", snap.ID)
		}
	default:
		return Document{}, apperr.Newf(apperr.CodeValidation, "unknown document kind %q", kind)
	}

	doc := Document{
		Kind:            kind,
		Title:           title(kind),
		OrderID:         snap.ID,
		ClientName:      snap.ClientName,
		Date:            snap.CreatedAt,
		Lines:           make([]Line, 0, len(snap.Items)),
		DiscountPercent: snap.DiscountPercent,
	}
	for _, li := range snap.Items {
		doc.Lines = append(doc.Lines, Line{
			ItemCode:  li.ItemCode,
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Amount:    li.Amount(),
		})
	}
	doc.Subtotal = snap.Subtotal()
	doc.DiscountAmount = snap.DiscountAmount()
	doc.GrandTotal = snap.GrandTotal()
	return doc, nil
}

func title(kind Kind) string {
	if kind == KindInvoice {
		return "TAX INVOICE"
	}
	return "PROFORMA INVOICE"
}

func money(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// Text renders the document as fixed columns for a receipt printer.
func (d Document) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", d.Title)
	fmt.Fprintf(&b, "Order:  %s\n", d.OrderID)
	fmt.Fprintf(&b, "Client: %s\n", d.ClientName)
	if !d.Date.IsZero() {
		fmt.Fprintf(&b, "Date:   %s\n", d.Date.Format("02 Jan 2006"))
	}
	b.WriteString("\n")

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Item\tQty\tRate\tAmount\t")
	for _, l := range d.Lines {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n", l.ItemCode, l.Quantity, money(l.UnitPrice), money(l.Amount))
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintf(tw, "\t\tSubtotal\t%s\t\n", money(d.Subtotal))
	if d.ShowDiscount() {
		fmt.Fprintf(tw, "\t\tDiscount (%s%%)\t-%s\t\n", d.DiscountPercent.String(), money(d.DiscountAmount))
	}
	fmt.Fprintf(tw, "\t\tGrand Total\t%s\t\n", money(d.GrandTotal))
	_ = tw.Flush()

	return b.String()
}

// Labels renders one label per selected product: the item code the scanner
// reads back.
func Labels(products []catalog.Product) string {
	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "[ %s ]\n", p.ItemCode)
	}
	return b.String()
}
