package document

import (
	"testing"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/session"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotedOrder(t *testing.T, discount int64) session.Order {
	t.Helper()
	o := session.NewOrder("ord-7", "shop-1", "Asha", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	var err error
	o, err = o.AddItem(catalog.Product{ID: "a", ItemCode: "SAR-001", SellingPrice: decimal.RequireFromString("1200.50")}, 2)
	require.NoError(t, err)
	o, err = o.AddItem(catalog.Product{ID: "b", ItemCode: "KUR-014", SellingPrice: decimal.RequireFromString("899")}, 1)
	require.NoError(t, err)
	o, err = o.ConvertToPI(decimal.NewFromInt(discount))
	require.NoError(t, err)
	return o
}

func TestRenderProformaTotals(t *testing.T) {
	doc, err := Render(quotedOrder(t, 10), KindProforma)
	require.NoError(t, err)

	assert.Equal(t, "PROFORMA INVOICE", doc.Title)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "2401", doc.Lines[0].Amount.String())
	assert.Equal(t, "3300", doc.Subtotal.String())
	assert.Equal(t, "330", doc.DiscountAmount.String())
	assert.Equal(t, "2970", doc.GrandTotal.String())
	assert.True(t, doc.ShowDiscount())

	text := doc.Text()
	assert.Contains(t, text, "Discount (10%)")
	assert.Contains(t, text, "₹2970.00")
	assert.Contains(t, text, "SAR-001")
}

func TestRenderHidesZeroDiscount(t *testing.T) {
	doc, err := Render(quotedOrder(t, 0), KindProforma)
	require.NoError(t, err)
	assert.False(t, doc.ShowDiscount())
	assert.NotContains(t, doc.Text(), "Discount")
}

func TestRenderIsDeterministic(t *testing.T) {
	o := quotedOrder(t, 5)
	first, err := Render(o, KindProforma)
	require.NoError(t, err)
	second, err := Render(o, KindProforma)
	require.NoError(t, err)
	assert.Equal(t, first.Text(), second.Text())
}

func TestRenderUsesSnapshotDiscountOnly(t *testing.T) {
	snap := quotedOrder(t, 10)
	doc, err := Render(snap, KindProforma)
	require.NoError(t, err)

	snap.DiscountPercent = decimal.NewFromInt(50)
	assert.Equal(t, "2970", doc.GrandTotal.String())
}

func TestRenderInvoiceRequiresSold(t *testing.T) {
	o := quotedOrder(t, 10)
	_, err := Render(o, KindInvoice)
	assert.True(t, apperr.Is(err, apperr.CodeStateViolation))

	sold, err := o.Finalize()
	require.NoError(t, err)
	doc, err := Render(sold, KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, "TAX INVOICE", doc.Title)
	assert.True(t, doc.GrandTotal.Equal(*sold.FinalTotal))

	_, err = Render(sold, KindProforma)
	assert.True(t, apperr.Is(err, apperr.CodeStateViolation))
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := Render(quotedOrder(t, 0), Kind("receipt"))
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestLabels(t *testing.T) {
	out := Labels([]catalog.Product{{ItemCode: "A/1"}, {ItemCode: "B/2"}})
	assert.Equal(t, "[ A/1 ]\n[ B/2 ]\n", out)
}
