package session

import (
	"testing"

	"shop-pos/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSession(t *testing.T) Session {
	t.Helper()
	o, err := newBucket().AddItem(product("p-a", "A-100", "150.00"), 2)
	require.NoError(t, err)
	return Session{ShopID: "shop-1", Screen: ScreenBasket}.WithActive(&o)
}

func TestPlanRequiresActiveSession(t *testing.T) {
	empty := Session{ShopID: "shop-1"}
	commands := []Command{
		AddItem{Product: product("p-a", "A", "1")},
		UpdateQty{ProductID: "p-a", Delta: 1},
		RemoveItem{ProductID: "p-a"},
		ConvertToPI{DiscountPercent: decimal.Zero},
		Finalize{},
		DeleteDraft{},
	}
	for _, cmd := range commands {
		t.Run(Name(cmd), func(t *testing.T) {
			_, err := PlanCommand(empty, cmd)
			assert.True(t, apperr.Is(err, apperr.CodeStateViolation))
		})
	}
}

func TestPlanCreate(t *testing.T) {
	_, err := PlanCommand(Session{ShopID: "shop-1"}, Create{ClientName: "   "})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = PlanCommand(Session{}, Create{ClientName: "Asha"})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	plan, err := PlanCommand(Session{ShopID: "shop-1"}, Create{ClientName: " Asha "})
	require.NoError(t, err)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, Call{Kind: CallCreateOrder, ShopID: "shop-1", ClientName: "Asha"}, plan.Calls[0])
	assert.False(t, plan.Next.HasActive())
	assert.True(t, plan.Refresh)
}

func TestPlanAddItemDefaultsToOne(t *testing.T) {
	s := activeSession(t)
	plan, err := PlanCommand(s, AddItem{Product: product("p-b", "B", "5")})
	require.NoError(t, err)

	require.Len(t, plan.Calls, 1)
	assert.Equal(t, CallAddItem, plan.Calls[0].Kind)
	assert.Equal(t, 1, plan.Calls[0].Qty)
	assert.Equal(t, "ord-1", plan.Target)
	assert.True(t, plan.Refresh)
	assert.Len(t, plan.Next.Active.Items, 2)
	assert.Len(t, s.Active.Items, 1, "planning must not touch the input session")
}

func TestPlanUpdateQtyBecomesRemove(t *testing.T) {
	s := activeSession(t)

	plan, err := PlanCommand(s, UpdateQty{ProductID: "p-a", Delta: -2})
	require.NoError(t, err)
	require.Len(t, plan.Calls, 1)
	assert.Equal(t, CallRemoveItem, plan.Calls[0].Kind)
	assert.Empty(t, plan.Next.Active.Items)

	plan, err = PlanCommand(s, UpdateQty{ProductID: "p-a", Delta: -1})
	require.NoError(t, err)
	assert.Equal(t, CallChangeQty, plan.Calls[0].Kind)
	assert.Equal(t, -1, plan.Calls[0].Delta)
}

func TestPlanRemoveAbsentIssuesNoCall(t *testing.T) {
	plan, err := PlanCommand(activeSession(t), RemoveItem{ProductID: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, plan.Calls)
	assert.Equal(t, "ord-1", plan.Next.ActiveID())
}

func TestPlanConvertRejectsRangeBeforeCalls(t *testing.T) {
	_, err := PlanCommand(activeSession(t), ConvertToPI{DiscountPercent: decimal.NewFromInt(120)})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestPlanFinalizeClearsActive(t *testing.T) {
	plan, err := PlanCommand(activeSession(t), Finalize{})
	require.NoError(t, err)

	require.Len(t, plan.Calls, 2)
	assert.Equal(t, CallFinalizeSale, plan.Calls[0].Kind)
	assert.Equal(t, CallFetchOrder, plan.Calls[1].Kind)
	assert.False(t, plan.Next.HasActive())
	require.NotNil(t, plan.Projected)
	assert.Equal(t, StatusSold, plan.Projected.Status)
}

func TestPlanDeleteDraft(t *testing.T) {
	s := activeSession(t)
	plan, err := PlanCommand(s, DeleteDraft{})
	require.NoError(t, err)
	assert.Equal(t, CallDeleteOrder, plan.Calls[0].Kind)
	assert.False(t, plan.Next.HasActive())

	pi, err := s.Active.ConvertToPI(decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = PlanCommand(s.WithActive(&pi), DeleteDraft{})
	assert.True(t, apperr.Is(err, apperr.CodeStateViolation))
}

func TestPlanExitKeepsShop(t *testing.T) {
	plan, err := PlanCommand(activeSession(t), Exit{})
	require.NoError(t, err)
	assert.Empty(t, plan.Calls)
	assert.False(t, plan.Next.HasActive())
	assert.Equal(t, "shop-1", plan.Next.ShopID)
}

func TestPlanResume(t *testing.T) {
	_, err := PlanCommand(Session{}, Resume{})
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	plan, err := PlanCommand(Session{ShopID: "shop-1"}, Resume{OrderID: "ord-9"})
	require.NoError(t, err)
	assert.Equal(t, []Call{{Kind: CallFetchOrder, OrderID: "ord-9"}}, plan.Calls)
}

func TestScenarioPlannedLifecycle(t *testing.T) {
	o := NewOrder("ord-asha", "shop-1", "Asha", newBucket().CreatedAt)
	s := Session{ShopID: "shop-1"}.WithActive(&o)
	a := product("p-a", "A-100", "150.00")

	for i := 0; i < 2; i++ {
		plan, err := PlanCommand(s, AddItem{Product: a, Qty: 1})
		require.NoError(t, err)
		s = plan.Next
	}
	require.Len(t, s.Active.Items, 1)
	assert.Equal(t, 2, s.Active.Items[0].Quantity)

	plan, err := PlanCommand(s, ConvertToPI{DiscountPercent: decimal.NewFromInt(10)})
	require.NoError(t, err)
	s = plan.Next
	assert.Equal(t, StatusPI, s.Active.Status)
	assert.Equal(t, "10", s.Active.DiscountPercent.String())

	plan, err = PlanCommand(s, Finalize{})
	require.NoError(t, err)
	finalizeCalls := 0
	for _, c := range plan.Calls {
		if c.Kind == CallFinalizeSale {
			finalizeCalls++
		}
	}
	assert.Equal(t, 1, finalizeCalls)
	expected := a.SellingPrice.Mul(decimal.NewFromInt(2)).Mul(decimal.RequireFromString("0.9"))
	assert.True(t, plan.Projected.FinalTotal.Equal(expected))
}
