package session

import (
	"strings"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"

	"github.com/shopspring/decimal"
)

// Screen is the part of the terminal the user is looking at.
type Screen string

const (
	ScreenSearch    Screen = "search"
	ScreenInventory Screen = "inventory"
	ScreenScan      Screen = "scan"
	ScreenBasket    Screen = "basket"
	ScreenOrders    Screen = "orders"
)

// Session is the explicit context every basket operation runs against. The
// zero value has no shop and no active order.
type Session struct {
	ShopID string
	Screen Screen
	Active *Order
}

// HasActive reports whether an order is being edited.
func (s Session) HasActive() bool { return s.Active != nil }

// ActiveID returns the id of the active order, or "".
func (s Session) ActiveID() string {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID
}

// WithActive returns a copy of s whose active order is o (nil clears it).
func (s Session) WithActive(o *Order) Session {
	next := s
	if o == nil {
		next.Active = nil
		return next
	}
	c := o.Clone()
	next.Active = &c
	return next
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	return s.WithActive(s.Active)
}

// Command is a request against the session.
type Command interface {
	command() string
}

type (
	Create struct {
		ShopID     string
		ClientName string
	}
	AddItem struct {
		Product catalog.Product
		Qty     int
	}
	UpdateQty struct {
		ProductID string
		Delta     int
	}
	RemoveItem struct {
		ProductID string
	}
	ConvertToPI struct {
		DiscountPercent decimal.Decimal
	}
	Finalize    struct{}
	DeleteDraft struct{}
	Exit        struct{}
	Resume      struct {
		OrderID string
	}
)

func (Create) command() string      { return "create" }
func (AddItem) command() string     { return "add_item" }
func (UpdateQty) command() string   { return "update_qty" }
func (RemoveItem) command() string  { return "remove_item" }
func (ConvertToPI) command() string { return "convert_to_pi" }
func (Finalize) command() string    { return "finalize" }
func (DeleteDraft) command() string { return "delete_draft" }
func (Exit) command() string        { return "exit" }
func (Resume) command() string      { return "resume" }

// Name returns a short label for logs and metrics.
func Name(cmd Command) string { return cmd.command() }

// CallKind names a remote store operation.
type CallKind string

const (
	CallCreateOrder  CallKind = "create_order"
	CallAddItem      CallKind = "add_item"
	CallChangeQty    CallKind = "change_qty"
	CallRemoveItem   CallKind = "remove_item"
	CallConvertToPI  CallKind = "convert_to_pi"
	CallFinalizeSale CallKind = "finalize_sale"
	CallDeleteOrder  CallKind = "delete_order"
	CallFetchOrder   CallKind = "fetch_order"
)

// Call is one remote operation a plan needs before it can commit.
type Call struct {
	Kind       CallKind
	OrderID    string
	ShopID     string
	ClientName string
	ProductID  string
	Qty        int
	Delta      int
	Discount   decimal.Decimal
}

// Plan is the outcome of validating a command: the calls to issue and the
// session expected once they succeed.
type Plan struct {
	// Target is the active order id the command was planned against.
	Target string
	// Calls run in order; a failure aborts the rest.
	Calls []Call
	// Next is the projected session. For Create the new id is unknown, so
	// Next has no active order and the caller fills it in.
	Next Session
	// Projected is the order the command is expected to leave behind,
	// including orders that stop being active (finalize, delete).
	Projected *Order
	// Refresh asks the caller to re-read the order after the calls. For
	// Create this replaces the locally built order, including its creation
	// time, with the store's record.
	Refresh bool
}

func requireActive(s Session) (Order, error) {
	if s.Active == nil {
		return Order{}, apperr.StateViolation("no active basket; create one first")
	}
	return *s.Active, nil
}

// PlanCommand validates cmd against s. It performs no I/O; every guard that
// can be decided locally is decided here, before any remote call.
func PlanCommand(s Session, cmd Command) (Plan, error) {
	target := s.ActiveID()

	switch c := cmd.(type) {
	case Create:
		name := strings.TrimSpace(c.ClientName)
		if name == "" {
			return Plan{}, apperr.Validation("client name is required")
		}
		shopID := c.ShopID
		if shopID == "" {
			shopID = s.ShopID
		}
		if shopID == "" {
			return Plan{}, apperr.Validation("select a shop before creating a basket")
		}
		next := s.WithActive(nil)
		next.ShopID = shopID
		return Plan{
			Target:  target,
			Calls:   []Call{{Kind: CallCreateOrder, ShopID: shopID, ClientName: name}},
			Next:    next,
			Refresh: true,
		}, nil

	case AddItem:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		qty := c.Qty
		if qty == 0 {
			qty = 1
		}
		updated, err := o.AddItem(c.Product, qty)
		if err != nil {
			return Plan{}, err
		}
		return mutation(s, updated, Call{Kind: CallAddItem, OrderID: o.ID, ProductID: c.Product.ID, Qty: qty}), nil

	case UpdateQty:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		updated, removed, err := o.UpdateQty(c.ProductID, c.Delta)
		if err != nil {
			return Plan{}, err
		}
		call := Call{Kind: CallChangeQty, OrderID: o.ID, ProductID: c.ProductID, Delta: c.Delta}
		if removed {
			call = Call{Kind: CallRemoveItem, OrderID: o.ID, ProductID: c.ProductID}
		}
		return mutation(s, updated, call), nil

	case RemoveItem:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		updated, err := o.RemoveItem(c.ProductID)
		if err != nil {
			return Plan{}, err
		}
		if _, present := o.Item(c.ProductID); !present {
			return Plan{Target: target, Next: s.Clone(), Projected: &updated}, nil
		}
		return mutation(s, updated, Call{Kind: CallRemoveItem, OrderID: o.ID, ProductID: c.ProductID}), nil

	case ConvertToPI:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		updated, err := o.ConvertToPI(c.DiscountPercent)
		if err != nil {
			return Plan{}, err
		}
		return mutation(s, updated, Call{Kind: CallConvertToPI, OrderID: o.ID, Discount: c.DiscountPercent}), nil

	case Finalize:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		sold, err := o.Finalize()
		if err != nil {
			return Plan{}, err
		}
		return Plan{
			Target: target,
			Calls: []Call{
				{Kind: CallFinalizeSale, OrderID: o.ID},
				{Kind: CallFetchOrder, OrderID: o.ID},
			},
			Next:      s.WithActive(nil),
			Projected: &sold,
		}, nil

	case DeleteDraft:
		o, err := requireActive(s)
		if err != nil {
			return Plan{}, err
		}
		if err := o.CheckDelete(); err != nil {
			return Plan{}, err
		}
		return Plan{
			Target: target,
			Calls:  []Call{{Kind: CallDeleteOrder, OrderID: o.ID}},
			Next:   s.WithActive(nil),
		}, nil

	case Exit:
		return Plan{Target: target, Next: s.WithActive(nil)}, nil

	case Resume:
		if c.OrderID == "" {
			return Plan{}, apperr.Validation("order id is required")
		}
		return Plan{
			Target:  target,
			Calls:   []Call{{Kind: CallFetchOrder, OrderID: c.OrderID}},
			Next:    s.Clone(),
			Refresh: true,
		}, nil
	}

	return Plan{}, apperr.Newf(apperr.CodeValidation, "unsupported command %T", cmd)
}

func mutation(s Session, updated Order, call Call) Plan {
	return Plan{
		Target:    s.ActiveID(),
		Calls:     []Call{call},
		Next:      s.WithActive(&updated),
		Projected: &updated,
		Refresh:   true,
	}
}
