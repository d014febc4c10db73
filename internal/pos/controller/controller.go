package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/pos/session"
	"shop-pos/internal/pos/view"
	"shop-pos/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the part of the remote order store the controller drives.
type Store interface {
	CreateOrder(ctx context.Context, shopID, clientName string) (string, error)
	AddItem(ctx context.Context, orderID, productID string, qty int) error
	ChangeQty(ctx context.Context, orderID, productID string, delta int) error
	RemoveItem(ctx context.Context, orderID, productID string) error
	GetOrder(ctx context.Context, orderID string) (session.Order, error)
	ConvertToPI(ctx context.Context, orderID string, discount decimal.Decimal) error
	FinalizeSale(ctx context.Context, orderID string) error
	DeleteOrder(ctx context.Context, orderID string) error
}

// Outcome is the result of a dispatched command.
type Outcome struct {
	Session session.Session
	// Order is the latest snapshot of the order the command touched, also
	// when it is no longer active (finalize).
	Order *session.Order
	// Discarded is set when the response arrived after the active order
	// changed and was dropped.
	Discarded bool
}

// Controller owns the single active-session pointer of one terminal.
type Controller struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	sess      session.Session
	listeners []func(view.View)
}

// New creates a controller for a shop.
func New(store Store, shopID string) *Controller {
	return &Controller{
		store:  store,
		logger: util.GetLogger(),
		now:    time.Now,
		sess:   session.Session{ShopID: shopID, Screen: session.ScreenSearch},
	}
}

// Subscribe registers fn to receive the view after every commit and
// navigation. fn runs on the goroutine that caused the change.
func (c *Controller) Subscribe(fn func(view.View)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Session returns a copy of the current session.
func (c *Controller) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// View derives the current view.
func (c *Controller) View() view.View {
	return view.Derive(c.Session())
}

// Navigate switches the current screen.
func (c *Controller) Navigate(screen session.Screen) view.View {
	c.mu.Lock()
	c.sess.Screen = screen
	s := c.sess.Clone()
	c.mu.Unlock()
	return c.publish(s)
}

// SelectShop changes the shop. An active order of another shop is exited,
// not deleted.
func (c *Controller) SelectShop(shopID string) view.View {
	c.mu.Lock()
	if c.sess.Active != nil && c.sess.Active.ShopID != "" && c.sess.Active.ShopID != shopID {
		c.logger.Info("Leaving basket of previous shop",
			zap.String("order_id", c.sess.Active.ID),
			zap.String("shop_id", shopID))
		c.sess.Active = nil
	}
	c.sess.ShopID = shopID
	s := c.sess.Clone()
	c.mu.Unlock()
	return c.publish(s)
}

func (c *Controller) publish(s session.Session) view.View {
	v := view.Derive(s)
	c.mu.Lock()
	listeners := append([]func(view.View){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(v)
	}
	return v
}

// Dispatch plans cmd against the current session, runs the remote calls and
// commits the result. Nothing changes locally until the store has accepted
// the mutation, and a result is dropped if the active order changed while
// the calls were in flight.
func (c *Controller) Dispatch(ctx context.Context, cmd session.Command) (Outcome, error) {
	name := session.Name(cmd)
	ctx, span := util.StartSpan(ctx, "Controller."+name)
	defer span.End()

	start := c.Session()
	plan, err := session.PlanCommand(start, cmd)
	if err != nil {
		util.SessionCommandsTotal.WithLabelValues(name, string(apperr.CodeOf(err))).Inc()
		return Outcome{Session: start}, err
	}

	next, affected, err := c.execute(ctx, plan)
	if err != nil {
		util.SessionCommandsTotal.WithLabelValues(name, string(apperr.CodeOf(err))).Inc()
		c.logger.Warn("Session command failed",
			zap.String("command", name),
			zap.String("order_id", plan.Target),
			zap.Error(err))
		return Outcome{Session: c.Session()}, err
	}

	if _, isResume := cmd.(session.Resume); isResume && affected != nil {
		if affected.Status == session.StatusSold {
			err := apperr.Newf(apperr.CodeStateViolation, "order %s is sold and cannot be reopened", affected.ID)
			return Outcome{Session: c.Session(), Order: affected}, err
		}
		next = next.WithActive(affected)
	}

	c.mu.Lock()
	if c.sess.ActiveID() != plan.Target {
		current := c.sess.Clone()
		c.mu.Unlock()
		util.StaleResponsesTotal.Inc()
		c.logger.Debug("Discarding stale response",
			zap.String("command", name),
			zap.String("target", plan.Target),
			zap.String("active", current.ActiveID()))
		return Outcome{Session: current, Discarded: true}, nil
	}
	next.Screen = c.sess.Screen
	c.sess = next
	committed := next.Clone()
	c.mu.Unlock()

	util.SessionCommandsTotal.WithLabelValues(name, "ok").Inc()
	c.publish(committed)
	return Outcome{Session: committed, Order: affected}, nil
}

// execute runs the plan's calls and builds the session to commit.
func (c *Controller) execute(ctx context.Context, plan session.Plan) (session.Session, *session.Order, error) {
	next := plan.Next.Clone()
	affected := plan.Projected
	mutated := false

	for _, call := range plan.Calls {
		switch call.Kind {
		case session.CallCreateOrder:
			id, err := c.store.CreateOrder(ctx, call.ShopID, call.ClientName)
			if err != nil {
				return session.Session{}, nil, err
			}
			o := session.NewOrder(id, call.ShopID, call.ClientName, c.now())
			next = next.WithActive(&o)
			affected = &o
			mutated = true

		case session.CallFetchOrder:
			o, err := c.store.GetOrder(ctx, call.OrderID)
			if err != nil {
				if !mutated {
					return session.Session{}, nil, err
				}
				// The mutation was accepted; keep the projection.
				c.logger.Warn("Refresh after mutation failed, using projected order",
					zap.String("order_id", call.OrderID),
					zap.Error(err))
				continue
			}
			affected = &o

		default:
			if err := c.mutate(ctx, call); err != nil {
				return session.Session{}, nil, err
			}
			mutated = true
		}
	}

	if plan.Refresh && mutated && next.Active != nil {
		o, err := c.store.GetOrder(ctx, next.Active.ID)
		if err != nil {
			c.logger.Warn("Refresh after mutation failed, using projected order",
				zap.String("order_id", next.Active.ID),
				zap.Error(err))
		} else {
			c.checkDrift(*next.Active, o)
			next = next.WithActive(&o)
			affected = &o
		}
	}

	return next, affected, nil
}

func (c *Controller) mutate(ctx context.Context, call session.Call) error {
	switch call.Kind {
	case session.CallAddItem:
		return c.store.AddItem(ctx, call.OrderID, call.ProductID, call.Qty)
	case session.CallChangeQty:
		return c.store.ChangeQty(ctx, call.OrderID, call.ProductID, call.Delta)
	case session.CallRemoveItem:
		return c.store.RemoveItem(ctx, call.OrderID, call.ProductID)
	case session.CallConvertToPI:
		return c.store.ConvertToPI(ctx, call.OrderID, call.Discount)
	case session.CallFinalizeSale:
		return c.store.FinalizeSale(ctx, call.OrderID)
	case session.CallDeleteOrder:
		return c.store.DeleteOrder(ctx, call.OrderID)
	}
	return fmt.Errorf("unknown call kind %q", call.Kind)
}

func (c *Controller) checkDrift(projected, remote session.Order) {
	if projected.ItemCount() != remote.ItemCount() || projected.Status != remote.Status {
		c.logger.Warn("Remote order differs from projection",
			zap.String("order_id", remote.ID),
			zap.Int("projected_items", projected.ItemCount()),
			zap.Int("remote_items", remote.ItemCount()),
			zap.String("remote_status", string(remote.Status)))
	}
}

// Create opens a new basket and makes it active.
func (c *Controller) Create(ctx context.Context, clientName string) (Outcome, error) {
	return c.Dispatch(ctx, session.Create{ClientName: clientName})
}

// AddItem adds qty of p to the active basket.
func (c *Controller) AddItem(ctx context.Context, p catalog.Product, qty int) (Outcome, error) {
	return c.Dispatch(ctx, session.AddItem{Product: p, Qty: qty})
}

// UpdateQty changes a line by delta.
func (c *Controller) UpdateQty(ctx context.Context, productID string, delta int) (Outcome, error) {
	return c.Dispatch(ctx, session.UpdateQty{ProductID: productID, Delta: delta})
}

// RemoveItem drops a line.
func (c *Controller) RemoveItem(ctx context.Context, productID string) (Outcome, error) {
	return c.Dispatch(ctx, session.RemoveItem{ProductID: productID})
}

// ConvertToPI quotes the active basket with a discount.
func (c *Controller) ConvertToPI(ctx context.Context, discount decimal.Decimal) (Outcome, error) {
	return c.Dispatch(ctx, session.ConvertToPI{DiscountPercent: discount})
}

// Finalize sells the active order. Outcome.Order holds the sold snapshot.
func (c *Controller) Finalize(ctx context.Context) (Outcome, error) {
	return c.Dispatch(ctx, session.Finalize{})
}

// DeleteDraft deletes the active bucket.
func (c *Controller) DeleteDraft(ctx context.Context) (Outcome, error) {
	return c.Dispatch(ctx, session.DeleteDraft{})
}

// Exit leaves the active order without deleting it.
func (c *Controller) Exit(ctx context.Context) (Outcome, error) {
	return c.Dispatch(ctx, session.Exit{})
}

// Resume makes an existing, unsold order active.
func (c *Controller) Resume(ctx context.Context, orderID string) (Outcome, error) {
	return c.Dispatch(ctx, session.Resume{OrderID: orderID})
}
