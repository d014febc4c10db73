package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"
	"shop-pos/internal/pos/session"
	"shop-pos/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService runs the basket lifecycle on the store side. Every guard of
// the session state machine is checked against the stored snapshot before
// the repository is touched; the repository re-checks status under a row
// lock.
type OrderService struct {
	orders    OrderRepository
	catalog   CatalogRepository
	locker    Locker
	publisher EventPublisher
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orders OrderRepository,
	catalog CatalogRepository,
	locker Locker,
	publisher EventPublisher,
	lockTTL time.Duration,
) *OrderService {
	return &OrderService{
		orders:    orders,
		catalog:   catalog,
		locker:    locker,
		publisher: publisher,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// CreateBasketRequest opens a basket
type CreateBasketRequest struct {
	ShopID     string `json:"shop_id" binding:"required"`
	ClientName string `json:"client_name" binding:"required"`
}

// CreateBasketResponse carries the new order id
type CreateBasketResponse struct {
	OrderID    string `json:"order_id"`
	ClientName string `json:"client_name"`
}

// AddItemRequest adds a product to a basket
type AddItemRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Qty       int    `json:"qty"`
}

// ChangeQtyRequest adjusts a line by Change
type ChangeQtyRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Change    int    `json:"change"`
}

// ConvertRequest turns a basket into a proforma invoice
type ConvertRequest struct {
	OrderID         string          `json:"order_id" binding:"required"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (s *OrderService) fail(operation string, err error) error {
	util.OrdersFailedTotal.WithLabelValues(operation, string(apperr.CodeOf(err))).Inc()
	return err
}

// CreateBasket creates the client and its bucket order
func (s *OrderService) CreateBasket(ctx context.Context, req *CreateBasketRequest) (*CreateBasketResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateBasket")
	defer span.End()

	name := strings.TrimSpace(req.ClientName)
	if name == "" {
		return nil, s.fail("create", apperr.Validation("client name is required"))
	}
	if strings.TrimSpace(req.ShopID) == "" {
		return nil, s.fail("create", apperr.Validation("shop id is required"))
	}

	order := &models.Order{
		ID:         uuid.New().String(),
		ClientID:   uuid.New().String(),
		ShopID:     req.ShopID,
		ClientName: name,
	}
	if err := s.orders.CreateBasket(ctx, order); err != nil {
		return nil, s.fail("create", fmt.Errorf("failed to create basket: %w", err))
	}

	util.BasketsCreatedTotal.Inc()
	s.logger.Info("Basket created",
		zap.String("order_id", order.ID),
		zap.String("shop_id", order.ShopID))

	event := &models.OrderCreatedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderCreated),
		OrderID:    order.ID,
		ShopID:     order.ShopID,
		ClientName: name,
	}
	if err := s.publisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	return &CreateBasketResponse{OrderID: order.ID, ClientName: name}, nil
}

// GetOrder returns the authoritative snapshot of an order
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (session.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return session.Order{}, err
	}
	items, err := s.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return session.Order{}, err
	}
	return toSnapshot(order, items), nil
}

// ActiveBucket returns the latest draft of a shop; ok is false when none exists.
func (s *OrderService) ActiveBucket(ctx context.Context, shopID string) (snap session.Order, ok bool, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ActiveBucket")
	defer span.End()

	order, err := s.orders.GetLatestBucket(ctx, shopID)
	if err != nil || order == nil {
		return session.Order{}, false, err
	}
	items, err := s.orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		return session.Order{}, false, err
	}
	return toSnapshot(order, items), true, nil
}

// ListOrders lists a shop's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, shopID string) ([]session.Summary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListOrders")
	defer span.End()

	orders, err := s.orders.ListOrders(ctx, shopID)
	if err != nil {
		return nil, err
	}
	out := make([]session.Summary, 0, len(orders))
	for _, o := range orders {
		out = append(out, toSummary(o))
	}
	return out, nil
}

// AddItem upserts a line with the product's current selling price
func (s *OrderService) AddItem(ctx context.Context, req *AddItemRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.AddItem")
	defer span.End()

	qty := req.Qty
	if qty == 0 {
		qty = 1
	}

	snap, err := s.GetOrder(ctx, req.OrderID)
	if err != nil {
		return s.fail("add_item", err)
	}
	row, err := s.catalog.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return s.fail("add_item", err)
	}
	product := toProduct(*row)
	if _, err := snap.AddItem(product, qty); err != nil {
		return s.fail("add_item", err)
	}

	if err := s.orders.UpsertItem(ctx, req.OrderID, req.ProductID, qty, product.SellingPrice); err != nil {
		return s.fail("add_item", err)
	}

	util.BasketItemsAddedTotal.Add(float64(qty))
	s.logger.Debug("Item added",
		zap.String("order_id", req.OrderID),
		zap.String("product_id", req.ProductID),
		zap.Int("qty", qty))
	return nil
}

// ChangeQty adjusts a line; a result below 1 removes it
func (s *OrderService) ChangeQty(ctx context.Context, req *ChangeQtyRequest) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ChangeQty")
	defer span.End()

	snap, err := s.GetOrder(ctx, req.OrderID)
	if err != nil {
		return s.fail("change_qty", err)
	}
	if _, _, err := snap.UpdateQty(req.ProductID, req.Change); err != nil {
		return s.fail("change_qty", err)
	}

	removed, err := s.orders.ChangeQty(ctx, req.OrderID, req.ProductID, req.Change)
	if err != nil {
		return s.fail("change_qty", err)
	}
	if removed {
		s.logger.Debug("Line removed by quantity change",
			zap.String("order_id", req.OrderID),
			zap.String("product_id", req.ProductID))
	}
	return nil
}

// RemoveItem deletes a line; an absent line is a no-op
func (s *OrderService) RemoveItem(ctx context.Context, orderID, productID string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.RemoveItem")
	defer span.End()

	snap, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return s.fail("remove_item", err)
	}
	if _, err := snap.RemoveItem(productID); err != nil {
		return s.fail("remove_item", err)
	}
	if _, present := snap.Item(productID); !present {
		return nil
	}
	if err := s.orders.DeleteItem(ctx, orderID, productID); err != nil {
		return s.fail("remove_item", err)
	}
	return nil
}

// ConvertToPI stamps a discount and moves a bucket to pi
func (s *OrderService) ConvertToPI(ctx context.Context, req *ConvertRequest) (decimal.Decimal, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ConvertToPI")
	defer span.End()

	snap, err := s.GetOrder(ctx, req.OrderID)
	if err != nil {
		return decimal.Zero, s.fail("convert_to_pi", err)
	}
	quoted, err := snap.ConvertToPI(req.DiscountPercent)
	if err != nil {
		return decimal.Zero, s.fail("convert_to_pi", err)
	}

	order, err := s.orders.ConvertToPI(ctx, req.OrderID, req.DiscountPercent)
	if err != nil {
		return decimal.Zero, s.fail("convert_to_pi", err)
	}

	util.OrdersConvertedTotal.Inc()
	s.logger.Info("Order converted to proforma",
		zap.String("order_id", order.ID),
		zap.String("discount_percent", req.DiscountPercent.String()))

	event := &models.OrderConvertedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeOrderConvertedPI),
		OrderID:         order.ID,
		ShopID:          order.ShopID,
		DiscountPercent: req.DiscountPercent,
		Total:           quoted.GrandTotal().Round(2),
	}
	if err := s.publisher.PublishOrderConverted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderConverted event", zap.Error(err))
	}

	return order.FinalTotal, nil
}

// FinalizeSale sells an order and deducts its stock exactly once. A second
// finalize, concurrent or later, is a state violation.
func (s *OrderService) FinalizeSale(ctx context.Context, orderID string) (session.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.FinalizeSale")
	defer span.End()

	start := time.Now()
	defer func() {
		util.FinalizeLatency.Observe(time.Since(start).Seconds())
	}()

	lockKey := "finalize:" + orderID
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return session.Order{}, s.fail("finalize", apperr.Wrap(apperr.CodeInternal, err, "failed to acquire finalize lock"))
	}
	if !ok {
		return session.Order{}, s.fail("finalize", apperr.Newf(apperr.CodeStateViolation, "order %s is already being finalized", orderID))
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
			s.logger.Warn("Failed to release finalize lock", zap.String("order_id", orderID), zap.Error(err))
		}
	}()

	snap, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return session.Order{}, s.fail("finalize", err)
	}
	if _, err := snap.Finalize(); err != nil {
		return session.Order{}, s.fail("finalize", err)
	}

	order, sold, err := s.orders.FinalizeSale(ctx, orderID)
	if err != nil {
		return session.Order{}, s.fail("finalize", err)
	}

	util.OrdersFinalizedTotal.Inc()
	for _, line := range sold {
		util.StockDeductedTotal.WithLabelValues("godown").Add(float64(line.FromGodown))
		util.StockDeductedTotal.WithLabelValues("display").Add(float64(line.FromDisplay))
	}
	s.logger.Info("Sale finalized",
		zap.String("order_id", order.ID),
		zap.String("final_total", order.FinalTotal.StringFixed(2)),
		zap.Int("lines", len(sold)))

	event := &models.OrderFinalizedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderFinalized),
		OrderID:    order.ID,
		ShopID:     order.ShopID,
		FinalTotal: order.FinalTotal,
		Items:      sold,
	}
	if err := s.publisher.PublishOrderFinalized(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderFinalized event", zap.Error(err))
	}

	result := snap.Clone()
	result.Status = session.StatusSold
	total := order.FinalTotal
	result.FinalTotal = &total
	return result, nil
}

// DeleteOrder removes a draft bucket
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder")
	defer span.End()

	snap, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return s.fail("delete", err)
	}
	if err := snap.CheckDelete(); err != nil {
		return s.fail("delete", err)
	}

	order, err := s.orders.DeleteOrder(ctx, orderID)
	if err != nil {
		return s.fail("delete", err)
	}

	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Draft deleted", zap.String("order_id", orderID))

	event := &models.OrderDeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderDeleted),
		OrderID:   order.ID,
		ShopID:    order.ShopID,
	}
	if err := s.publisher.PublishOrderDeleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderDeleted event", zap.Error(err))
	}
	return nil
}
