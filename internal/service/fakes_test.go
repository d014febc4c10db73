package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"
	"shop-pos/internal/store"

	"github.com/shopspring/decimal"
)

// memRepo keeps orders, lines and products in maps. It implements both
// OrderRepository and CatalogRepository.
type memRepo struct {
	mu       sync.Mutex
	shops    []models.Shop
	products map[string]models.InventoryRow
	orders   map[string]*models.Order
	items    map[string][]models.OrderItem
	calls    map[string]int
	fail     map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		products: map[string]models.InventoryRow{},
		orders:   map[string]*models.Order{},
		items:    map[string][]models.OrderItem{},
		calls:    map[string]int{},
		fail:     map[string]error{},
	}
}

func (r *memRepo) record(name string) error {
	r.calls[name]++
	return r.fail[name]
}

func (r *memRepo) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func (r *memRepo) addProduct(p models.InventoryRow) {
	r.products[p.ID] = p
}

func (r *memRepo) ListShops(ctx context.Context) ([]models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("ListShops"); err != nil {
		return nil, err
	}
	return append([]models.Shop(nil), r.shops...), nil
}

func (r *memRepo) SearchShops(ctx context.Context, term string) ([]models.Shop, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("SearchShops"); err != nil {
		return nil, err
	}
	return append([]models.Shop(nil), r.shops...), nil
}

func (r *memRepo) GetInventoryByShop(ctx context.Context, shopID string) ([]models.InventoryRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("GetInventoryByShop"); err != nil {
		return nil, err
	}
	rows := make([]models.InventoryRow, 0, len(r.products))
	for _, p := range r.products {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ItemCode < rows[j].ItemCode })
	return rows, nil
}

func (r *memRepo) GetProductByCode(ctx context.Context, code string) (*models.InventoryRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ItemCode == code {
			p := p
			return &p, nil
		}
	}
	return nil, apperr.Newf(apperr.CodeNotFound, "product not found: %s", code)
}

func (r *memRepo) GetProductByID(ctx context.Context, id string) (*models.InventoryRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "product not found: %s", id)
	}
	return &p, nil
}

func (r *memRepo) CreateBasket(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("CreateBasket"); err != nil {
		return err
	}
	o := *order
	o.Status = models.OrderStatusBucket
	o.CreatedAt = time.Now()
	r.orders[o.ID] = &o
	return nil
}

func (r *memRepo) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "order not found: %s", id)
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.OrderItem(nil), r.items[orderID]...), nil
}

func (r *memRepo) GetLatestBucket(ctx context.Context, shopID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Order
	for _, o := range r.orders {
		if o.ShopID != shopID || o.Status != models.OrderStatusBucket {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memRepo) ListOrders(ctx context.Context, shopID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.orders {
		if o.ShopID == shopID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memRepo) UpsertItem(ctx context.Context, orderID, productID string, qty int, unitPrice decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("UpsertItem"); err != nil {
		return err
	}
	lines := r.items[orderID]
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += qty
			return nil
		}
	}
	r.items[orderID] = append(lines, models.OrderItem{
		OrderID:   orderID,
		ProductID: productID,
		ItemCode:  r.products[productID].ItemCode,
		Quantity:  qty,
		UnitPrice: unitPrice,
	})
	return nil
}

func (r *memRepo) ChangeQty(ctx context.Context, orderID, productID string, delta int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("ChangeQty"); err != nil {
		return false, err
	}
	lines := r.items[orderID]
	for i := range lines {
		if lines[i].ProductID != productID {
			continue
		}
		if lines[i].Quantity+delta < 1 {
			r.items[orderID] = append(lines[:i], lines[i+1:]...)
			return true, nil
		}
		lines[i].Quantity += delta
		return false, nil
	}
	return false, apperr.NotFound("line not found")
}

func (r *memRepo) DeleteItem(ctx context.Context, orderID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteItem"); err != nil {
		return err
	}
	lines := r.items[orderID]
	for i := range lines {
		if lines[i].ProductID == productID {
			r.items[orderID] = append(lines[:i], lines[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) ConvertToPI(ctx context.Context, orderID string, discount decimal.Decimal) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("ConvertToPI"); err != nil {
		return nil, err
	}
	o := r.orders[orderID]
	o.Status = models.OrderStatusPI
	o.DiscountPercent = discount
	o.FinalTotal = r.total(orderID, discount)
	cp := *o
	return &cp, nil
}

func (r *memRepo) total(orderID string, discount decimal.Decimal) decimal.Decimal {
	sub := decimal.Zero
	for _, it := range r.items[orderID] {
		sub = sub.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	off := sub.Mul(discount).Div(decimal.NewFromInt(100))
	return sub.Sub(off).Round(2)
}

func (r *memRepo) FinalizeSale(ctx context.Context, orderID string) (*models.Order, []models.SoldItemData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("FinalizeSale"); err != nil {
		return nil, nil, err
	}
	o := r.orders[orderID]
	if o.Status == models.OrderStatusSold {
		return nil, nil, apperr.StateViolation("already sold")
	}
	sold := make([]models.SoldItemData, 0, len(r.items[orderID]))
	for _, it := range r.items[orderID] {
		p := r.products[it.ProductID]
		d := store.Waterfall(p.QtyGodown, p.QtyDisplay, it.Quantity)
		p.QtyGodown, p.QtyDisplay = d.Godown, d.Display
		r.products[it.ProductID] = p
		sold = append(sold, models.SoldItemData{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			FromGodown:  d.FromGodown,
			FromDisplay: d.FromDisplay,
		})
	}
	o.Status = models.OrderStatusSold
	o.FinalTotal = r.total(orderID, o.DiscountPercent)
	cp := *o
	return &cp, sold, nil
}

func (r *memRepo) DeleteOrder(ctx context.Context, orderID string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("DeleteOrder"); err != nil {
		return nil, err
	}
	o := *r.orders[orderID]
	delete(r.orders, orderID)
	delete(r.items, orderID)
	return &o, nil
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
	err      error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return "", false, l.err
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := "token-" + key
	l.held[key] = token
	return token, true, nil
}

func (l *fakeLocker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	l.released = append(l.released, key)
	return nil
}

type fakePublisher struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	converted []*models.OrderConvertedEvent
	finalized []*models.OrderFinalizedEvent
	deleted   []*models.OrderDeletedEvent
	err       error
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return p.err
}

func (p *fakePublisher) PublishOrderConverted(ctx context.Context, event *models.OrderConvertedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.converted = append(p.converted, event)
	return p.err
}

func (p *fakePublisher) PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finalized = append(p.finalized, event)
	return p.err
}

func (p *fakePublisher) PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, event)
	return p.err
}

type fakeCache struct {
	mu          sync.Mutex
	rows        map[string][]models.InventoryRow
	invalidated []string
	getErr      error
}

func newFakeCache() *fakeCache {
	return &fakeCache{rows: map[string][]models.InventoryRow{}}
}

func (c *fakeCache) GetInventory(ctx context.Context, shopID string) ([]models.InventoryRow, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	rows, ok := c.rows[shopID]
	return rows, ok, nil
}

func (c *fakeCache) SetInventory(ctx context.Context, shopID string, rows []models.InventoryRow, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows[shopID] = rows
	return nil
}

func (c *fakeCache) InvalidateInventory(ctx context.Context, shopID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, shopID)
	c.invalidated = append(c.invalidated, shopID)
	return nil
}

type fakeEventLog struct {
	mu        sync.Mutex
	processed map[string]string
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{processed: map[string]string{}}
}

func (l *fakeEventLog) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.processed[eventID]
	return ok, nil
}

func (l *fakeEventLog) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed[eventID] = eventType
	return nil
}
