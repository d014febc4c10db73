package inventory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
	"shop-pos/internal/util"

	"go.uber.org/zap"
)

// Source fetches the full item list of a shop from the remote store.
type Source interface {
	Inventory(ctx context.Context, shopID string) ([]catalog.Product, error)
}

// Cache holds the last successfully loaded item list of one shop and filters
// it locally.
type Cache struct {
	source Source
	logger *zap.Logger

	mu     sync.RWMutex
	shopID string
	items  []catalog.Product
}

// NewCache creates an empty cache backed by source.
func NewCache(source Source) *Cache {
	return &Cache{
		source: source,
		logger: util.GetLogger(),
	}
}

// Load replaces the cache with the shop's current inventory. On failure the
// previous contents stay in place and a retryable error is returned.
func (c *Cache) Load(ctx context.Context, shopID string) ([]catalog.Product, error) {
	if shopID == "" {
		return nil, apperr.Validation("shop id is required")
	}

	items, err := c.source.Inventory(ctx, shopID)
	if err != nil {
		c.logger.Warn("Inventory load failed, keeping previous cache",
			zap.String("shop_id", shopID),
			zap.Error(err))
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, apperr.Transport(err, fmt.Sprintf("load inventory for shop %s", shopID))
	}

	fresh := make([]catalog.Product, len(items))
	copy(fresh, items)

	c.mu.Lock()
	c.shopID = shopID
	c.items = fresh
	c.mu.Unlock()

	c.logger.Debug("Inventory cache replaced",
		zap.String("shop_id", shopID),
		zap.Int("count", len(fresh)))
	return c.All(), nil
}

// Filter returns the cached items whose code, category or vendor contain term,
// ignoring case. A blank term returns every cached item.
func (c *Cache) Filter(term string) []catalog.Product {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return c.All()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Product, 0)
	for _, p := range c.items {
		if strings.Contains(strings.ToLower(p.SearchText()), needle) {
			out = append(out, p)
		}
	}
	return out
}

// All returns a copy of the cached items in load order.
func (c *Cache) All() []catalog.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]catalog.Product, len(c.items))
	copy(out, c.items)
	return out
}

// Find returns the cached product with the given id.
func (c *Cache) Find(productID string) (catalog.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.items {
		if p.ID == productID {
			return p, true
		}
	}
	return catalog.Product{}, false
}

// ShopID returns the shop of the cached items.
func (c *Cache) ShopID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shopID
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
