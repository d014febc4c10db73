package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-pos/internal/apperr"
	"shop-pos/internal/models"
	"shop-pos/internal/util"

	"go.uber.org/zap"
)

// InventoryService serves shop search and stock listings, cache-aside over
// redis.
type InventoryService struct {
	catalog   CatalogRepository
	cache     InventoryCache
	events    EventLog
	cacheTTL  time.Duration
	minSearch int
	logger    *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(catalog CatalogRepository, cache InventoryCache, events EventLog, cacheTTL time.Duration, minSearch int) *InventoryService {
	if minSearch < 1 {
		minSearch = 1
	}
	return &InventoryService{
		catalog:   catalog,
		cache:     cache,
		events:    events,
		cacheTTL:  cacheTTL,
		minSearch: minSearch,
		logger:    util.GetLogger(),
	}
}

// SearchShops finds shops by a name fragment of at least minSearch characters
func (s *InventoryService) SearchShops(ctx context.Context, name string) ([]models.Shop, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.SearchShops")
	defer span.End()

	term := strings.TrimSpace(name)
	if len([]rune(term)) < s.minSearch {
		return nil, apperr.Newf(apperr.CodeValidation, "search term must be at least %d characters", s.minSearch)
	}
	return s.catalog.SearchShops(ctx, term)
}

// Inventory returns every product of a shop. A redis failure falls back to
// the database.
func (s *InventoryService) Inventory(ctx context.Context, shopID string) ([]models.InventoryRow, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.Inventory")
	defer span.End()

	rows, ok, err := s.cache.GetInventory(ctx, shopID)
	if err != nil {
		s.logger.Warn("Inventory cache read failed, falling back to DB",
			zap.String("shop_id", shopID),
			zap.Error(err))
	}
	if ok {
		util.InventoryCacheHits.Inc()
		return rows, nil
	}
	util.InventoryCacheMisses.Inc()

	rows, err = s.catalog.GetInventoryByShop(ctx, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}

	if err := s.cache.SetInventory(ctx, shopID, rows, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache inventory", zap.String("shop_id", shopID), zap.Error(err))
	}
	return rows, nil
}

// ProductByCode looks a product up by its item code
func (s *InventoryService) ProductByCode(ctx context.Context, code string) (*models.InventoryRow, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.ProductByCode")
	defer span.End()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.Validation("item code is required")
	}
	return s.catalog.GetProductByCode(ctx, code)
}

// WarmCache reloads the listing of every shop into redis.
func (s *InventoryService) WarmCache(ctx context.Context) error {
	shops, err := s.catalog.ListShops(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shops: %w", err)
	}

	s.logger.Info("Starting inventory cache warm-up", zap.Int("shops", len(shops)))
	for _, shop := range shops {
		if err := s.cache.InvalidateInventory(ctx, shop.ID); err != nil {
			s.logger.Warn("Failed to clear cached inventory", zap.String("shop_id", shop.ID), zap.Error(err))
			continue
		}
		if _, err := s.Inventory(ctx, shop.ID); err != nil {
			s.logger.Error("Failed to warm inventory cache", zap.String("shop_id", shop.ID), zap.Error(err))
		}
	}
	s.logger.Info("Inventory cache warm-up completed")
	return nil
}

// HandleOrderFinalized drops the cached listing of the shop whose stock
// changed. Redelivered events are skipped.
func (s *InventoryService) HandleOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	ctx, span := util.StartSpan(ctx, "InventoryService.HandleOrderFinalized")
	defer span.End()

	processed, err := s.events.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		util.EventsProcessedTotal.WithLabelValues(event.EventType, "duplicate").Inc()
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := s.cache.InvalidateInventory(ctx, event.ShopID); err != nil {
		util.EventsProcessedTotal.WithLabelValues(event.EventType, "error").Inc()
		return fmt.Errorf("failed to invalidate inventory cache: %w", err)
	}

	total, _ := event.FinalTotal.Float64()
	util.SalesAmountTotal.WithLabelValues(event.ShopID).Add(total)

	if err := s.events.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.EventsProcessedTotal.WithLabelValues(event.EventType, "ok").Inc()
	s.logger.Info("Inventory cache invalidated after sale",
		zap.String("order_id", event.OrderID),
		zap.String("shop_id", event.ShopID))
	return nil
}
