package service

import (
	"context"
	"time"

	"shop-pos/internal/models"

	"github.com/shopspring/decimal"
)

// CatalogRepository reads shops and stock.
type CatalogRepository interface {
	ListShops(ctx context.Context) ([]models.Shop, error)
	SearchShops(ctx context.Context, term string) ([]models.Shop, error)
	GetInventoryByShop(ctx context.Context, shopID string) ([]models.InventoryRow, error)
	GetProductByCode(ctx context.Context, code string) (*models.InventoryRow, error)
	GetProductByID(ctx context.Context, id string) (*models.InventoryRow, error)
}

// OrderRepository persists baskets and their lines.
type OrderRepository interface {
	CreateBasket(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	GetLatestBucket(ctx context.Context, shopID string) (*models.Order, error)
	ListOrders(ctx context.Context, shopID string) ([]models.Order, error)
	UpsertItem(ctx context.Context, orderID, productID string, qty int, unitPrice decimal.Decimal) error
	ChangeQty(ctx context.Context, orderID, productID string, delta int) (bool, error)
	DeleteItem(ctx context.Context, orderID, productID string) error
	ConvertToPI(ctx context.Context, orderID string, discount decimal.Decimal) (*models.Order, error)
	FinalizeSale(ctx context.Context, orderID string) (*models.Order, []models.SoldItemData, error)
	DeleteOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// EventLog records handled events for idempotent consumers.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// InventoryCache caches per-shop inventory listings.
type InventoryCache interface {
	GetInventory(ctx context.Context, shopID string) ([]models.InventoryRow, bool, error)
	SetInventory(ctx context.Context, shopID string, rows []models.InventoryRow, ttl time.Duration) error
	InvalidateInventory(ctx context.Context, shopID string) error
}

// Locker is a distributed lock.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher publishes order lifecycle events.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConverted(ctx context.Context, event *models.OrderConvertedEvent) error
	PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error
	PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error
}
