package worker

import (
	"context"

	"shop-pos/internal/broker"
	"shop-pos/internal/models"
	"shop-pos/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageSource is the consumer side of the order topic.
type MessageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// SaleHandler reacts to finalized sales.
type SaleHandler interface {
	HandleOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error
}

// OrderEventWorker consumes order lifecycle events and refreshes inventory
// state after each sale.
type OrderEventWorker struct {
	source       MessageSource
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewOrderEventWorker creates a new order event worker
func NewOrderEventWorker(source MessageSource, sales SaleHandler) *OrderEventWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderFinalized(sales.HandleOrderFinalized)

	return &OrderEventWorker{
		source:       source,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Handle routes a single message. Exposed for tests and replay tooling.
func (w *OrderEventWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

// Start blocks consuming until ctx is cancelled
func (w *OrderEventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting order event worker")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *OrderEventWorker) Stop() error {
	w.logger.Info("Stopping order event worker")
	return w.source.Close()
}
