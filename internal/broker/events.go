package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"shop-pos/internal/models"
	"shop-pos/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func orderKey(orderID string) string {
	return "order-" + orderID
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderConverted publishes OrderConvertedToPI event
func (ep *EventPublisher) PublishOrderConverted(ctx context.Context, event *models.OrderConvertedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderFinalized publishes OrderFinalized event
func (ep *EventPublisher) PublishOrderFinalized(ctx context.Context, event *models.OrderFinalizedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderDeleted publishes OrderDeleted event
func (ep *EventPublisher) PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error {
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// EventHandler routes incoming events to registered callbacks
type EventHandler struct {
	onOrderFinalized func(context.Context, *models.OrderFinalizedEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderFinalized registers a handler for OrderFinalized events
func (eh *EventHandler) OnOrderFinalized(handler func(context.Context, *models.OrderFinalizedEvent) error) {
	eh.onOrderFinalized = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderFinalized:
		if eh.onOrderFinalized != nil {
			var event models.OrderFinalizedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderFinalized event: %w", err)
			}
			return eh.onOrderFinalized(ctx, &event)
		}

	case models.EventTypeOrderCreated, models.EventTypeOrderConvertedPI, models.EventTypeOrderDeleted:
		// no stock effect

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
