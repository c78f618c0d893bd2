package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events. Order events are keyed by order
// number, inbound messages by phone.
type EventPublisher struct {
	orders  *Producer
	inbound *Producer
}

// NewEventPublisher creates a new event publisher; inbound may be nil when messages
// are handled synchronously.
func NewEventPublisher(orders, inbound *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, inbound: inbound}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	return ep.orders.PublishEvent(ctx, orderKey(event.OrderNumber), event)
}

// PublishOrderStatusChanged publishes OrderStatusChanged event
func (ep *EventPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return ep.orders.PublishEvent(ctx, orderKey(event.OrderNumber), event)
}

// PublishInbound queues one customer message for the inbound worker
func (ep *EventPublisher) PublishInbound(ctx context.Context, event *models.InboundMessageEvent) error {
	if ep.inbound == nil {
		return fmt.Errorf("inbound topic not configured")
	}
	return ep.inbound.PublishEvent(ctx, event.Phone, event)
}

func orderKey(number string) string {
	return "order-" + number
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderStatusChanged func(context.Context, *models.OrderStatusChangedEvent) error
	onInboundMessage     func(context.Context, *models.InboundMessageEvent) error
	logger               *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderStatusChanged registers a handler for OrderStatusChanged events
func (eh *EventHandler) OnOrderStatusChanged(handler func(context.Context, *models.OrderStatusChangedEvent) error) {
	eh.onOrderStatusChanged = handler
}

// OnInboundMessage registers a handler for InboundMessage events
func (eh *EventHandler) OnInboundMessage(handler func(context.Context, *models.InboundMessageEvent) error) {
	eh.onInboundMessage = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderStatusChanged:
		if eh.onOrderStatusChanged != nil {
			var event models.OrderStatusChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderStatusChanged event: %w", err)
			}
			return eh.onOrderStatusChanged(ctx, &event)
		}

	case models.EventTypeInboundMessage:
		if eh.onInboundMessage != nil {
			var event models.InboundMessageEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal InboundMessage event: %w", err)
			}
			return eh.onInboundMessage(ctx, &event)
		}

	default:
		eh.logger.Debug("Skipping event", zap.String("type", baseEvent.EventType))
	}

	return nil
}
