package worker

import (
	"context"

	"order-agent/internal/broker"
	"order-agent/internal/models"
	"order-agent/internal/service"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes order events and notifies customers of status changes
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier *service.Notifier) *NotificationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderStatusChanged(notifier.HandleOrderStatusChanged)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// Responder handles one customer message end to end; *service.Agent implements it.
type Responder interface {
	Respond(ctx context.Context, phone, text string) error
}

// InboundWorker applies queued customer messages. The inbound topic is keyed by phone,
// so one partition consumer sees a phone's messages in arrival order.
type InboundWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewInboundWorker creates a new inbound worker
func NewInboundWorker(consumer *broker.Consumer, responder Responder) *InboundWorker {
	w := &InboundWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnInboundMessage(InboundHandler(responder))
	return w
}

// InboundHandler adapts a Responder to queued inbound events.
func InboundHandler(responder Responder) func(context.Context, *models.InboundMessageEvent) error {
	return func(ctx context.Context, event *models.InboundMessageEvent) error {
		util.MessagesReceivedTotal.WithLabelValues("queue").Inc()
		return responder.Respond(ctx, event.Phone, event.Text)
	}
}

// Start starts the inbound worker
func (w *InboundWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting inbound worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the inbound worker
func (w *InboundWorker) Stop() error {
	w.logger.Info("Stopping inbound worker")
	return w.consumer.Close()
}
