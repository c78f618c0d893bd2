package service

import (
	"context"
	"fmt"
	"time"

	"order-agent/internal/conversation"
	"order-agent/internal/models"
	"order-agent/internal/util"
	"order-agent/internal/whatsapp"

	"go.uber.org/zap"
)

// EventLedger remembers which events were already handled; *store.Store implements it.
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Notifier tells customers when staff move their order along.
type Notifier struct {
	ledger        EventLedger
	sender        whatsapp.Sender
	senderTimeout time.Duration
	logger        *zap.Logger
}

// NewNotifier creates a notifier; ledger may be nil to skip redelivery checks.
func NewNotifier(ledger EventLedger, sender whatsapp.Sender, senderTimeout time.Duration) *Notifier {
	return &Notifier{
		ledger:        ledger,
		sender:        sender,
		senderTimeout: senderTimeout,
		logger:        util.GetLogger(),
	}
}

// HandleOrderStatusChanged sends the status update message for one event
func (n *Notifier) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	ctx, span := util.StartSpan(ctx, "Notifier.HandleOrderStatusChanged")
	defer span.End()

	if n.ledger != nil && event.EventID != "" {
		processed, err := n.ledger.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if processed {
			n.logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}
	}

	if event.Phone == "" {
		n.logger.Warn("Status change without customer phone", zap.String("order_number", event.OrderNumber))
		return nil
	}

	sendCtx := ctx
	if n.senderTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.senderTimeout)
		defer cancel()
	}

	text := conversation.StatusUpdateReply(event.OrderNumber, event.NewStatus)
	if err := n.sender.Send(sendCtx, event.Phone, text); err != nil {
		util.RecordError(span, err)
		return fmt.Errorf("failed to send status update for %s: %w", event.OrderNumber, err)
	}

	n.logger.Info("Status update sent",
		zap.String("order_number", event.OrderNumber),
		util.Phone(event.Phone),
		zap.Stringer("status", event.NewStatus))

	if n.ledger != nil && event.EventID != "" {
		if err := n.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
			n.logger.Error("Failed to mark event processed", zap.String("event_id", event.EventID), zap.Error(err))
		}
	}
	return nil
}
