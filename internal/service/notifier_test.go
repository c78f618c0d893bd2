package service

import (
	"context"
	"errors"
	"testing"

	"order-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	processed map[string]string
}

func (f *fakeLedger) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	_, ok := f.processed[eventID]
	return ok, nil
}

func (f *fakeLedger) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	f.processed[eventID] = eventType
	return nil
}

func statusEvent() *models.OrderStatusChangedEvent {
	return &models.OrderStatusChangedEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeOrderStatusChanged},
		OrderNumber: "WOR-2025-00001",
		Phone:       phone,
		OldStatus:   models.OrderStatusPreparing,
		NewStatus:   models.OrderStatusOutForDelivery,
	}
}

func TestNotifierSendsOnce(t *testing.T) {
	ledger := &fakeLedger{processed: map[string]string{}}
	sender := &fakeSender{}
	n := NewNotifier(ledger, sender, 0)

	require.NoError(t, n.HandleOrderStatusChanged(context.Background(), statusEvent()))
	require.NoError(t, n.HandleOrderStatusChanged(context.Background(), statusEvent()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, phone, sender.sent[0].phone)
	assert.Contains(t, sender.sent[0].text, "Order: WOR-2025-00001")
	assert.Contains(t, sender.sent[0].text, "Status: Out for Delivery")
	assert.Contains(t, sender.sent[0].text, "Your order is on its way!")
	assert.Equal(t, models.EventTypeOrderStatusChanged, ledger.processed["evt-1"])
}

func TestNotifierSendFailureIsRetryable(t *testing.T) {
	ledger := &fakeLedger{processed: map[string]string{}}
	sender := &fakeSender{err: errors.New("whatsapp down")}
	n := NewNotifier(ledger, sender, 0)

	assert.Error(t, n.HandleOrderStatusChanged(context.Background(), statusEvent()))
	assert.Empty(t, ledger.processed)
}
