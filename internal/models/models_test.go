package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionValidate(t *testing.T) {
	item := &SelectedItem{ID: "1", Name: "Pizza", UnitPrice: 1000}

	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{"fresh", Session{Phone: "254700000000", State: StateInitial}, false},
		{"quantity without item", Session{Phone: "p", State: StateEnteringAddress, Quantity: 2}, true},
		{"address without quantity", Session{Phone: "p", State: StateConfirming, SelectedItem: item, Address: "x"}, true},
		{"entering quantity needs item", Session{Phone: "p", State: StateEnteringQuantity}, true},
		{"confirming complete", Session{Phone: "p", State: StateConfirming, SelectedItem: item, Quantity: 2, Address: "x"}, false},
		{"empty phone", Session{State: StateInitial}, true},
		{"unknown state", Session{Phone: "p", State: ConversationState(42)}, true},
		{"largest storable quantity", Session{Phone: "p", State: StateEnteringAddress, SelectedItem: item, Quantity: MaxStoredQuantity}, false},
		{"quantity past column width", Session{Phone: "p", State: StateEnteringAddress, SelectedItem: item, Quantity: MaxStoredQuantity + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSession)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionComplete(t *testing.T) {
	s := Session{Phone: "p", State: StateConfirming}
	assert.ErrorIs(t, s.Complete(), ErrIncompleteSession)

	s.SelectedItem = &SelectedItem{Name: "Pizza", UnitPrice: 1000}
	s.Quantity = 2
	assert.ErrorIs(t, s.Complete(), ErrIncompleteSession)

	s.Address = "123 Main Street, Nairobi"
	assert.NoError(t, s.Complete())
	assert.Equal(t, int64(2000), s.Total())
}

func TestSessionJSONUsesStateNames(t *testing.T) {
	s := Session{Phone: "p", State: StateEnteringQuantity, SelectedItem: &SelectedItem{ID: "1", Name: "Pizza"}}

	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"state":"entering_quantity"`)

	var decoded Session
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, StateEnteringQuantity, decoded.State)

	err = json.Unmarshal([]byte(`{"phone":"p","state":"dancing"}`), &decoded)
	assert.Error(t, err)
}

func TestOrderStatusLifecycle(t *testing.T) {
	order := []OrderStatus{
		OrderStatusPending,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusOutForDelivery,
		OrderStatusDelivered,
	}

	for i := 0; i < len(order)-1; i++ {
		next, err := order[i].Next()
		require.NoError(t, err)
		assert.Equal(t, order[i+1], next)
		assert.True(t, order[i].CanTransitionTo(order[i+1]))
		assert.True(t, order[i].CanTransitionTo(OrderStatusCancelled))
	}

	_, err := OrderStatusDelivered.Next()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = OrderStatusCancelled.Next()
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.False(t, OrderStatusPending.CanTransitionTo(OrderStatusPreparing))
	assert.False(t, OrderStatusPreparing.CanTransitionTo(OrderStatusConfirmed))
	assert.False(t, OrderStatusDelivered.CanTransitionTo(OrderStatusCancelled))
}

func TestOrderStatusScanAndValue(t *testing.T) {
	v, err := OrderStatusOutForDelivery.Value()
	require.NoError(t, err)
	assert.Equal(t, "Out for Delivery", v)

	var s OrderStatus
	require.NoError(t, s.Scan([]byte("Preparing")))
	assert.Equal(t, OrderStatusPreparing, s)
	assert.Error(t, s.Scan("Teleported"))
	assert.Error(t, s.Scan(3))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$10", FormatAmount(1000))
	assert.Equal(t, "$10.50", FormatAmount(1050))
	assert.Equal(t, "$0.05", FormatAmount(5))
	assert.Equal(t, "WOR-2025-00042", FormatOrderNumber(2025, 42))
	assert.Equal(t, "WOR-2025-123456", FormatOrderNumber(2025, 123456))
}
