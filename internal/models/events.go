package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeInboundMessage     = "INBOUND_MESSAGE"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when a conversation commits an order
type OrderCreatedEvent struct {
	BaseEvent
	OrderNumber string `json:"order_number"`
	Phone       string `json:"phone"`
	ItemName    string `json:"item_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Total       int64  `json:"total"`
	Address     string `json:"address"`
}

// OrderStatusChangedEvent published when staff tooling moves an order along its lifecycle
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderNumber string      `json:"order_number"`
	Phone       string      `json:"phone"`
	OldStatus   OrderStatus `json:"old_status"`
	NewStatus   OrderStatus `json:"new_status"`
	Notes       string      `json:"notes,omitempty"`
}

// InboundMessageEvent carries one webhook message to the queue consumer.
// It is keyed by phone so one phone's messages stay on one partition.
type InboundMessageEvent struct {
	BaseEvent
	MessageID string `json:"message_id"`
	Phone     string `json:"phone"`
	Text      string `json:"text"`
}
