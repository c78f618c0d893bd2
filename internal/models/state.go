package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// ConversationState is the step an ordering conversation is at.
type ConversationState uint8

const (
	StateInitial ConversationState = iota
	StateSelectingItem
	StateEnteringQuantity
	StateEnteringAddress
	StateConfirming
)

var conversationStateNames = [...]string{
	StateInitial:          "initial",
	StateSelectingItem:    "selecting_item",
	StateEnteringQuantity: "entering_quantity",
	StateEnteringAddress:  "entering_address",
	StateConfirming:       "confirming",
}

func (s ConversationState) Valid() bool {
	return int(s) < len(conversationStateNames)
}

func (s ConversationState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("ConversationState(%d)", uint8(s))
	}
	return conversationStateNames[s]
}

func (s ConversationState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown conversation state %d", uint8(s))
	}
	return []byte(conversationStateNames[s]), nil
}

func (s *ConversationState) UnmarshalText(text []byte) error {
	parsed, err := ParseConversationState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseConversationState(name string) (ConversationState, error) {
	for i, n := range conversationStateNames {
		if n == name {
			return ConversationState(i), nil
		}
	}
	return 0, fmt.Errorf("unknown conversation state %q", name)
}

// OrderStatus is the staff-driven lifecycle of a committed order.
type OrderStatus uint8

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusConfirmed
	OrderStatusPreparing
	OrderStatusOutForDelivery
	OrderStatusDelivered
	OrderStatusCancelled
)

var ErrInvalidTransition = errors.New("invalid order status transition")

var orderStatusNames = [...]string{
	OrderStatusPending:        "Pending",
	OrderStatusConfirmed:      "Confirmed",
	OrderStatusPreparing:      "Preparing",
	OrderStatusOutForDelivery: "Out for Delivery",
	OrderStatusDelivered:      "Delivered",
	OrderStatusCancelled:      "Cancelled",
}

var orderStatusMessages = [...]string{
	OrderStatusPending:        "Your order is being processed",
	OrderStatusConfirmed:      "Order confirmed! We're preparing your order",
	OrderStatusPreparing:      "Your order is being prepared",
	OrderStatusOutForDelivery: "Your order is on its way!",
	OrderStatusDelivered:      "Order delivered successfully!",
	OrderStatusCancelled:      "Order has been cancelled",
}

func (s OrderStatus) Valid() bool {
	return int(s) < len(orderStatusNames)
}

func (s OrderStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OrderStatus(%d)", uint8(s))
	}
	return orderStatusNames[s]
}

// Message is the customer-facing description of the status.
func (s OrderStatus) Message() string {
	if !s.Valid() {
		return "Unknown status"
	}
	return orderStatusMessages[s]
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Next returns the single status that may follow s.
func (s OrderStatus) Next() (OrderStatus, error) {
	if !s.Valid() || s.Terminal() {
		return s, fmt.Errorf("%w: %s has no successor", ErrInvalidTransition, s)
	}
	return s + 1, nil
}

// CanTransitionTo allows advancing one stage at a time, or cancelling a non-terminal order.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if !s.Valid() || !to.Valid() || s.Terminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	return to == s+1
}

func ParseOrderStatus(name string) (OrderStatus, error) {
	for i, n := range orderStatusNames {
		if n == name {
			return OrderStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", name)
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown order status %d", uint8(s))
	}
	return []byte(orderStatusNames[s]), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the status by name so staff tooling reads plain text.
func (s OrderStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown order status %d", uint8(s))
	}
	return orderStatusNames[s], nil
}

func (s *OrderStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", src)
	}
}
