package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MenuEntry is an orderable catalog item. UnitPrice is in minor units (cents).
type MenuEntry struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}

// SelectedItem is the part of a MenuEntry a session keeps for the summary.
type SelectedItem struct {
	ID        string `json:"id" bson:"id"`
	Name      string `json:"name" bson:"name"`
	UnitPrice int64  `json:"unit_price" bson:"unit_price"`
}

// Session is the conversation memory of one phone number.
type Session struct {
	Phone        string            `json:"phone" bson:"phone"`
	State        ConversationState `json:"state" bson:"state"`
	SelectedItem *SelectedItem     `json:"selected_item,omitempty" bson:"selected_item,omitempty"`
	Quantity     int               `json:"quantity,omitempty" bson:"quantity,omitempty"`
	Address      string            `json:"address,omitempty" bson:"address,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at" bson:"updated_at"`
}

// MaxStoredQuantity is the largest quantity the orders table can hold.
const MaxStoredQuantity = math.MaxInt32

var (
	ErrInvalidSession    = errors.New("invalid session")
	ErrIncompleteSession = errors.New("session is missing required order fields")
	ErrInvalidFilter     = errors.New("invalid order filter")
)

// NewSession returns a fresh session in the initial state.
func NewSession(phone string) *Session {
	return &Session{
		Phone:     phone,
		State:     StateInitial,
		UpdatedAt: time.Now(),
	}
}

// Validate checks that later pipeline fields are never set without the earlier ones
// and that the fields a state relies on are present.
func (s *Session) Validate() error {
	if s.Phone == "" {
		return fmt.Errorf("%w: empty phone", ErrInvalidSession)
	}
	if !s.State.Valid() {
		return fmt.Errorf("%w: unknown state %d", ErrInvalidSession, s.State)
	}
	if s.Quantity < 0 || int64(s.Quantity) > MaxStoredQuantity {
		return fmt.Errorf("%w: quantity %d out of range", ErrInvalidSession, s.Quantity)
	}
	if s.Quantity > 0 && s.SelectedItem == nil {
		return fmt.Errorf("%w: quantity set without item", ErrInvalidSession)
	}
	if s.Address != "" && s.Quantity == 0 {
		return fmt.Errorf("%w: address set without quantity", ErrInvalidSession)
	}

	switch s.State {
	case StateEnteringQuantity:
		if s.SelectedItem == nil {
			return fmt.Errorf("%w: %s without item", ErrInvalidSession, s.State)
		}
	case StateEnteringAddress:
		if s.Quantity == 0 {
			return fmt.Errorf("%w: %s without quantity", ErrInvalidSession, s.State)
		}
	case StateConfirming:
		if s.Address == "" {
			return fmt.Errorf("%w: %s without address", ErrInvalidSession, s.State)
		}
	}
	return nil
}

// Complete reports whether the session carries everything an order needs.
func (s *Session) Complete() error {
	switch {
	case s.SelectedItem == nil:
		return fmt.Errorf("%w: item", ErrIncompleteSession)
	case s.Quantity <= 0:
		return fmt.Errorf("%w: quantity", ErrIncompleteSession)
	case s.Address == "":
		return fmt.Errorf("%w: address", ErrIncompleteSession)
	}
	return nil
}

// Total returns quantity * unit price, or 0 when no item is selected.
func (s *Session) Total() int64 {
	if s.SelectedItem == nil {
		return 0
	}
	return s.SelectedItem.UnitPrice * int64(s.Quantity)
}

// Order is a committed customer order.
type Order struct {
	ID          int64       `db:"id" json:"id"`
	OrderNumber string      `db:"order_number" json:"order_number"`
	Phone       string      `db:"phone" json:"phone"`
	ItemID      string      `db:"item_id" json:"item_id"`
	ItemName    string      `db:"item_name" json:"item_name"`
	Quantity    int         `db:"quantity" json:"quantity"`
	UnitPrice   int64       `db:"unit_price" json:"unit_price"`
	Total       int64       `db:"total" json:"total"`
	Address     string      `db:"address" json:"address"`
	Status      OrderStatus `db:"status" json:"status"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// OrderReference is what the customer is told after a successful commit.
type OrderReference struct {
	OrderNumber string `json:"order_number"`
	Total       int64  `json:"total"`
}

// FormatOrderNumber renders the WOR-YYYY-##### naming series.
func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("WOR-%d-%05d", year, seq)
}

// FormatAmount renders minor units as "$10" or "$10.50".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	if cents%100 == 0 {
		return fmt.Sprintf("%s$%d", sign, cents/100)
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// OrderStatusChange is one row of an order's status history.
type OrderStatusChange struct {
	ID        int64       `db:"id" json:"id"`
	OrderID   int64       `db:"order_id" json:"order_id"`
	OldStatus OrderStatus `db:"old_status" json:"old_status"`
	NewStatus OrderStatus `db:"new_status" json:"new_status"`
	Notes     string      `db:"notes" json:"notes,omitempty"`
	ChangedAt time.Time   `db:"changed_at" json:"changed_at"`
}

// OrderFilter narrows a staff order search. Zero fields do not filter.
type OrderFilter struct {
	// Query matches order number, item name or phone, case-insensitively.
	Query  string
	Status *OrderStatus
	// From is inclusive and To exclusive.
	From  time.Time
	To    time.Time
	Limit int
}

// ProductSummary aggregates one item's orders within a report.
type ProductSummary struct {
	ItemName      string `json:"item_name"`
	TotalQuantity int    `json:"total_quantity"`
	OrderCount    int    `json:"order_count"`
	Revenue       int64  `json:"revenue"`
}

// DailySummary reports the orders placed on one day. Revenue leaves out cancelled orders.
type DailySummary struct {
	Date            string           `json:"date"`
	TotalOrders     int              `json:"total_orders"`
	TotalQuantity   int              `json:"total_quantity"`
	Revenue         int64            `json:"revenue"`
	StatusBreakdown map[string]int   `json:"status_breakdown"`
	Products        []ProductSummary `json:"products"`
	Orders          []Order          `json:"orders"`
}
