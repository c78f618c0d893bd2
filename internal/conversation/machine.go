// Package conversation turns one phone number's replies into a validated order.
//
// The Machine is a pure transition function: it receives the current session, a
// classified input and a menu snapshot, and describes the effects (next session, reply,
// commit, clear) for the caller to apply. It never touches storage or the network.
package conversation

import (
	"math"
	"unicode/utf8"

	"order-agent/internal/menu"
	"order-agent/internal/models"
)

// Result describes the effects of one step.
type Result struct {
	// Session is the next session value. When Clear is set it is a fresh initial session.
	Session models.Session
	// Reply is the single outbound text. Empty when Commit is set: the reply depends on
	// the order reference and is rendered with OrderPlacedReply.
	Reply string
	// Commit asks the caller to create an order from Session.
	Commit bool
	// Clear asks the caller to delete the stored session instead of saving it.
	Clear bool
}

// Options are product bounds; zero values mean unbounded.
type Options struct {
	MaxQuantity      int
	MinAddressLength int
}

type Machine struct {
	maxQuantity      int
	minAddressLength int
}

func NewMachine(opts Options) *Machine {
	minAddress := opts.MinAddressLength
	if minAddress < 1 {
		minAddress = 1
	}
	return &Machine{
		maxQuantity:      opts.MaxQuantity,
		minAddressLength: minAddress,
	}
}

// Step computes the transition for one classified input. Cancel is checked before any
// state-specific rule.
func (m *Machine) Step(s models.Session, in Input, catalog menu.Catalog) Result {
	if in.Kind == InputCancel {
		return reset(s.Phone, ReplyCancelled)
	}

	switch s.State {
	case models.StateInitial:
		return m.initial(s, in, catalog)
	case models.StateSelectingItem:
		return m.selectingItem(s, in, catalog)
	case models.StateEnteringQuantity:
		return m.enteringQuantity(s, in, catalog)
	case models.StateEnteringAddress:
		return m.enteringAddress(s, in)
	case models.StateConfirming:
		return m.confirming(s, in, catalog)
	default:
		return reset(s.Phone, ReplySomethingWrong)
	}
}

func (m *Machine) initial(s models.Session, in Input, catalog menu.Catalog) Result {
	if in.Kind == InputTrigger {
		return startOrder(s.Phone, catalog)
	}
	return stay(s, ReplyGreeting)
}

func (m *Machine) selectingItem(s models.Session, in Input, catalog menu.Catalog) Result {
	if in.Kind == InputTrigger {
		return startOrder(s.Phone, catalog)
	}
	if catalog.Len() == 0 {
		return reset(s.Phone, ReplyMenuUnavailable)
	}

	var (
		entry models.MenuEntry
		found bool
	)
	switch in.Kind {
	case InputNumeric:
		entry, found = catalog.At(in.Number)
	case InputTextSelection, InputFreeText, InputYes, InputNo:
		entry, found = catalog.FindByName(in.Text)
	}
	if !found {
		return stay(s, invalidSelectionReply(catalog))
	}

	item := models.SelectedItem{ID: entry.ID, Name: entry.Name, UnitPrice: entry.UnitPrice}
	next := s
	next.State = models.StateEnteringQuantity
	next.SelectedItem = &item
	next.Quantity = 0
	next.Address = ""
	return Result{Session: next, Reply: itemSelectedReply(item)}
}

func (m *Machine) enteringQuantity(s models.Session, in Input, catalog menu.Catalog) Result {
	if in.Kind == InputTrigger {
		return startOrder(s.Phone, catalog)
	}
	if in.Kind != InputNumeric || !m.quantityAllowed(in.Number, s.SelectedItem) {
		return stay(s, invalidQuantityReply(m.maxQuantity))
	}

	next := s
	next.State = models.StateEnteringAddress
	next.Quantity = in.Number
	next.Address = ""
	return Result{Session: next, Reply: quantityAcceptedReply(next)}
}

// quantityAllowed also bounds q by the order column width and by what keeps the total in
// an int64.
func (m *Machine) quantityAllowed(q int, item *models.SelectedItem) bool {
	if q <= 0 || int64(q) > models.MaxStoredQuantity {
		return false
	}
	if m.maxQuantity > 0 && q > m.maxQuantity {
		return false
	}
	return item == nil || item.UnitPrice <= 0 || int64(q) <= math.MaxInt64/item.UnitPrice
}

func (m *Machine) enteringAddress(s models.Session, in Input) Result {
	if in.Kind == InputEmpty || in.Text == "" {
		return stay(s, ReplyEmptyAddress)
	}
	if utf8.RuneCountInString(in.Text) < m.minAddressLength {
		return stay(s, shortAddressReply(m.minAddressLength))
	}

	next := s
	next.State = models.StateConfirming
	next.Address = in.Text
	return Result{Session: next, Reply: summaryReply(next)}
}

func (m *Machine) confirming(s models.Session, in Input, catalog menu.Catalog) Result {
	switch in.Kind {
	case InputYes:
		return Result{Session: s, Commit: true, Clear: true}
	case InputNo:
		return reset(s.Phone, ReplyCancelled)
	case InputTrigger:
		return startOrder(s.Phone, catalog)
	default:
		return stay(s, ReplyConfirmPrompt)
	}
}

func startOrder(phone string, catalog menu.Catalog) Result {
	if catalog.Len() == 0 {
		return reset(phone, ReplyMenuUnavailable)
	}
	next := models.Session{Phone: phone, State: models.StateSelectingItem}
	return Result{Session: next, Reply: menuReply(catalog)}
}

func reset(phone, reply string) Result {
	return Result{
		Session: models.Session{Phone: phone, State: models.StateInitial},
		Reply:   reply,
		Clear:   true,
	}
}

func stay(s models.Session, reply string) Result {
	return Result{Session: s, Reply: reply}
}
