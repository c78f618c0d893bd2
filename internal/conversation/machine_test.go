package conversation

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"order-agent/internal/menu"
	"order-agent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "254712345678"

var testCatalog = menu.NewCatalog([]models.MenuEntry{
	{ID: "pizza", Name: "Pizza", UnitPrice: 1000},
	{ID: "burger", Name: "Burger", UnitPrice: 800},
}, 0)

func step(m *Machine, s models.Session, raw string) Result {
	return m.Step(s, Classify(raw, s.State), testCatalog)
}

func sessionAt(state models.ConversationState) models.Session {
	s := models.Session{Phone: testPhone, State: state}
	if state >= models.StateEnteringQuantity {
		s.SelectedItem = &models.SelectedItem{ID: "pizza", Name: "Pizza", UnitPrice: 1000}
	}
	if state >= models.StateEnteringAddress {
		s.Quantity = 2
	}
	if state >= models.StateConfirming {
		s.Address = "123 Main Street, Nairobi"
	}
	return s
}

func TestTriggerShowsMenu(t *testing.T) {
	m := NewMachine(Options{})
	res := step(m, *models.NewSession(testPhone), "order")

	assert.Equal(t, models.StateSelectingItem, res.Session.State)
	assert.False(t, res.Clear)
	assert.False(t, res.Commit)
	for i, e := range testCatalog.Entries() {
		assert.Contains(t, res.Reply, fmt.Sprintf("%d. %s - %s", i+1, e.Name, models.FormatAmount(e.UnitPrice)))
	}
}

func TestInitialRepromptsTrigger(t *testing.T) {
	m := NewMachine(Options{})
	for _, raw := range []string{"hello", "", "1", "yes"} {
		res := step(m, *models.NewSession(testPhone), raw)
		assert.Equal(t, models.StateInitial, res.Session.State, raw)
		assert.Equal(t, ReplyGreeting, res.Reply, raw)
	}
}

func TestEmptyMenuDoesNotAdvance(t *testing.T) {
	m := NewMachine(Options{})
	res := m.Step(*models.NewSession(testPhone), Classify("order", models.StateInitial), menu.NewCatalog(nil, 0))

	assert.Equal(t, models.StateInitial, res.Session.State)
	assert.Equal(t, ReplyMenuUnavailable, res.Reply)
}

func TestSelectingItemByOrdinal(t *testing.T) {
	m := NewMachine(Options{})

	for k := 1; k <= testCatalog.Len(); k++ {
		res := step(m, sessionAt(models.StateSelectingItem), fmt.Sprint(k))
		want, _ := testCatalog.At(k)

		require.Equal(t, models.StateEnteringQuantity, res.Session.State)
		require.NotNil(t, res.Session.SelectedItem)
		assert.Equal(t, want.ID, res.Session.SelectedItem.ID)
		assert.Equal(t, want.UnitPrice, res.Session.SelectedItem.UnitPrice)
		assert.Contains(t, res.Reply, "You selected: "+want.Name)
	}

	for _, raw := range []string{"0", "-1", "3", "99", "sushi", "", "   "} {
		before := sessionAt(models.StateSelectingItem)
		res := step(m, before, raw)
		assert.Equal(t, before, res.Session, raw)
		assert.Equal(t, invalidSelectionReply(testCatalog), res.Reply, raw)
	}
}

func TestSelectionByNameEqualsOrdinal(t *testing.T) {
	m := NewMachine(Options{})
	byOrdinal := step(m, sessionAt(models.StateSelectingItem), "1")

	for _, raw := range []string{"pizza", "PIZZA", "Pizza"} {
		byName := step(m, sessionAt(models.StateSelectingItem), raw)
		assert.Equal(t, byOrdinal.Session, byName.Session, raw)
		assert.Equal(t, byOrdinal.Reply, byName.Reply, raw)
	}
}

func TestEnteringQuantity(t *testing.T) {
	m := NewMachine(Options{})

	for _, raw := range []string{"0", "-2", "abc", "2.5", "", "1e3"} {
		before := sessionAt(models.StateEnteringQuantity)
		res := step(m, before, raw)
		assert.Equal(t, before, res.Session, raw)
		assert.Equal(t, invalidQuantityReply(0), res.Reply, raw)
	}

	for _, q := range []int{1, 2, 20, 500} {
		res := step(m, sessionAt(models.StateEnteringQuantity), fmt.Sprint(q))
		assert.Equal(t, models.StateEnteringAddress, res.Session.State)
		assert.Equal(t, q, res.Session.Quantity)
		assert.NoError(t, res.Session.Validate())
	}
}

func TestEnteringQuantityRespectsConfiguredMax(t *testing.T) {
	m := NewMachine(Options{MaxQuantity: 20})

	res := step(m, sessionAt(models.StateEnteringQuantity), "21")
	assert.Equal(t, models.StateEnteringQuantity, res.Session.State)
	assert.Equal(t, "Please enter a valid number between 1 and 20.", res.Reply)

	res = step(m, sessionAt(models.StateEnteringQuantity), "20")
	assert.Equal(t, models.StateEnteringAddress, res.Session.State)
	assert.Contains(t, res.Reply, "Total: $200")
}

func TestEnteringQuantityStaysWithinStorableRange(t *testing.T) {
	m := NewMachine(Options{})

	res := step(m, sessionAt(models.StateEnteringQuantity), fmt.Sprint(models.MaxStoredQuantity))
	assert.Equal(t, models.StateEnteringAddress, res.Session.State)
	assert.Equal(t, int64(models.MaxStoredQuantity)*1000, res.Session.Total())

	for _, raw := range []string{fmt.Sprint(int64(models.MaxStoredQuantity) + 1), "3000000000", "9300000000000000"} {
		before := sessionAt(models.StateEnteringQuantity)
		res := step(m, before, raw)
		assert.Equal(t, before, res.Session, raw)
		assert.Equal(t, invalidQuantityReply(0), res.Reply, raw)
	}
}

func TestEnteringQuantityKeepsTotalPositive(t *testing.T) {
	m := NewMachine(Options{})
	price := int64(math.MaxInt64 / 4)
	at := func() models.Session {
		s := sessionAt(models.StateEnteringQuantity)
		s.SelectedItem = &models.SelectedItem{ID: "gold", Name: "Gold Pizza", UnitPrice: price}
		return s
	}

	res := step(m, at(), "4")
	assert.Equal(t, models.StateEnteringAddress, res.Session.State)
	assert.Equal(t, price*4, res.Session.Total())
	assert.Positive(t, res.Session.Total())

	res = step(m, at(), "5")
	assert.Equal(t, models.StateEnteringQuantity, res.Session.State)
	assert.Zero(t, res.Session.Quantity)
}

func TestEnteringAddress(t *testing.T) {
	m := NewMachine(Options{})

	before := sessionAt(models.StateEnteringAddress)
	res := step(m, before, "   ")
	assert.Equal(t, before, res.Session)
	assert.Equal(t, ReplyEmptyAddress, res.Reply)

	res = step(m, before, "2 Main St")
	assert.Equal(t, models.StateConfirming, res.Session.State)
	assert.Equal(t, "2 Main St", res.Session.Address)
	assert.Contains(t, res.Reply, "Delivery to: 2 Main St")
	assert.Contains(t, res.Reply, "Total: $20")
}

func TestEnteringAddressMinimumLength(t *testing.T) {
	m := NewMachine(Options{MinAddressLength: 5})

	res := step(m, sessionAt(models.StateEnteringAddress), "abc")
	assert.Equal(t, models.StateEnteringAddress, res.Session.State)
	assert.Contains(t, res.Reply, "at least 5 characters")
}

func TestConfirming(t *testing.T) {
	m := NewMachine(Options{})
	before := sessionAt(models.StateConfirming)

	yes := step(m, before, "Yes")
	assert.True(t, yes.Commit)
	assert.True(t, yes.Clear)
	assert.Empty(t, yes.Reply)
	assert.Equal(t, before, yes.Session)

	no := step(m, before, "no")
	assert.False(t, no.Commit)
	assert.True(t, no.Clear)
	assert.Equal(t, ReplyCancelled, no.Reply)
	assert.Equal(t, models.StateInitial, no.Session.State)

	other := step(m, before, "perhaps")
	assert.False(t, other.Commit)
	assert.False(t, other.Clear)
	assert.Equal(t, before, other.Session)
	assert.Equal(t, ReplyConfirmPrompt, other.Reply)
}

func TestCancelFromAnyActiveState(t *testing.T) {
	m := NewMachine(Options{})
	states := []models.ConversationState{
		models.StateSelectingItem,
		models.StateEnteringQuantity,
		models.StateEnteringAddress,
		models.StateConfirming,
	}

	for _, state := range states {
		for _, raw := range []string{"cancel", "CANCEL", " Cancel "} {
			res := step(m, sessionAt(state), raw)
			assert.True(t, res.Clear, state.String())
			assert.False(t, res.Commit, state.String())
			assert.Equal(t, ReplyCancelled, res.Reply)
			assert.Equal(t, models.Session{Phone: testPhone, State: models.StateInitial}, res.Session)
		}
	}
}

func TestTriggerRestartsMidFlow(t *testing.T) {
	m := NewMachine(Options{})

	for _, state := range []models.ConversationState{models.StateSelectingItem, models.StateEnteringQuantity, models.StateConfirming} {
		res := step(m, sessionAt(state), "order")
		assert.Equal(t, models.StateSelectingItem, res.Session.State)
		assert.Nil(t, res.Session.SelectedItem)
		assert.Zero(t, res.Session.Quantity)
		assert.Empty(t, res.Session.Address)
	}

	// "order" is a valid address, not a restart.
	res := step(m, sessionAt(models.StateEnteringAddress), "order")
	assert.Equal(t, models.StateConfirming, res.Session.State)
}

func TestFullConversation(t *testing.T) {
	m := NewMachine(Options{})
	s := *models.NewSession(testPhone)

	var last Result
	for _, raw := range []string{"order", "1", "2", "123 Main Street, Nairobi"} {
		last = step(m, s, raw)
		require.NoError(t, last.Session.Validate(), raw)
		s = last.Session
	}

	assert.Equal(t, models.StateConfirming, s.State)
	assert.True(t, strings.HasPrefix(last.Reply, "📋 Order Summary"))

	final := step(m, s, "yes")
	require.True(t, final.Commit)
	require.NoError(t, final.Session.Complete())
	assert.Equal(t, "Pizza", final.Session.SelectedItem.Name)
	assert.Equal(t, 2, final.Session.Quantity)
	assert.Equal(t, int64(2000), final.Session.Total())
	assert.Equal(t, "123 Main Street, Nairobi", final.Session.Address)
}

func TestUnknownStateResets(t *testing.T) {
	m := NewMachine(Options{})
	res := m.Step(models.Session{Phone: testPhone, State: models.ConversationState(99)}, Input{Kind: InputFreeText, Text: "hi"}, testCatalog)

	assert.True(t, res.Clear)
	assert.Equal(t, ReplySomethingWrong, res.Reply)
}

func TestOrderPlacedReply(t *testing.T) {
	reply := OrderPlacedReply(models.OrderReference{OrderNumber: "WOR-2025-00001", Total: 2000})
	assert.Contains(t, reply, "Order Number: WOR-2025-00001")
	assert.Contains(t, reply, "Total: $20")
}
