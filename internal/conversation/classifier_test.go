package conversation

import (
	"testing"

	"order-agent/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		state  models.ConversationState
		kind   InputKind
		number int
		text   string
	}{
		{"empty", "", models.StateSelectingItem, InputEmpty, 0, ""},
		{"whitespace", "  \t\n ", models.StateEnteringQuantity, InputEmpty, 0, ""},
		{"cancel any case", "CaNcEl", models.StateConfirming, InputCancel, 0, "CaNcEl"},
		{"stop is cancel", "stop", models.StateSelectingItem, InputCancel, 0, "stop"},
		{"cancel wins in address", "cancel", models.StateEnteringAddress, InputCancel, 0, "cancel"},
		{"trigger", " Order ", models.StateInitial, InputTrigger, 0, "Order"},
		{"menu trigger", "menu", models.StateConfirming, InputTrigger, 0, "menu"},
		{"numeric quantity", "2", models.StateEnteringQuantity, InputNumeric, 2, "2"},
		{"negative numeric", "-3", models.StateEnteringQuantity, InputNumeric, -3, "-3"},
		{"decimal is text", "2.5", models.StateEnteringQuantity, InputFreeText, 0, "2.5"},
		{"numeric selection", "1", models.StateSelectingItem, InputNumeric, 1, "1"},
		{"name selection", "Pizza", models.StateSelectingItem, InputTextSelection, 0, "Pizza"},
		{"address with digits", "2 Main St", models.StateEnteringAddress, InputFreeText, 0, "2 Main St"},
		{"pure digits in address", "42", models.StateEnteringAddress, InputFreeText, 0, "42"},
		{"trigger word in address", "order", models.StateEnteringAddress, InputFreeText, 0, "order"},
		{"yes", "YES", models.StateConfirming, InputYes, 0, "YES"},
		{"y", "y", models.StateConfirming, InputYes, 0, "y"},
		{"no", "No", models.StateConfirming, InputNo, 0, "No"},
		{"free text", "maybe later", models.StateConfirming, InputFreeText, 0, "maybe later"},
		{"collapses inner whitespace", "123   Main  Street", models.StateEnteringAddress, InputFreeText, 0, "123 Main Street"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Classify(tt.raw, tt.state)
			assert.Equal(t, tt.kind, in.Kind, "kind %s", in.Kind)
			assert.Equal(t, tt.number, in.Number)
			assert.Equal(t, tt.text, in.Text)
		})
	}
}
