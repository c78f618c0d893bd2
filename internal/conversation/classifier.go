package conversation

import (
	"strconv"
	"strings"

	"order-agent/internal/models"
)

// InputKind is the intent a raw message was classified as.
type InputKind uint8

const (
	InputEmpty InputKind = iota
	InputCancel
	InputTrigger
	InputNumeric
	InputTextSelection
	InputYes
	InputNo
	InputFreeText
)

func (k InputKind) String() string {
	switch k {
	case InputEmpty:
		return "empty"
	case InputCancel:
		return "cancel"
	case InputTrigger:
		return "trigger"
	case InputNumeric:
		return "numeric"
	case InputTextSelection:
		return "text_selection"
	case InputYes:
		return "yes"
	case InputNo:
		return "no"
	case InputFreeText:
		return "free_text"
	default:
		return "unknown"
	}
}

// Input is a classified inbound message. Text is always the trimmed raw text.
type Input struct {
	Kind   InputKind
	Number int
	Text   string
}

var (
	cancelWords  = map[string]bool{"cancel": true, "stop": true, "quit": true}
	triggerWords = map[string]bool{"order": true, "menu": true, "start": true}
	yesWords     = map[string]bool{"yes": true, "y": true, "confirm": true}
	noWords      = map[string]bool{"no": true, "n": true}
)

// Classify normalizes raw text into an Input. The state only decides whether digits
// are a number or part of free text; validity is left to the Machine.
func Classify(raw string, state models.ConversationState) Input {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return Input{Kind: InputEmpty}
	}

	word := strings.ToLower(text)
	if cancelWords[word] {
		return Input{Kind: InputCancel, Text: text}
	}

	if state == models.StateEnteringAddress {
		return Input{Kind: InputFreeText, Text: text}
	}

	if triggerWords[word] {
		return Input{Kind: InputTrigger, Text: text}
	}

	if n, err := strconv.Atoi(text); err == nil {
		return Input{Kind: InputNumeric, Number: n, Text: text}
	}

	switch {
	case yesWords[word]:
		return Input{Kind: InputYes, Text: text}
	case noWords[word]:
		return Input{Kind: InputNo, Text: text}
	case state == models.StateSelectingItem:
		return Input{Kind: InputTextSelection, Text: text}
	}

	return Input{Kind: InputFreeText, Text: text}
}
