package conversation

import (
	"fmt"
	"strings"

	"order-agent/internal/menu"
	"order-agent/internal/models"
)

const (
	ReplyGreeting         = "Hi! Type 'order' to start placing an order. Type 'cancel' to stop anytime."
	ReplyCancelled        = "Order cancelled. Type 'order' to start a new order anytime! 👋"
	ReplyConfirmPrompt    = "Please reply 'yes' to confirm or 'no' to cancel."
	ReplyEmptyAddress     = "Address cannot be empty. Please enter your delivery address:"
	ReplyMenuUnavailable  = "Sorry, our menu is not available right now. Please try again later."
	ReplySomethingWrong   = "Something went wrong, please start over with 'order'."
	ReplyOrderFailed      = "Sorry, there was an error placing your order. Please reply 'yes' to try again or 'no' to cancel."
	replyQuantityPrompt   = "How many would you like? (Enter a number)"
	replyAddressPrompt    = "Please enter your delivery address:"
	replyInvalidSelection = "Sorry, I didn't understand. Please choose from the list: reply with a number (1-%d) or type the item name."
)

func menuReply(catalog menu.Catalog) string {
	var sb strings.Builder
	sb.WriteString("🍕 Welcome! Here's our menu:\n\n")
	for i, e := range catalog.Entries() {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, e.Name, models.FormatAmount(e.UnitPrice))
	}
	fmt.Fprintf(&sb, "\nReply with the number (1-%d) or item name to select.", catalog.Len())
	return sb.String()
}

func invalidSelectionReply(catalog menu.Catalog) string {
	return fmt.Sprintf(replyInvalidSelection, catalog.Len())
}

func itemSelectedReply(item models.SelectedItem) string {
	return fmt.Sprintf("Great! You selected: %s\n\n%s", item.Name, replyQuantityPrompt)
}

func invalidQuantityReply(max int) string {
	if max > 0 {
		return fmt.Sprintf("Please enter a valid number between 1 and %d.", max)
	}
	return "Please enter a valid number greater than 0."
}

func quantityAcceptedReply(s models.Session) string {
	return fmt.Sprintf("Perfect! %dx %s\nTotal: %s\n\n%s",
		s.Quantity, s.SelectedItem.Name, models.FormatAmount(s.Total()), replyAddressPrompt)
}

func shortAddressReply(min int) string {
	return fmt.Sprintf("Please enter a complete delivery address (at least %d characters).", min)
}

func summaryReply(s models.Session) string {
	return fmt.Sprintf("📋 Order Summary:\n\nItem: %dx %s\nPrice per item: %s\nTotal: %s\nDelivery to: %s\n\nConfirm this order? Reply 'yes' to place order or 'no' to cancel.",
		s.Quantity, s.SelectedItem.Name,
		models.FormatAmount(s.SelectedItem.UnitPrice),
		models.FormatAmount(s.Total()),
		s.Address)
}

// OrderPlacedReply is sent once the committer has persisted the order.
func OrderPlacedReply(ref models.OrderReference) string {
	return fmt.Sprintf("✅ Order placed successfully!\n\nOrder Number: %s\nTotal: %s\nEstimated delivery: 30 minutes\n\nThank you for your order! 🎉",
		ref.OrderNumber, models.FormatAmount(ref.Total))
}

// StatusUpdateReply notifies a customer that staff moved their order along.
func StatusUpdateReply(orderNumber string, status models.OrderStatus) string {
	return fmt.Sprintf("📱 Order Update\n\nOrder: %s\nStatus: %s\nMessage: %s\n\nThank you for choosing us! 🎉",
		orderNumber, status, status.Message())
}
