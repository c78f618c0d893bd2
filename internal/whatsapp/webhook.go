// Package whatsapp speaks the Meta WhatsApp Cloud API: webhook payloads in, text
// messages out.
package whatsapp

import "strings"

// WebhookPayload is the top-level webhook delivery from Meta.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts,omitempty"`
	Messages         []Message `json:"messages,omitempty"`
	Statuses         []Status  `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextContent `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Button      *ButtonReply `json:"button,omitempty"`
}

type TextContent struct {
	Body string `json:"body"`
}

// Interactive is a reply to a button or list message.
type Interactive struct {
	Type        string       `json:"type"`
	ButtonReply *ReplyOption `json:"button_reply,omitempty"`
	ListReply   *ReplyOption `json:"list_reply,omitempty"`
}

type ReplyOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ButtonReply is a quick-reply button pressed on a template message.
type ButtonReply struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

// Status is a delivery receipt; it carries no customer text.
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// InboundMessage is one customer message reduced to what the agent needs.
type InboundMessage struct {
	ID    string
	Phone string
	Text  string
}

// ExtractMessages flattens a webhook delivery into customer messages, in payload order.
// Messages without a sender or without usable text are skipped.
func ExtractMessages(p *WebhookPayload) []InboundMessage {
	var out []InboundMessage
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.From == "" {
					continue
				}
				text := strings.TrimSpace(m.text())
				if text == "" {
					continue
				}
				out = append(out, InboundMessage{ID: m.ID, Phone: m.From, Text: text})
			}
		}
	}
	return out
}

func (m Message) text() string {
	switch {
	case m.Text != nil:
		return m.Text.Body
	case m.Interactive != nil:
		for _, r := range []*ReplyOption{m.Interactive.ButtonReply, m.Interactive.ListReply} {
			if r == nil {
				continue
			}
			if r.Title != "" {
				return r.Title
			}
			return r.ID
		}
	case m.Button != nil:
		if m.Button.Text != "" {
			return m.Button.Text
		}
		return m.Button.Payload
	}
	return ""
}
