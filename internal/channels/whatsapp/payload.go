package whatsapp

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"barberbot/internal/model"
)

const (
	KeyPrefix = "wa:"

	maxButtons     = 3
	maxTitleRunes  = 20
	maxButtonIDLen = 256
	maxBodyRunes   = 1024
)

// Inbound is the one message of a webhook the bot reacts to.
type Inbound struct {
	From string
	Text string
}

// ExtractMessage returns the first text message or button reply of the event.
// Button replies yield the button id so the dialog can match it exactly.
func ExtractMessage(event WebhookEvent) (Inbound, bool) {
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.From == "" {
					continue
				}
				var text string
				switch m.Type {
				case "text":
					if m.Text != nil {
						text = m.Text.Body
					}
				case "interactive":
					if m.Interactive != nil && m.Interactive.ButtonReply != nil {
						text = m.Interactive.ButtonReply.ID
					}
				case "button":
					if m.Button != nil {
						text = m.Button.Payload
						if text == "" {
							text = m.Button.Text
						}
					}
				}
				if text = strings.TrimSpace(text); text != "" {
					return Inbound{From: m.From, Text: text}, true
				}
			}
		}
	}
	return Inbound{}, false
}

// NormalizeClientKey turns any phone rendering into "wa:<digits>".
func NormalizeClientKey(phone string) string {
	return KeyPrefix + digits(phone)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildPayload renders a reply. With buttons it becomes an interactive button
// message limited to what the Cloud API accepts.
func BuildPayload(to, text string, buttons []model.Button) OutboundMessage {
	msg := OutboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               digits(to),
	}
	if len(buttons) == 0 {
		msg.Type = "text"
		msg.Text = &Text{Body: text}
		return msg
	}

	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	action := &Action{Buttons: make([]ActionButton, 0, len(buttons))}
	for _, b := range buttons {
		action.Buttons = append(action.Buttons, ActionButton{
			Type: "reply",
			Reply: ReplyButton{
				ID:    truncateBytes(b.ID, maxButtonIDLen),
				Title: truncateRunes(b.Label, maxTitleRunes),
			},
		})
	}
	msg.Type = "interactive"
	msg.Interactive = &Interactive{
		Type:   "button",
		Body:   &Text{Body: truncateRunes(text, maxBodyRunes)},
		Action: action,
	}
	return msg
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// truncateBytes cuts at n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
