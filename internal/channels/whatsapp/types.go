package whatsapp

// WebhookEvent is the Cloud API webhook envelope.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries either inbound messages or delivery statuses.
type Value struct {
	MessagingProduct string           `json:"messaging_product"`
	Messages         []InboundMessage `json:"messages"`
	Statuses         []Status         `json:"statuses"`
}

type InboundMessage struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Button      *QuickReply  `json:"button,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// Interactive is both the inbound reply to an interactive message and the outbound
// interactive payload.
type Interactive struct {
	Type        string       `json:"type"`
	ButtonReply *ReplyButton `json:"button_reply,omitempty"`
	Body        *Text        `json:"body,omitempty"`
	Action      *Action      `json:"action,omitempty"`
}

type ReplyButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// QuickReply is a tap on a template quick-reply button.
type QuickReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type Action struct {
	Buttons []ActionButton `json:"buttons"`
}

type ActionButton struct {
	Type  string      `json:"type"`
	Reply ReplyButton `json:"reply"`
}

// OutboundMessage is the body POSTed to /{phone_id}/messages.
type OutboundMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type,omitempty"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             *Text        `json:"text,omitempty"`
	Interactive      *Interactive `json:"interactive,omitempty"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}
