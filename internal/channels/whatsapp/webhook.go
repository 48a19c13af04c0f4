// Package whatsapp adapts the WhatsApp Cloud API webhook and Graph API to the
// conversation runner.
package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"barberbot/internal/channels"
)

const maxWebhookBytes = 1 << 20

// WebhookHandler serves GET verification and POST deliveries.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	turns       channels.Turns
	sender      channels.Sender
	logger      zerolog.Logger
}

// NewWebhookHandler builds the handler. With an empty appSecret signatures are not
// checked.
func NewWebhookHandler(verifyToken, appSecret string, turns channels.Turns, sender channels.Sender, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		turns:       turns,
		sender:      sender,
		logger:      logger.With().Str("component", "whatsapp").Logger(),
	}
}

// HandleVerification answers Meta's subscription challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.verifyToken != "" && q.Get("hub.verify_token") == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	h.logger.Warn().Str("mode", q.Get("hub.mode")).Msg("webhook verification rejected")
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound runs the turn for the first message of the delivery and sends the
// reply. Infrastructure failures answer 503 so Meta redelivers.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn().Msg("invalid webhook signature")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	in, ok := ExtractMessage(event)
	if !ok {
		// Status callbacks and unsupported message types.
		w.WriteHeader(http.StatusOK)
		return
	}

	key := NormalizeClientKey(in.From)
	turn, err := h.turns.HandleTurn(r.Context(), key, in.Text)
	if err != nil {
		h.logger.Error().Err(err).Str("client_key", key).Msg("turn failed")
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if h.sender != nil {
		if err := h.sender.Send(r.Context(), strings.TrimPrefix(key, KeyPrefix), turn.Reply, turn.Buttons); err != nil {
			// The turn is already persisted; a redelivery would replay it.
			h.logger.Error().Err(err).Str("client_key", key).Msg("failed to send reply")
		}
	}
	w.WriteHeader(http.StatusOK)
}

// VerifySignature checks an X-Hub-Signature-256 header ("sha256=<hex>") against
// the HMAC-SHA256 of body.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" {
		return false
	}
	sigHex, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || sigHex == "" {
		return false
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}
