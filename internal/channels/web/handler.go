// Package web serves the browser chat widget.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"barberbot/internal/channels"
	"barberbot/internal/conversation"
	"barberbot/internal/model"
)

const maxBodyBytes = 64 << 10

// KeyPrefix marks web chat client keys.
const KeyPrefix = "web:"

// ChatRequest is the POST /chat/web body.
type ChatRequest struct {
	ClientID string `json:"client_id" validate:"required,max=128"`
	Message  string `json:"message" validate:"required,max=4096"`
}

// ChatResponse is the reply rendered by the widget.
type ChatResponse struct {
	Reply   string         `json:"reply"`
	State   string         `json:"state"`
	Buttons []model.Button `json:"buttons"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	turns    channels.Turns
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHandler(turns channels.Turns, logger zerolog.Logger) *Handler {
	return &Handler{
		turns:    turns,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With().Str("component", "web").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
		return
	}

	key := KeyPrefix + req.ClientID
	turn, err := h.turns.HandleTurn(r.Context(), key, req.Message)
	if err != nil {
		h.logger.Error().Err(err).Str("client_key", key).Msg("turn failed")
		status := http.StatusServiceUnavailable
		if errors.Is(err, conversation.ErrEmptyKey) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: "temporarily unavailable, try again"})
		return
	}

	buttons := turn.Buttons
	if buttons == nil {
		buttons = []model.Button{}
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: turn.Reply, State: turn.State, Buttons: buttons})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " failed " + verrs[0].Tag()
	}
	return "invalid request"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
