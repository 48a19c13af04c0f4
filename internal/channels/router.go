// Package channels routes outbound messages to the messaging channel that owns a
// client key and holds what the channel adapters share.
package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"barberbot/internal/conversation"
	"barberbot/internal/metrics"
	"barberbot/internal/model"
)

// ErrNoPushChannel is returned for keys whose channel cannot receive unsolicited
// messages (web chat) or is not configured.
var ErrNoPushChannel = errors.New("channels: no push channel for client key")

// SendError is a delivery failure reported by a channel API.
type SendError struct {
	Channel string
	// Code is the HTTP status or API error code.
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Channel, e.Code, e.Message)
}

// Permanent reports whether retrying the same message cannot succeed.
func (e *SendError) Permanent() bool {
	switch e.Code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// AsSendError unwraps err into a *SendError.
func AsSendError(err error) (*SendError, bool) {
	var se *SendError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Sender delivers a message to an address local to one channel, such as a phone
// number or a chat id.
type Sender interface {
	Send(ctx context.Context, to, text string, buttons []model.Button) error
}

// Turns runs a conversation turn. *conversation.Service implements it.
type Turns interface {
	HandleTurn(ctx context.Context, key, message string) (conversation.Turn, error)
}

// SplitKey breaks "wa:5511..." into ("wa", "5511...").
func SplitKey(key string) (prefix, address string, ok bool) {
	prefix, address, ok = strings.Cut(key, ":")
	if !ok || prefix == "" || address == "" {
		return "", "", false
	}
	return prefix, address, true
}

// Router sends by client key prefix.
type Router struct {
	mu      sync.RWMutex
	senders map[string]Sender
	logger  zerolog.Logger
}

func NewRouter(logger zerolog.Logger) *Router {
	return &Router{
		senders: make(map[string]Sender),
		logger:  logger.With().Str("component", "router").Logger(),
	}
}

// Register binds a key prefix ("wa", "tg") to a sender.
func (r *Router) Register(prefix string, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[prefix] = s
}

func (r *Router) Send(ctx context.Context, key, text string, buttons []model.Button) error {
	prefix, address, ok := SplitKey(key)
	if !ok {
		return fmt.Errorf("malformed client key %q", key)
	}

	r.mu.RLock()
	sender, found := r.senders[prefix]
	r.mu.RUnlock()
	if !found {
		r.logger.Info().Str("client_key", key).Msg("no push channel, message skipped")
		metrics.IncOutbound(prefix, "skipped")
		return ErrNoPushChannel
	}

	if err := sender.Send(ctx, address, text, buttons); err != nil {
		metrics.IncOutbound(prefix, "error")
		return fmt.Errorf("send via %s: %w", prefix, err)
	}
	metrics.IncOutbound(prefix, "sent")
	return nil
}
