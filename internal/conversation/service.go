// Package conversation runs one inbound message through the dialog machine: it
// serializes turns per client, restores and stores the conversation record and
// bounds each turn with a deadline.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"barberbot/internal/dialog"
	"barberbot/internal/lock"
	"barberbot/internal/metrics"
	"barberbot/internal/model"
)

var (
	// ErrTurnTimeout marks a turn that overran its deadline. Nothing was persisted
	// and the message can be retried.
	ErrTurnTimeout = errors.New("conversation: turn deadline exceeded")
	ErrEmptyKey    = errors.New("conversation: empty client key")
)

// Store persists the per-client conversation record.
type Store interface {
	EnsureClient(ctx context.Context, key string) (int64, error)
	GetStateAndContext(ctx context.Context, key string) (string, []byte, error)
	SetStateAndContext(ctx context.Context, key, state string, ctxJSON []byte) error
}

// Handler computes a reply. *dialog.Machine implements it.
type Handler interface {
	Handle(ctx context.Context, state dialog.State, c dialog.Context, message string) dialog.Reply
	Reset(reason string) dialog.Reply
}

// Turn is what a channel adapter renders back to the client.
type Turn struct {
	Reply   string
	State   string
	Buttons []model.Button
}

type Options struct {
	Location    *time.Location
	TurnTimeout time.Duration
}

type Service struct {
	store    Store
	handler  Handler
	locker   lock.Locker
	location *time.Location
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewService(store Store, handler Handler, locker lock.Locker, opts Options, logger zerolog.Logger) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{
		store:    store,
		handler:  handler,
		locker:   locker,
		location: opts.Location,
		timeout:  opts.TurnTimeout,
		logger:   logger.With().Str("component", "conversation").Logger(),
	}
}

// Channel returns the prefix of a client key ("wa", "tg", "web").
func Channel(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return "unknown"
}

// HandleTurn processes one message from key and persists the resulting state.
func (s *Service) HandleTurn(ctx context.Context, key, message string) (Turn, error) {
	if key == "" {
		return Turn{}, ErrEmptyKey
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	turn, err := s.handle(ctx, key, message)

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, lock.ErrLockTimeout):
		outcome = "timeout"
		err = fmt.Errorf("%w: %v", ErrTurnTimeout, err)
	default:
		outcome = "error"
	}
	metrics.ObserveTurn(Channel(key), outcome, time.Since(started))
	return turn, err
}

func (s *Service) handle(ctx context.Context, key, message string) (Turn, error) {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return Turn{}, fmt.Errorf("lock %s: %w", key, err)
	}
	defer unlock()

	if _, err := s.store.EnsureClient(ctx, key); err != nil {
		return Turn{}, err
	}
	stateName, raw, err := s.store.GetStateAndContext(ctx, key)
	if err != nil {
		return Turn{}, err
	}

	turnID := uuid.NewString()
	log := s.logger.With().Str("client_key", key).Str("turn_id", turnID).Logger()

	var reply dialog.Reply
	state, known := dialog.ParseState(stateName)
	c, decodeErr := dialog.DecodeContext(raw, s.location)
	switch {
	case !known:
		log.Warn().Str("state", stateName).Msg("stored state is unknown")
		reply = s.handler.Reset("unknown stored state")
	case decodeErr != nil:
		log.Warn().Err(decodeErr).Str("state", stateName).Msg("stored context is corrupt")
		reply = s.handler.Reset("corrupt stored context")
	default:
		c.ClientKey = key
		reply = s.handler.Handle(ctx, state, c, message)
	}

	// A deadline hit inside the dialog degrades to a reset reply; do not persist it.
	if err := ctx.Err(); err != nil {
		return Turn{}, err
	}

	encoded, err := dialog.EncodeContext(reply.Context)
	if err != nil {
		return Turn{}, fmt.Errorf("encode context: %w", err)
	}
	if err := s.store.SetStateAndContext(ctx, key, reply.State.String(), encoded); err != nil {
		return Turn{}, err
	}

	metrics.IncTransition(state.String(), reply.State.String())
	log.Debug().
		Str("from_state", stateName).
		Str("to_state", reply.State.String()).
		Msg("turn handled")

	return Turn{Reply: reply.Text, State: reply.State.String(), Buttons: reply.Buttons}, nil
}
