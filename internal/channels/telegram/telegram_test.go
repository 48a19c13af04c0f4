package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barberbot/internal/channels"
	"barberbot/internal/conversation"
	"barberbot/internal/model"
)

type fakeTelegram struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	sendErr  error
}

func newFakeTelegram() *fakeTelegram {
	return &fakeTelegram{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeTelegram) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "barber_bot"}
}

func (f *fakeTelegram) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

type mockTurns struct {
	mock.Mock
}

func (m *mockTurns) HandleTurn(ctx context.Context, key, message string) (conversation.Turn, error) {
	args := m.Called(ctx, key, message)
	return args.Get(0).(conversation.Turn), args.Error(1)
}

func TestKeyboard(t *testing.T) {
	long := strings.Repeat("x", 70)
	kb := Keyboard([]model.Button{
		{ID: "SLOT_09:30", Label: "09:30"},
		{ID: long, Label: "Longo"},
	})
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "09:30", kb.InlineKeyboard[0][0].Text)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "SLOT_09:30", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Len(t, *kb.InlineKeyboard[1][0].CallbackData, 64)
}

func TestCallbackDataKeepsRunes(t *testing.T) {
	id := strings.Repeat("a", 63) + "é"
	got := callbackData(id)
	assert.Equal(t, strings.Repeat("a", 63), got)
}

func TestHandleMessage(t *testing.T) {
	tg := newFakeTelegram()
	turns := new(mockTurns)
	bot := newBot(tg, 0, turns, zerolog.Nop())

	buttons := []model.Button{{ID: "agendar", Label: "Agendar"}}
	turns.On("HandleTurn", mock.Anything, "tg:42", "oi").
		Return(conversation.Turn{Reply: "Olá!", State: "START", Buttons: buttons}, nil).Once()

	bot.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: "/start", Chat: &tgbotapi.Chat{ID: 42}},
	})

	sent := tg.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].ChatID)
	assert.Equal(t, "Olá!", sent[0].Text)
	kb, ok := sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "Agendar", kb.InlineKeyboard[0][0].Text)
	turns.AssertExpectations(t)
}

func TestHandleCallback(t *testing.T) {
	tg := newFakeTelegram()
	turns := new(mockTurns)
	bot := newBot(tg, 0, turns, zerolog.Nop())

	turns.On("HandleTurn", mock.Anything, "tg:7", "CONFIRM_YES").
		Return(conversation.Turn{Reply: "✅ Agendamento confirmado!", State: "CONFIRMED"}, nil).Once()

	bot.handleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb1",
			Data:    "CONFIRM_YES",
			Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}},
		},
	})

	require.Len(t, tg.requests, 1)
	sent := tg.messages()
	require.Len(t, sent, 1)
	assert.Nil(t, sent[0].ReplyMarkup)
	turns.AssertExpectations(t)
}

func TestHandleTurnFailure(t *testing.T) {
	tg := newFakeTelegram()
	turns := new(mockTurns)
	bot := newBot(tg, 0, turns, zerolog.Nop())
	turns.On("HandleTurn", mock.Anything, "tg:9", "oi").Return(conversation.Turn{}, errors.New("db locked"))

	bot.handleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{Text: "oi", Chat: &tgbotapi.Chat{ID: 9}},
	})

	sent := tg.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Tente novamente")
}

func TestStartStopsOnContext(t *testing.T) {
	tg := newFakeTelegram()
	turns := new(mockTurns)
	bot := newBot(tg, 0, turns, zerolog.Nop())
	turns.On("HandleTurn", mock.Anything, "tg:1", "oi").Return(conversation.Turn{Reply: "Olá"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bot.Start(ctx)
		close(done)
	}()

	tg.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Text: "oi", Chat: &tgbotapi.Chat{ID: 1}}}
	assert.Eventually(t, func() bool { return len(tg.messages()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestSend(t *testing.T) {
	tg := newFakeTelegram()
	bot := newBot(tg, 0, new(mockTurns), zerolog.Nop())

	require.NoError(t, bot.Send(context.Background(), "-100", "Lembrete", nil))
	assert.Equal(t, int64(-100), tg.messages()[0].ChatID)

	assert.Error(t, bot.Send(context.Background(), "abc", "x", nil))
}

func TestSendMapsAPIErrors(t *testing.T) {
	tg := newFakeTelegram()
	tg.sendErr = &tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 3",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3},
	}
	bot := newBot(tg, 0, new(mockTurns), zerolog.Nop())

	err := bot.Send(context.Background(), "42", "Lembrete", nil)
	se, ok := channels.AsSendError(err)
	require.True(t, ok)
	assert.Equal(t, "telegram", se.Channel)
	assert.Equal(t, 3*time.Second, se.RetryAfter)
	assert.False(t, se.Permanent())

	tg.sendErr = &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}
	se, ok = channels.AsSendError(bot.Send(context.Background(), "42", "Lembrete", nil))
	require.True(t, ok)
	assert.True(t, se.Permanent())
}
