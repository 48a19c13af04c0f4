// Package telegram feeds Telegram long-polling updates into the conversation runner
// and renders replies with inline keyboards.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"barberbot/internal/channels"
	"barberbot/internal/model"
)

const (
	KeyPrefix = "tg:"

	maxCallbackData = 64
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bot is the Telegram channel. It implements channels.Sender for pushes.
type Bot struct {
	tg            telegramClient
	turns         channels.Turns
	updateTimeout int
	logger        zerolog.Logger
}

func New(token string, debug bool, updateTimeout int, turns channels.Turns, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, updateTimeout, turns, logger), nil
}

func newBot(tg telegramClient, updateTimeout int, turns channels.Turns, logger zerolog.Logger) *Bot {
	if updateTimeout <= 0 {
		updateTimeout = 60
	}
	return &Bot{
		tg:            tg,
		turns:         turns,
		updateTimeout: updateTimeout,
		logger:        logger.With().Str("component", "telegram").Logger(),
	}
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.tg.GetUpdatesChan(u)
	defer b.tg.StopReceivingUpdates()
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Telegram bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var (
		chatID int64
		text   string
	)
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if _, err := b.tg.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			b.logger.Warn().Err(err).Msg("failed to answer callback")
		}
		if cq.Message == nil || cq.Message.Chat == nil {
			return
		}
		chatID, text = cq.Message.Chat.ID, cq.Data
	case update.Message != nil && update.Message.Chat != nil:
		chatID, text = update.Message.Chat.ID, update.Message.Text
	default:
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if text == "/start" {
		text = "oi"
	}

	key := KeyPrefix + strconv.FormatInt(chatID, 10)
	turn, err := b.turns.HandleTurn(ctx, key, text)
	if err != nil {
		b.logger.Error().Err(err).Str("client_key", key).Msg("turn failed")
		b.sendText(chatID, "Estamos com instabilidade. Tente novamente em instantes.")
		return
	}
	if err := b.send(chatID, turn.Reply, turn.Buttons); err != nil {
		b.logger.Error().Err(err).Str("client_key", key).Msg("failed to send reply")
	}
}

// Send pushes a message to a chat id given as text.
func (b *Bot) Send(_ context.Context, to, text string, buttons []model.Button) error {
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", to, err)
	}
	return b.send(chatID, text, buttons)
}

func (b *Bot) send(chatID int64, text string, buttons []model.Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = Keyboard(buttons)
	}
	_, err := b.tg.Send(msg)
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &channels.SendError{
			Channel:    "telegram",
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			RetryAfter: time.Duration(apiErr.RetryAfter) * time.Second,
		}
	}
	return err
}

func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}

// Keyboard renders one button per row; callback data carries the button id.
func Keyboard(buttons []model.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, callbackData(btn.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func callbackData(id string) string {
	if len(id) <= maxCallbackData {
		return id
	}
	n := maxCallbackData
	for n > 0 && id[n]&0xC0 == 0x80 {
		n--
	}
	return id[:n]
}
