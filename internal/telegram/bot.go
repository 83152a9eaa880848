// Package telegram connects the bot to Telegram through long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the subset of *tgbotapi.BotAPI used by the transport.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Submitter queues events for handling. *dispatch.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, ev dispatch.Event, deliver dispatch.DeliverFunc) error
}

// Ensure the real client satisfies API.
var _ API = (*tgbotapi.BotAPI)(nil)

// Bot turns Telegram updates into dispatch events and sends the replies back.
type Bot struct {
	api         API
	events      Submitter
	render      *render.Renderer
	logger      *slog.Logger
	pollTimeout int
	startedAt   time.Time
}

// Option configures the bot.
type Option func(*Bot)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithPollTimeout sets the long polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(b *Bot) {
		if seconds > 0 {
			b.pollTimeout = seconds
		}
	}
}

// WithStartTime sets the instant before which incoming messages are ignored.
func WithStartTime(t time.Time) Option {
	return func(b *Bot) {
		b.startedAt = t
	}
}

// New creates a bot transport.
func New(api API, events Submitter, r *render.Renderer, opts ...Option) (*Bot, error) {
	if api == nil {
		return nil, fmt.Errorf("telegram api is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event submitter is required")
	}
	if r == nil {
		r = render.New("en")
	}

	b := &Bot{
		api:         api,
		events:      events,
		render:      r,
		logger:      slog.Default(),
		pollTimeout: 60,
		startedAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Connect authenticates against the Bot API with token.
func Connect(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// Run polls for updates until ctx is cancelled or the update channel closes.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("Telegram polling started", "timeout", b.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		b.logger.Warn("Failed to answer callback", "error", err)
	}
	if cq.From == nil {
		return
	}

	action, ok := ParseCallbackData(cq.Data)
	if !ok {
		b.logger.Warn("Ignoring unknown callback data", "user_id", cq.From.ID, "data", cq.Data)
		return
	}

	chatID := cq.From.ID
	deliver := b.sendTo(chatID)
	if cq.Message != nil {
		if cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		deliver = b.editIn(chatID, cq.Message.MessageID)
	}
	b.submit(ctx, dispatch.NewActionEvent(cq.From.ID, action), deliver)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if int64(msg.Date) < b.startedAt.Unix() {
		b.logger.Debug("Skipping message sent before startup", "user_id", msg.From.ID)
		return
	}
	if msg.Text == "" {
		b.logger.Debug("Ignoring non-text message", "user_id", msg.From.ID)
		return
	}
	b.submit(ctx, dispatch.NewTextEvent(msg.From.ID, msg.Text), b.sendTo(msg.Chat.ID))
}

// submit queues ev. Queued events are still handled and answered after
// polling stops.
func (b *Bot) submit(ctx context.Context, ev dispatch.Event, deliver dispatch.DeliverFunc) {
	if err := b.events.Submit(context.WithoutCancel(ctx), ev, deliver); err != nil {
		level := slog.LevelError
		if errors.Is(err, dispatch.ErrQueueFull) || errors.Is(err, dispatch.ErrClosed) {
			level = slog.LevelWarn
		}
		b.logger.Log(ctx, level, "Failed to submit event",
			"user_id", ev.UserID, "kind", ev.Kind.String(), "error", err)
	}
}

// sendTo delivers every message of a reply as a new chat message.
func (b *Bot) sendTo(chatID int64) dispatch.DeliverFunc {
	return func(_ context.Context, ev dispatch.Event, reply domain.Reply) {
		for _, m := range reply.Messages {
			b.send(chatID, ev, m)
		}
	}
}

// editIn replaces the text of the message a button belongs to with the first
// message of the reply. Anything else is sent as new messages.
func (b *Bot) editIn(chatID int64, messageID int) dispatch.DeliverFunc {
	return func(_ context.Context, ev dispatch.Event, reply domain.Reply) {
		if len(reply.Messages) == 0 {
			return
		}
		first := reply.Messages[0]
		chunks := splitText(first.Text, MaxMessageLength)
		if len(chunks) > 1 || !b.edit(chatID, messageID, ev, first) {
			b.send(chatID, ev, first)
		}
		for _, m := range reply.Messages[1:] {
			b.send(chatID, ev, m)
		}
	}
}

// edit reports whether the message was updated in place.
func (b *Bot) edit(chatID int64, messageID int, ev dispatch.Event, m domain.Message) bool {
	cfg := tgbotapi.NewEditMessageText(chatID, messageID, m.Text)
	cfg.ReplyMarkup = inlineKeyboard(b.render, m.Keyboard)

	if _, err := b.api.Send(cfg); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return true
		}
		b.logger.Warn("Failed to edit message, sending instead",
			"user_id", ev.UserID, "event_id", ev.ID, "error", err)
		return false
	}
	return true
}

func (b *Bot) send(chatID int64, ev dispatch.Event, m domain.Message) {
	chunks := splitText(m.Text, MaxMessageLength)
	for i, chunk := range chunks {
		cfg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 {
			if markup := inlineKeyboard(b.render, m.Keyboard); markup != nil {
				cfg.ReplyMarkup = markup
			}
		}
		if _, err := b.api.Send(cfg); err != nil {
			b.logger.Error("Failed to send message",
				"user_id", ev.UserID,
				"event_id", ev.ID,
				"length", len(chunk),
				"error", err)
			return
		}
	}
}
