package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	stopped  bool
	editErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.editErr != nil {
		return tgbotapi.Message{}, f.editErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) sentMessages() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

// syncSubmitter handles events inline with a canned reply.
type syncSubmitter struct {
	mu     sync.Mutex
	reply  domain.Reply
	events []dispatch.Event
	err    error
}

func (s *syncSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *syncSubmitter) Submit(ctx context.Context, ev dispatch.Event, deliver dispatch.DeliverFunc) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	deliver(ctx, ev, s.reply)
	return nil
}

func newTestBot(t *testing.T, api API, sub Submitter) *Bot {
	t.Helper()
	b, err := New(api, sub, render.New("en"), WithStartTime(time.Unix(1000, 0)))
	require.NoError(t, err)
	return b
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID},
		Date:      2000,
		Text:      text,
	}}
}

func callbackUpdate(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: userID},
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 42,
			Chat:      &tgbotapi.Chat{ID: userID},
		},
	}}
}

func TestTextMessageBecomesTextEvent(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	sub.reply.Add("Saved.", domain.KeyboardNone)
	sub.reply.Add("menu", domain.KeyboardMenu)
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), textUpdate(5, "lunch"))

	require.Len(t, sub.events, 1)
	assert.Equal(t, dispatch.KindText, sub.events[0].Kind)
	assert.Equal(t, int64(5), sub.events[0].UserID)
	assert.Equal(t, "lunch", sub.events[0].Text)

	sent := api.sentMessages()
	require.Len(t, sent, 2)
	first := sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "Saved.", first.Text)
	assert.Nil(t, first.ReplyMarkup)

	second := sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(5), second.ChatID)
	markup, ok := second.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, "tg:1", *markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "tg:-1", *markup.InlineKeyboard[1][0].CallbackData)
	assert.Equal(t, "tg:-2", *markup.InlineKeyboard[2][0].CallbackData)
}

func TestStartCommandIsPlainText(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), textUpdate(5, "/start"))

	require.Len(t, sub.events, 1)
	assert.Equal(t, dispatch.KindText, sub.events[0].Kind)
	assert.Equal(t, "/start", sub.events[0].Text)
}

func TestCallbackEditsOriginatingMessage(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	sub.reply.Add("Enter the first number:", domain.KeyboardCancel)
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), callbackUpdate(5, "tg:1"))

	require.Len(t, sub.events, 1)
	assert.Equal(t, dispatch.KindAction, sub.events[0].Kind)
	assert.Equal(t, domain.ActionStartAdd, sub.events[0].Action)

	require.Len(t, api.requests, 1)
	answer := api.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "cb-1", answer.CallbackQueryID)

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	edit := sent[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 42, edit.MessageID)
	assert.Equal(t, "Enter the first number:", edit.Text)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "tg:0", *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "Back", edit.ReplyMarkup.InlineKeyboard[0][0].Text)
}

func TestFailedEditFallsBackToSend(t *testing.T) {
	api := newFakeAPI()
	api.editErr = errors.New("Bad Request: message to edit not found")
	sub := &syncSubmitter{}
	sub.reply.Add("menu", domain.KeyboardMenu)
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), callbackUpdate(5, "tg:0"))

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	msg := sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, "menu", msg.Text)
}

func TestUnmodifiedEditIsNotResent(t *testing.T) {
	api := newFakeAPI()
	api.editErr = errors.New("Bad Request: message is not modified")
	sub := &syncSubmitter{}
	sub.reply.Add("menu", domain.KeyboardMenu)
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), callbackUpdate(5, "tg:0"))
	assert.Empty(t, api.sentMessages())
}

func TestUnknownCallbackIsIgnored(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), callbackUpdate(5, "tg:9"))
	b.handleUpdate(context.Background(), callbackUpdate(5, "other:1"))

	assert.Empty(t, sub.events)
	assert.Len(t, api.requests, 2)
}

func TestStaleAndNonTextMessagesAreSkipped(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	b := newTestBot(t, api, sub)

	stale := textUpdate(5, "old")
	stale.Message.Date = 10
	b.handleUpdate(context.Background(), stale)
	b.handleUpdate(context.Background(), textUpdate(5, ""))

	assert.Empty(t, sub.events)
}

func TestSubmitFailureIsLogged(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{err: dispatch.ErrQueueFull}
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), textUpdate(5, "1"))
	assert.Empty(t, api.sentMessages())
}

func TestLongRepliesAreSplit(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	long := strings.Repeat("1. 5\nlunch\n\n", 1000)
	sub.reply.Add(long, domain.KeyboardCancel)
	b := newTestBot(t, api, sub)

	b.handleUpdate(context.Background(), textUpdate(5, "x"))

	sent := api.sentMessages()
	require.Greater(t, len(sent), 1)
	for i, c := range sent {
		msg := c.(tgbotapi.MessageConfig)
		assert.LessOrEqual(t, len([]rune(msg.Text)), MaxMessageLength)
		if i < len(sent)-1 {
			assert.Nil(t, msg.ReplyMarkup)
		} else {
			assert.NotNil(t, msg.ReplyMarkup)
		}
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	api := newFakeAPI()
	sub := &syncSubmitter{}
	b := newTestBot(t, api, sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(5, "hello")
	require.Eventually(t, func() bool { return sub.count() == 1 },
		2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, api.stopped)
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(nil, &syncSubmitter{}, nil)
	assert.Error(t, err)
	_, err = New(newFakeAPI(), nil, nil)
	assert.Error(t, err)
}
