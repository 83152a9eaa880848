// Package dispatch delivers inbound chat events to the bot in per-user order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/ashureev/diffbot/internal/domain"
	"github.com/google/uuid"
)

// Kind distinguishes menu button presses from typed text.
type Kind int

const (
	KindAction Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Event is one inbound user interaction.
type Event struct {
	ID     string
	UserID int64
	Kind   Kind
	Action domain.Action
	Text   string
}

// NewActionEvent builds a menu action event.
func NewActionEvent(userID int64, action domain.Action) Event {
	return Event{UserID: userID, Kind: KindAction, Action: action}
}

// NewTextEvent builds a text event.
func NewTextEvent(userID int64, text string) Event {
	return Event{UserID: userID, Kind: KindText, Text: text}
}

// Handler produces the reply for an event.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) domain.Reply
}

// DeliverFunc sends a reply back through the transport the event came from.
type DeliverFunc func(ctx context.Context, ev Event, reply domain.Reply)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")
	// ErrQueueFull is returned when a user has too many events waiting.
	ErrQueueFull = errors.New("user queue full")
	// ErrNoReply is returned by Call when the handler produced nothing.
	ErrNoReply = errors.New("event produced no reply")
)

const defaultMaxPending = 64

type job struct {
	ctx     context.Context
	ev      Event
	deliver DeliverFunc
}

// Dispatcher runs at most one worker per user. A user's events are handled
// and delivered in the order they were submitted; different users proceed in
// parallel. Workers exit as soon as their queue drains.
type Dispatcher struct {
	handler    Handler
	logger     *slog.Logger
	maxPending int

	mu     sync.Mutex
	queues map[int64][]job
	closed bool
	wg     sync.WaitGroup
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithMaxPending caps the number of queued events per user.
func WithMaxPending(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxPending = n
		}
	}
}

// New creates a dispatcher.
func New(handler Handler, opts ...Option) (*Dispatcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	d := &Dispatcher{
		handler:    handler,
		logger:     slog.Default(),
		maxPending: defaultMaxPending,
		queues:     make(map[int64][]job),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Submit queues an event for its user. The reply is passed to deliver once
// the event has been handled. ctx bounds handling and delivery.
func (d *Dispatcher) Submit(ctx context.Context, ev Event, deliver DeliverFunc) error {
	if ev.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate event id: %w", err)
		}
		ev.ID = id.String()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	q, running := d.queues[ev.UserID]
	if len(q) >= d.maxPending {
		d.logger.Warn("Dropping event, user queue full", "user_id", ev.UserID, "event_id", ev.ID)
		return ErrQueueFull
	}
	d.queues[ev.UserID] = append(q, job{ctx: ctx, ev: ev, deliver: deliver})

	if !running {
		d.wg.Add(1)
		go d.work(ev.UserID)
	}
	return nil
}

func (d *Dispatcher) work(userID int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		q := d.queues[userID]
		if len(q) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		j := q[0]
		d.queues[userID] = q[1:]
		d.mu.Unlock()

		d.process(j)
	}
}

// process handles one job. deliver is called exactly once, with an empty
// reply if the handler panicked.
func (d *Dispatcher) process(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic while handling event",
				"user_id", j.ev.UserID,
				"event_id", j.ev.ID,
				"panic", r,
				"stack", string(debug.Stack()))
			if j.deliver != nil {
				j.deliver(j.ctx, j.ev, domain.Reply{})
			}
		}
	}()

	d.logger.Debug("Handling event",
		"user_id", j.ev.UserID,
		"event_id", j.ev.ID,
		"kind", j.ev.Kind.String())

	reply := d.handler.HandleEvent(j.ctx, j.ev)
	if j.deliver != nil {
		j.deliver(j.ctx, j.ev, reply)
	}
}

// Call submits ev and waits for its reply.
func (d *Dispatcher) Call(ctx context.Context, ev Event) (domain.Reply, error) {
	done := make(chan domain.Reply, 1)
	deliver := func(_ context.Context, _ Event, reply domain.Reply) {
		done <- reply
	}
	if err := d.Submit(ctx, ev, deliver); err != nil {
		return domain.Reply{}, err
	}

	select {
	case reply := <-done:
		if len(reply.Messages) == 0 {
			return reply, ErrNoReply
		}
		return reply, nil
	case <-ctx.Done():
		return domain.Reply{}, ctx.Err()
	}
}

// Pending returns the number of queued events across all users.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting events and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
