// Package bot dispatches user events to the dialogue machine and the record store.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/diffbot/internal/dialogue"
	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/render"
	"github.com/ashureev/diffbot/internal/session"
	"github.com/ashureev/diffbot/internal/store"
)

// Orchestrator turns menu actions and text messages into replies.
// It is safe for concurrent use; events for one user are serialized through
// the session registry.
type Orchestrator struct {
	repo     store.Repository
	sessions *session.Registry
	machine  *dialogue.Machine
	render   *render.Renderer
	logger   *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithRenderer sets the renderer used for message text.
func WithRenderer(r *render.Renderer) Option {
	return func(o *Orchestrator) {
		o.render = r
	}
}

// New creates an orchestrator over the given store and session registry.
func New(repo store.Repository, sessions *session.Registry, opts ...Option) (*Orchestrator, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}

	o := &Orchestrator{
		repo:     repo,
		sessions: sessions,
		machine:  dialogue.NewMachine(),
		render:   render.New("en"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Renderer returns the renderer used for replies.
func (o *Orchestrator) Renderer() *render.Renderer {
	return o.render
}

// HandleMenuAction runs one of the menu actions for a user.
func (o *Orchestrator) HandleMenuAction(ctx context.Context, userID int64, action domain.Action) domain.Reply {
	var reply domain.Reply

	o.sessions.Do(userID, func(s *domain.Session) {
		switch action {
		case domain.ActionStartAdd:
			next, out := o.machine.Handle(*s, dialogue.Start())
			*s = next
			reply = o.outcomeReply(out)

		case domain.ActionCancel:
			if s.Active() {
				o.logger.Debug("Dialogue cancelled", "user_id", userID, "state", s.State.String())
			}
			next, out := o.machine.Handle(*s, dialogue.Cancel())
			*s = next
			reply = o.outcomeReply(out)

		case domain.ActionShowHistory:
			reply = o.showHistory(ctx, userID)

		case domain.ActionClearHistory:
			reply = o.clearHistory(ctx, userID)

		default:
			o.logger.Warn("Unknown menu action", "user_id", userID, "action", int(action))
			reply.Add(o.render.Menu(), domain.KeyboardMenu)
		}
	})

	return reply
}

// HandleText feeds a text message into the user's dialogue. Users without an
// active dialogue get the main menu; nothing is stored in that case.
func (o *Orchestrator) HandleText(ctx context.Context, userID int64, text string) domain.Reply {
	var reply domain.Reply

	o.sessions.Do(userID, func(s *domain.Session) {
		next, out := o.machine.Handle(*s, dialogue.Text(text))
		if out.Prompt != dialogue.PromptCommit {
			if out.Prompt == dialogue.PromptRetry {
				o.logger.Debug("Rejected number input",
					"user_id", userID,
					"state", s.State.String(),
					"text_length", len(text))
			}
			*s = next
			reply = o.outcomeReply(out)
			return
		}

		id, err := o.repo.Insert(ctx, *out.Commit)
		if err != nil {
			// Keep the session so resending the description retries the commit.
			o.logger.Error("Failed to save calculation", "user_id", userID, "error", err)
			reply.Add(o.render.SaveFailed(), domain.KeyboardCancel)
			return
		}

		*s = next
		o.logger.Info("Calculation saved", "user_id", userID, "record_id", id)
		reply.Add(o.render.Saved(), domain.KeyboardNone)
		reply.Add(o.render.Menu(), domain.KeyboardMenu)
	})

	return reply
}

func (o *Orchestrator) showHistory(ctx context.Context, userID int64) domain.Reply {
	var reply domain.Reply

	records, err := o.repo.ListByUser(ctx, userID)
	if err != nil {
		o.logger.Error("Failed to list history", "user_id", userID, "error", err)
		reply.Add(o.render.HistoryFailed(), domain.KeyboardCancel)
		return reply
	}

	reply.Add(o.render.History(records), domain.KeyboardCancel)
	return reply
}

func (o *Orchestrator) clearHistory(ctx context.Context, userID int64) domain.Reply {
	var reply domain.Reply

	deleted, err := o.repo.DeleteByUser(ctx, userID)
	if err != nil {
		o.logger.Error("Failed to clear history", "user_id", userID, "error", err)
		reply.Add(o.render.ClearFailed(), domain.KeyboardCancel)
		return reply
	}

	o.logger.Info("History cleared", "user_id", userID, "deleted", deleted)
	reply.Add(o.render.Cleared(), domain.KeyboardCancel)
	return reply
}

func (o *Orchestrator) outcomeReply(out dialogue.Outcome) domain.Reply {
	var reply domain.Reply

	switch out.Prompt {
	case dialogue.PromptOperand1:
		reply.Add(o.render.AskOperand1(), domain.KeyboardCancel)
	case dialogue.PromptOperand2:
		reply.Add(o.render.AskOperand2(out.Operand1), domain.KeyboardCancel)
	case dialogue.PromptDescription:
		reply.Add(o.render.AskDescription(out.Operand1, out.Operand2, out.Result), domain.KeyboardCancel)
	case dialogue.PromptRetry:
		reply.Add(o.render.InvalidNumber(out.ParseErr.Reason()), domain.KeyboardCancel)
	default:
		reply.Add(o.render.Menu(), domain.KeyboardMenu)
	}
	return reply
}
