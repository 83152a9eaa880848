// Package api provides HTTP handlers for the diffbot API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/middleware"
	"github.com/ashureev/diffbot/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	defaultCallTimeout   = 30 * time.Second
	defaultHealthTimeout = 5 * time.Second
)

// EventCaller runs an event through the bot and returns its reply.
// *dispatch.Dispatcher implements it.
type EventCaller interface {
	Call(ctx context.Context, ev dispatch.Event) (domain.Reply, error)
}

// Handler serves the REST surface.
type Handler struct {
	repo          store.Repository
	events        EventCaller
	token         string
	callTimeout   time.Duration
	healthTimeout time.Duration
	logger        *slog.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithCallTimeout bounds how long POST /api/events waits for a reply.
func WithCallTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.callTimeout = d
		}
	}
}

// NewHandler creates a new Handler. token guards every route except health.
func NewHandler(repo store.Repository, events EventCaller, token string, opts ...Option) *Handler {
	h := &Handler{
		repo:          repo,
		events:        events,
		token:         token,
		callTimeout:   defaultCallTimeout,
		healthTimeout: defaultHealthTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the /api routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(h.token))
			r.Post("/events", h.PostEvent)
			r.Get("/users/{userID}/records", h.ListRecords)
			r.Delete("/users/{userID}/records", h.DeleteRecords)
		})
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
