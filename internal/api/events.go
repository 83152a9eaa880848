package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
)

// eventRequest is the body of POST /api/events.
type eventRequest struct {
	UserID int64  `json:"user_id"`
	Kind   string `json:"kind"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text,omitempty"`
}

func (req eventRequest) event() (dispatch.Event, error) {
	if req.UserID == 0 {
		return dispatch.Event{}, errors.New("user_id is required")
	}
	switch req.Kind {
	case "action":
		action, err := domain.ParseAction(req.Action)
		if err != nil {
			return dispatch.Event{}, err
		}
		return dispatch.NewActionEvent(req.UserID, action), nil
	case "text":
		return dispatch.NewTextEvent(req.UserID, req.Text), nil
	default:
		return dispatch.Event{}, errors.New(`kind must be "action" or "text"`)
	}
}

// PostEvent feeds one user interaction to the bot and returns its reply.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, err := req.event()
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.callTimeout)
	defer cancel()

	reply, err := h.events.Call(ctx, ev)
	switch {
	case err == nil:
		JSON(w, http.StatusOK, reply)
	case errors.Is(err, dispatch.ErrQueueFull):
		Error(w, http.StatusTooManyRequests, "too many pending events")
	case errors.Is(err, dispatch.ErrClosed):
		Error(w, http.StatusServiceUnavailable, "shutting down")
	case errors.Is(err, context.DeadlineExceeded):
		Error(w, http.StatusGatewayTimeout, "timed out waiting for reply")
	default:
		h.logger.Error("Event handling failed", "user_id", ev.UserID, "kind", ev.Kind.String(), "error", err)
		Error(w, http.StatusInternalServerError, "event handling failed")
	}
}
