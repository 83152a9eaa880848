package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
	"github.com/ashureev/diffbot/internal/identity"
	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

// Submitter queues events for handling. *dispatch.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, ev dispatch.Event, deliver dispatch.DeliverFunc) error
}

// inboundFrame is what the browser sends.
type inboundFrame struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Text   string `json:"text,omitempty"`
}

// outboundFrame is what the server sends back.
type outboundFrame struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// WebSocketHandler serves /ws/chat.
type WebSocketHandler struct {
	events         Submitter
	conns          *ConnManager
	originPatterns []string
	logger         *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. With no origin
// patterns only same-origin connections are accepted.
func NewWebSocketHandler(events Submitter, conns *ConnManager, originPatterns []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		events:         events,
		conns:          conns,
		originPatterns: originPatterns,
		logger:         logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	h.logger.Info("Chat connection request", "user_id", userID, "ip", identity.IPFromRequest(r))

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "chat ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.conns.Register(userID, ws)
	defer h.conns.Unregister(userID, ws)

	h.readLoop(r.Context(), ws, userID)
	h.logger.Info("Chat connection ended", "user_id", userID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, userID int64) {
	// Events outlive the connection that produced them.
	eventCtx := context.WithoutCancel(ctx)

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.writeError(ctx, ws, "invalid_frame")
			continue
		}

		switch frame.Type {
		case "ping":
			h.write(ctx, ws, outboundFrame{Type: "pong"})
		case "action":
			action, err := domain.ParseAction(frame.Action)
			if err != nil {
				h.writeError(ctx, ws, "unknown_action")
				continue
			}
			h.submit(ctx, ws, eventCtx, dispatch.NewActionEvent(userID, action))
		case "text":
			h.submit(ctx, ws, eventCtx, dispatch.NewTextEvent(userID, frame.Text))
		default:
			h.writeError(ctx, ws, "unknown_type")
		}
	}
}

func (h *WebSocketHandler) submit(ctx context.Context, ws *websocket.Conn, eventCtx context.Context, ev dispatch.Event) {
	if err := h.events.Submit(eventCtx, ev, h.deliver); err != nil {
		h.logger.Warn("Failed to submit chat event", "user_id", ev.UserID, "error", err)
		code := "unavailable"
		if errors.Is(err, dispatch.ErrQueueFull) {
			code = "busy"
		}
		h.writeError(ctx, ws, code)
	}
}

// deliver sends a reply to whichever connection the user has now.
func (h *WebSocketHandler) deliver(ctx context.Context, ev dispatch.Event, reply domain.Reply) {
	if len(reply.Messages) == 0 {
		return
	}
	payload, err := json.Marshal(outboundFrame{Type: "reply", Messages: reply.Messages})
	if err != nil {
		h.logger.Error("Failed to encode reply", "error", err, "event_id", ev.ID)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := h.conns.Send(writeCtx, ev.UserID, payload); err != nil {
		h.logger.Debug("Reply not delivered", "user_id", ev.UserID, "event_id", ev.ID, "error", err)
	}
}

func (h *WebSocketHandler) writeError(ctx context.Context, ws *websocket.Conn, code string) {
	h.write(ctx, ws, outboundFrame{Type: "error", Error: code})
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, frame outboundFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		h.logger.Debug("WebSocket write error", "error", err)
	}
}
