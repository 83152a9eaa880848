package bot

import (
	"context"

	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/domain"
)

// Ensure Orchestrator can be driven by the dispatcher.
var _ dispatch.Handler = (*Orchestrator)(nil)

// HandleEvent routes a dispatched event to HandleMenuAction or HandleText.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev dispatch.Event) domain.Reply {
	switch ev.Kind {
	case dispatch.KindAction:
		return o.HandleMenuAction(ctx, ev.UserID, ev.Action)
	case dispatch.KindText:
		return o.HandleText(ctx, ev.UserID, ev.Text)
	default:
		o.logger.Warn("Unknown event kind", "user_id", ev.UserID, "event_id", ev.ID, "kind", int(ev.Kind))
		var reply domain.Reply
		reply.Add(o.render.Menu(), domain.KeyboardMenu)
		return reply
	}
}
