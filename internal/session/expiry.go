package session

import (
	"context"
	"log/slog"
	"time"
)

// StartExpiryWorker runs a background goroutine that periodically resets
// dialogues left idle for longer than ttl. Expiry only touches in-memory
// state; nothing is written to the store. A non-positive ttl disables it.
func StartExpiryWorker(ctx context.Context, r *Registry, ttl, interval time.Duration) {
	if ttl <= 0 || interval <= 0 {
		slog.Info("Session expiry disabled")
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session expiry worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(r, ttl)
			case <-ctx.Done():
				slog.Info("Session expiry worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(r *Registry, ttl time.Duration) {
	before := r.Len()
	discarded := r.Expire(ttl)

	for _, userID := range discarded {
		slog.Info("Discarded stale dialogue", "user_id", userID)
	}
	if removed := before - r.Len(); removed > 0 {
		slog.Debug("Session expiry sweep completed", "removed", removed, "remaining", r.Len())
	}
}
