// Package session keeps per-user dialogue sessions in memory.
package session

import (
	"sync"
	"time"

	"github.com/ashureev/diffbot/internal/domain"
)

type entry struct {
	mu      sync.Mutex
	session domain.Session
	removed bool
}

// Registry maps user IDs to sessions. Each session is accessed under its own
// lock, so handlers for different users run in parallel while handlers for
// the same user are serialized.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
	now     func() time.Time
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*entry),
		now:     time.Now,
	}
}

func (r *Registry) acquire(userID int64) *entry {
	for {
		r.mu.Lock()
		e, ok := r.entries[userID]
		if !ok {
			e = &entry{session: domain.NewSession(userID)}
			e.session.UpdatedAt = r.now()
			r.entries[userID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		// Swept between lookup and lock; look it up again.
		e.mu.Unlock()
	}
}

// Do runs fn with exclusive access to the user's session, creating an idle
// session on first use. Changes fn makes to the session are kept.
func (r *Registry) Do(userID int64, fn func(s *domain.Session)) {
	e := r.acquire(userID)
	defer e.mu.Unlock()

	fn(&e.session)
	e.session.UpdatedAt = r.now()
}

// Get returns a copy of the user's session. Users without a session are idle.
func (r *Registry) Get(userID int64) domain.Session {
	r.mu.Lock()
	e, ok := r.entries[userID]
	r.mu.Unlock()
	if !ok {
		return domain.NewSession(userID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return domain.NewSession(userID)
	}
	return e.session
}

// Reset returns the user's session to Idle.
func (r *Registry) Reset(userID int64) {
	r.Do(userID, func(s *domain.Session) { s.Reset() })
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Expire resets sessions untouched for longer than ttl and forgets them.
// Sessions currently being handled are skipped. It returns the user IDs whose
// unfinished dialogues were discarded.
func (r *Registry) Expire(ttl time.Duration) []int64 {
	threshold := r.now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var discarded []int64
	for userID, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.session.UpdatedAt.Before(threshold) {
			if e.session.Active() {
				discarded = append(discarded, userID)
			}
			e.session.Reset()
			e.removed = true
			delete(r.entries, userID)
		}
		e.mu.Unlock()
	}
	return discarded
}
