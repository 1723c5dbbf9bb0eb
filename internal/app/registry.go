package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hideo54/image-adjuster/internal/domain"
	"github.com/jonboulle/clockwork"
)

// DefaultUnviewedTTL is how long a session without any view survives.
const DefaultUnviewedTTL = time.Minute

// Registry owns the live sessions of this process, one per open tool page.
type Registry struct {
	opts      SessionOptions
	clock     clockwork.Clock
	publisher domain.Publisher
	observer  domain.SessionObserver

	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry
}

// entry tracks whether a session ever had a view attached. Sessions with a view
// are closed by the view transport when the last one leaves; the rest are reaped.
type entry struct {
	session    *Session
	viewed     bool
	lastActive time.Time
}

func NewRegistry(opts SessionOptions, clock clockwork.Clock, publisher domain.Publisher, observer domain.SessionObserver) *Registry {
	return &Registry{
		opts:      opts,
		clock:     clock,
		publisher: publisher,
		observer:  observer,
		sessions:  make(map[uuid.UUID]*entry),
	}
}

// Create opens a new session with default state.
func (r *Registry) Create(ctx context.Context) *Session {
	s := NewSession(uuid.New(), r.opts, r.clock, r.publisher, r.observer)

	r.mu.Lock()
	r.sessions[s.ID()] = &entry{session: s, lastActive: r.clock.Now()}
	total := len(r.sessions)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.SessionOpened()
	}
	slog.InfoContext(ctx, "Session opened", "session_id", s.ID().String(), "active_sessions", total)
	return s
}

func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return e.session, nil
}

// MarkViewed records that a view is attached to the session. From then on the
// session lives until its last view leaves, not until it idles out.
func (r *Registry) MarkViewed(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	e.viewed = true
	return nil
}

func (r *Registry) touch(id uuid.UUID) {
	r.mu.Lock()
	if e, ok := r.sessions[id]; ok {
		e.lastActive = r.clock.Now()
	}
	r.mu.Unlock()
}

func (r *Registry) Snapshot(id uuid.UUID) (domain.Snapshot, error) {
	s, err := r.Get(id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Apply runs one command against a session and returns the resulting snapshot.
func (r *Registry) Apply(ctx context.Context, id uuid.UUID, cmd domain.Command) (domain.CommandResult, error) {
	s, err := r.Get(id)
	if err != nil {
		return domain.CommandResult{}, err
	}

	r.touch(id)
	applied, err := s.Apply(cmd)
	if r.observer != nil {
		r.observer.CommandHandled(cmd.Type, applied)
	}
	if err != nil {
		return domain.CommandResult{}, fmt.Errorf("session %s: %w", id, err)
	}

	slog.DebugContext(ctx, "Command handled", "session_id", id.String(), "command", string(cmd.Type), "applied", applied)
	return domain.CommandResult{Applied: applied, Snapshot: s.Snapshot()}, nil
}

// Remove closes and forgets a session. It reports whether the session existed.
func (r *Registry) Remove(id uuid.UUID) bool {
	return r.removeIf(id, nil)
}

// removeIf deletes the session when match is nil or reports true for its entry.
// The check and the delete share one critical section.
func (r *Registry) removeIf(id uuid.UUID, match func(*entry) bool) bool {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if ok && match != nil && !match(e) {
		ok = false
	}
	if ok {
		delete(r.sessions, id)
	}
	total := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return false
	}

	e.session.Close()
	if r.observer != nil {
		r.observer.SessionClosed()
	}
	slog.Info("Session closed", "session_id", id.String(), "active_sessions", total)
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll tears down every session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
}

// RunReaper removes sessions that never had a view attached and saw no command
// for ttl. It blocks until ctx is cancelled.
func (r *Registry) RunReaper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultUnviewedTTL
	}
	ticker := r.clock.NewTicker(reapInterval(ttl))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := r.reap(ttl); n > 0 {
				slog.InfoContext(ctx, "Reaped unviewed sessions", "count", n, "ttl", ttl)
			}
		}
	}
}

func (r *Registry) reap(ttl time.Duration) int {
	now := r.clock.Now()
	stale := func(e *entry) bool {
		return !e.viewed && now.Sub(e.lastActive) >= ttl
	}

	r.mu.RLock()
	var expired []uuid.UUID
	for id, e := range r.sessions {
		if stale(e) {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	// A view may attach or a command arrive between the scan and the delete.
	removed := 0
	for _, id := range expired {
		if r.removeIf(id, stale) {
			removed++
		}
	}
	return removed
}

func reapInterval(ttl time.Duration) time.Duration {
	return max(ttl/2, time.Second)
}
