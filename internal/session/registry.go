package session

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the maximum number of members per session.
	DefaultCapacity = 5

	// DefaultIdleTimeout is how long an empty session stays joinable.
	DefaultIdleTimeout = time.Hour

	// DefaultSweepInterval is how often the idle reaper runs.
	DefaultSweepInterval = 5 * time.Minute
)

// Registry owns the process-wide mapping from code to live Session.
// Construct one in main for the real server and fresh ones in tests.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	capacity    int
	idleTimeout time.Duration
	onReap      func(reaped int)
}

// Option configures a Registry.
type Option func(*Registry)

// WithCapacity sets the per-session member limit.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		r.capacity = n
	}
}

// WithIdleTimeout sets how long an empty session survives before the
// reaper may reclaim it.
func WithIdleTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.idleTimeout = d
	}
}

// WithOnReap sets a callback invoked with the number of sessions each
// sweep reclaimed.
func WithOnReap(fn func(reaped int)) Option {
	return func(r *Registry) {
		r.onReap = fn
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		capacity:    DefaultCapacity,
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new empty session under a fresh code and returns it.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		code:         r.uniqueCode(),
		capacity:     r.capacity,
		lastActivity: time.Now(),
	}
	r.sessions[s.code] = s
	return s
}

// Lookup returns the session registered under code, or
// ErrSessionNotFound if there is none.
func (r *Registry) Lookup(code string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete removes the session registered under code. Deleting an absent
// code is a no-op.
func (r *Registry) Delete(code string) {
	r.mu.Lock()
	delete(r.sessions, code)
	r.mu.Unlock()
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap deletes every session that is empty and has been idle for at
// least the registry's idle timeout, and returns how many it removed.
// Each candidate is marked reclaimed under its own lock first, so a
// join racing the sweep either lands before the mark and keeps the
// session, or observes ErrSessionNotFound.
func (r *Registry) Reap(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for code, s := range r.sessions {
		if s.reclaim(now, r.idleTimeout) {
			delete(r.sessions, code)
			reaped++
		}
	}
	if reaped > 0 && r.onReap != nil {
		r.onReap(reaped)
	}
	return reaped
}

// Run sweeps idle sessions every interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Reap(time.Now()); n > 0 {
				log.Printf("session: reaped %d idle session(s), %d remaining", n, r.Count())
			}
		}
	}
}
