package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Options configures a Registry. Zero values take the defaults.
type Options struct {
	Timeout         time.Duration
	CleanupInterval time.Duration
	MaxHistory      int
	Clock           clockwork.Clock

	// OnEvict is called with the id of every session removed by a sweep,
	// Delete or Close. It runs with the registry lock held and must not
	// call back into the registry.
	OnEvict func(id string)
}

const (
	defaultTimeout         = time.Hour
	defaultCleanupInterval = 5 * time.Minute
	defaultMaxHistory      = 50
)

// Registry owns every live session. Expired sessions are removed lazily by
// a throttled sweep on GetOrCreate and ActiveCount.
type Registry struct {
	opts Options

	mu          sync.Mutex
	sessions    map[string]*Session
	lastCleanup time.Time
	closed      bool
}

func NewRegistry(opts Options) *Registry {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = defaultMaxHistory
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Registry{
		opts:        opts,
		sessions:    make(map[string]*Session),
		lastCleanup: opts.Clock.Now(),
	}
}

// Timeout returns the idle period after which sessions expire.
func (r *Registry) Timeout() time.Duration { return r.opts.Timeout }

// GetOrCreate returns the session for id, creating it when unknown, and
// marks it active. An empty id gets a generated one.
func (r *Registry) GetOrCreate(id string) *Session {
	if id == "" {
		id = uuid.NewString()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if ok && s.IsExpired(r.opts.Timeout) {
		// an expired session is never resumed, even before the sweep reaches it
		r.removeLocked(id)
		log.Info().Str("session_id", id).Msg("replaced expired session")
		ok = false
	}
	if !ok {
		s = newSession(id, r.opts.Clock, r.opts.MaxHistory)
		r.sessions[id] = s
	}
	s.Touch()
	r.sweepLocked()
	return s
}

// Create starts a session with a generated id.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	for r.sessions[id] != nil {
		id = uuid.NewString()
	}
	s := newSession(id, r.opts.Clock, r.opts.MaxHistory)
	r.sessions[id] = s
	log.Info().Str("session_id", id).Msg("created new session")
	return s
}

// Get returns a live session without creating or touching it.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.IsExpired(r.opts.Timeout) {
		return nil, false
	}
	return s, true
}

// Delete removes a session and reports whether it existed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	r.removeLocked(id)
	log.Info().Str("session_id", id).Msg("deleted session")
	return true
}

// ActiveCount sweeps if due and returns the number of sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.sessions)
}

// Sweep removes expired sessions now, regardless of the interval.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepNowLocked()
}

// RunSweeper removes expired sessions every interval until ctx is done, so
// idle sessions are dropped even when no request arrives.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := r.opts.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

// Close drops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for id := range r.sessions {
		r.removeLocked(id)
	}
	r.closed = true
	log.Info().Msg("session registry closed")
}

func (r *Registry) sweepLocked() {
	if r.opts.Clock.Since(r.lastCleanup) < r.opts.CleanupInterval {
		return
	}
	r.sweepNowLocked()
}

func (r *Registry) sweepNowLocked() int {
	var expired []string
	for id, s := range r.sessions {
		if s.IsExpired(r.opts.Timeout) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.removeLocked(id)
		log.Info().Str("session_id", id).Msg("cleaned up expired session")
	}
	if len(expired) > 0 {
		log.Info().Int("count", len(expired)).Msg("cleaned up expired sessions")
	}
	r.lastCleanup = r.opts.Clock.Now()
	return len(expired)
}

func (r *Registry) removeLocked(id string) {
	delete(r.sessions, id)
	if r.opts.OnEvict != nil {
		r.opts.OnEvict(id)
	}
}
