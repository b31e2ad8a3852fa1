package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meur/gamedex/internal/details"
	"github.com/meur/gamedex/internal/logging"
	"github.com/meur/gamedex/internal/metrics"
	"github.com/meur/gamedex/internal/models"
	"github.com/meur/gamedex/internal/sorting"
)

// Config is applied to every new session
type Config struct {
	Fetcher        details.Fetcher
	PageSize       int
	DefaultSort    sorting.Option
	DetailsTimeout time.Duration
	IdleTimeout    time.Duration
	ErrorMessage   func(models.Game, error) string
}

// Registry owns the live sessions
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(cfg Config) *Registry {
	if cfg.DefaultSort == "" {
		cfg.DefaultSort = sorting.ByAdded
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		now:      time.Now,
		log:      logging.Component("session"),
	}
}

// Create starts a new session
func (r *Registry) Create() *Session {
	s := newSession(uuid.New().String(), r.cfg, r.now())

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	r.log.Debug().Str("session_id", s.ID).Msg("session created")
	return s
}

// Get returns a live session and marks it used
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

// Delete closes and removes a session
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.Close()
		metrics.ActiveSessions.Set(float64(n))
	}
	return ok
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(n))
		r.log.Info().Int("expired", len(expired)).Int("active", n).Msg("expired idle sessions")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes every session
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	metrics.ActiveSessions.Set(0)
}
