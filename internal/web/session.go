package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/district"
	"github.com/bure-project/bure/internal/selector"
)

// DefaultSessionTTL is how long an idle picker session survives.
const DefaultSessionTTL = 30 * time.Minute

var (
	errUnknownMode     = eris.New("web: unknown picker mode")
	ErrSessionNotFound = eris.New("web: picker session not found")
)

// MapConfig carries the map defaults every new picker session starts with.
type MapConfig struct {
	Center      selector.LatLng
	Zoom        int
	TileURL     string
	Attribution string
}

// Sessions is the registry of live picker sessions. Idle sessions are
// reaped after the TTL.
type Sessions struct {
	registry *district.Registry
	mapCfg   MapConfig
	ttl      time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessions(reg *district.Registry, mapCfg MapConfig, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		registry: reg,
		mapCfg:   mapCfg,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Create builds a new session with a fresh picker in list mode.
func (r *Sessions) Create() *Session {
	host := &pickerHost{}
	surface := &pickerSurface{}
	s := &Session{
		ID:       uuid.NewString(),
		host:     host,
		surface:  surface,
		lastSeen: time.Now().UTC(),
	}

	// Deferred surface refreshes run on a timer goroutine; take the session
	// lock so they cannot race handler reads.
	s.sel = selector.New(selector.Config{
		Districts:       r.registry.All(),
		Center:          r.mapCfg.Center,
		Zoom:            r.mapCfg.Zoom,
		TileURL:         r.mapCfg.TileURL,
		TileAttribution: r.mapCfg.Attribution,
		Host:            host,
		Surface:         surface,
		Schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				fn()
			})
		},
	})

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get returns a live session and bumps its idle clock.
func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(time.Now().UTC())
	return s, nil
}

// TTL returns the configured idle lifetime.
func (r *Sessions) TTL() time.Duration { return r.ttl }

// Len reports the number of live sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle past the TTL and returns how many went.
func (r *Sessions) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped int
	for id, s := range r.sessions {
		s.mu.Lock()
		expired := now.Sub(s.lastSeen) > r.ttl
		s.mu.Unlock()
		if expired {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Run sweeps periodically until the context ends.
func (r *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				zap.L().Debug("web: reaped picker sessions", zap.Int("count", n))
			}
		}
	}
}
