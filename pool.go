package petalpress

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// viewerPool keys one Viewer per visitor session. The viewer session state
// (active search, pagination offset) belongs to a single visitor and must
// not leak between them; idle sessions are evicted.
type viewerPool struct {
	store PostStore
	cfg   ViewerConfig
	ttl   time.Duration
	log   zerolog.Logger

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	viewer   *Viewer
	lastSeen time.Time
}

func newViewerPool(store PostStore, cfg ViewerConfig, ttl time.Duration, log zerolog.Logger) *viewerPool {
	p := &viewerPool{
		store:   store,
		cfg:     cfg,
		ttl:     ttl,
		log:     log,
		entries: make(map[string]*poolEntry),
	}
	go p.cleanup()
	return p
}

func (p *viewerPool) cleanup() {
	ticker := time.NewTicker(p.ttl)
	for range ticker.C {
		cutoff := time.Now().Add(-p.ttl)
		p.mu.Lock()
		for id, e := range p.entries {
			if e.lastSeen.Before(cutoff) {
				delete(p.entries, id)
			}
		}
		p.mu.Unlock()
	}
}

// get returns the viewer for a session, creating and loading it on first
// use.
func (p *viewerPool) get(ctx context.Context, sessionID string) *Viewer {
	p.mu.Lock()
	e, ok := p.entries[sessionID]
	if ok {
		e.lastSeen = time.Now()
		p.mu.Unlock()
		return e.viewer
	}
	v := NewViewer(p.store, p.cfg, p.log)
	p.entries[sessionID] = &poolEntry{viewer: v, lastSeen: time.Now()}
	p.mu.Unlock()

	// Initial load outside the pool lock; viewer state reports failures.
	if err := v.Refresh(ctx); err != nil {
		p.log.Warn().Err(err).Str("session", sessionID).Msg("initial blog load failed")
	}
	return v
}

// refreshAll re-fetches every live viewer after an authoring mutation.
func (p *viewerPool) refreshAll(ctx context.Context) {
	p.mu.Lock()
	viewers := make([]*Viewer, 0, len(p.entries))
	for _, e := range p.entries {
		viewers = append(viewers, e.viewer)
	}
	p.mu.Unlock()

	for _, v := range viewers {
		if err := v.Refresh(ctx); err != nil {
			p.log.Warn().Err(err).Msg("viewer refresh failed")
		}
	}
}
