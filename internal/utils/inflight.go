package utils

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Inflight marks keys as being processed so a redelivered event is not
// handled twice concurrently. Markers older than the TTL are swept on each
// acquire, recovering from a handler that crashed before releasing.
type Inflight struct {
	mu     sync.Mutex
	clock  Clock
	ttl    time.Duration
	active map[string]time.Time
}

func NewInflight(ttl time.Duration) *Inflight {
	return &Inflight{
		clock:  realClock{},
		ttl:    ttl,
		active: make(map[string]time.Time),
	}
}

func (g *Inflight) WithClock(clock Clock) {
	g.clock = clock
}

// TryAcquire marks the key in-flight. Returns false if the key is already
// being processed.
func (g *Inflight) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	for id, started := range g.active {
		if now.Sub(started) > g.ttl {
			delete(g.active, id)
		}
	}

	if _, busy := g.active[key]; busy {
		return false
	}
	g.active[key] = now
	return true
}

func (g *Inflight) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}
