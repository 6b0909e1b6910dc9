// Package dedup tracks identical message bodies seen from the same author
// across channels. A burst of the same text in enough distinct channels is a
// flood regardless of content.
package dedup

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Tracker holds (author, content) keys mapped to the channels the message
// was seen in. Sightings expire individually after the TTL; expiry is
// checked lazily on access and reclaimed by a periodic Sweep.
type Tracker struct {
	mu        sync.Mutex
	clock     Clock
	ttl       time.Duration
	sightings map[string]map[string]time.Time
}

func New(ttl time.Duration) *Tracker {
	return &Tracker{
		clock:     realClock{},
		ttl:       ttl,
		sightings: make(map[string]map[string]time.Time),
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// RecordSighting adds the channel to the key's set and returns the channels
// the message is currently live in, the new sighting included.
func (t *Tracker) RecordSighting(authorID, content, channelID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := authorID + ":" + content
	now := t.clock.Now()

	channels := t.sightings[key]
	if channels == nil {
		channels = make(map[string]time.Time)
		t.sightings[key] = channels
	}
	for id, seen := range channels {
		if now.Sub(seen) > t.ttl {
			delete(channels, id)
		}
	}
	channels[channelID] = now

	ids := make([]string, 0, len(channels))
	for id := range channels {
		ids = append(ids, id)
	}
	return ids
}

// Sweep drops expired sightings and empty keys.
func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	for key, channels := range t.sightings {
		for id, seen := range channels {
			if now.Sub(seen) > t.ttl {
				delete(channels, id)
			}
		}
		if len(channels) == 0 {
			delete(t.sightings, key)
		}
	}
}

// Size returns the number of live keys.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sightings)
}
