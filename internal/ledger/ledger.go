// Package ledger tracks users under active suspicion: the rolling suspicion
// window opened by each quarantine, mention-rate counters, and spam
// occurrence counts used for kick escalation.
package ledger

import (
	"sort"
	"sync"
	"time"

	"scamsentry/internal/config"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	expiresAt          time.Time
	offenseCount       int
	spamOccurrences    int
	mentionCount       int
	mentionWindowStart time.Time
}

// Entry is a read-only snapshot of a user's suspicion state.
type Entry struct {
	UserID          string
	ExpiresAt       time.Time
	OffenseCount    int
	SpamOccurrences int
	MentionCount    int
}

type Ledger struct {
	mu      sync.Mutex
	cfg     config.SuspicionConfig
	clock   Clock
	entries map[string]*entry
}

func New(cfg config.SuspicionConfig) *Ledger {
	return &Ledger{
		cfg:     cfg,
		clock:   realClock{},
		entries: make(map[string]*entry),
	}
}

func (l *Ledger) WithClock(clock Clock) {
	l.clock = clock
}

func (l *Ledger) window() time.Duration {
	return time.Duration(l.cfg.WindowMinutes) * time.Minute
}

// RecordQuarantine upserts the user's entry: an existing window is extended
// by one more suspicion window and the spam count incremented, a fresh entry
// starts at one occurrence.
func (l *Ledger) RecordQuarantine(userID string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	item := l.entries[userID]
	if item == nil {
		item = &entry{
			expiresAt:       now.Add(l.window()),
			offenseCount:    1,
			spamOccurrences: 1,
		}
		l.entries[userID] = item
	} else {
		item.expiresAt = item.expiresAt.Add(l.window())
		item.spamOccurrences++
	}
	return l.snapshot(userID, item)
}

// IsSuspected reports whether the user has an unexpired suspicion window.
// Expiry is lazy; stale entries stay inert until purged.
func (l *Ledger) IsSuspected(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.entries[userID]
	return item != nil && item.expiresAt.After(l.clock.Now())
}

// RecordMention bumps the mention counter, resetting it to one when the
// cooldown since the previous mention has elapsed. Only meaningful for users
// already under suspicion; returns 0 for unknown users.
func (l *Ledger) RecordMention(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.entries[userID]
	if item == nil {
		return 0
	}

	now := l.clock.Now()
	cooldown := time.Duration(l.cfg.MentionCooldownMinutes) * time.Minute
	if item.mentionCount == 0 || now.Sub(item.mentionWindowStart) >= cooldown {
		item.mentionCount = 1
	} else {
		item.mentionCount++
	}
	item.mentionWindowStart = now
	return item.mentionCount
}

func (l *Ledger) ExceedsMentionLimit(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.entries[userID]
	return item != nil && item.mentionCount > l.cfg.MaxMentions
}

func (l *Ledger) ExceedsSpamLimit(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := l.entries[userID]
	return item != nil && item.spamOccurrences >= l.cfg.MaxSpamOccurrences
}

// Active lists unexpired entries, soonest-expiring first.
func (l *Ledger) Active() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var active []Entry
	for userID, item := range l.entries {
		if item.expiresAt.After(now) {
			active = append(active, l.snapshot(userID, item))
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].ExpiresAt.Before(active[j].ExpiresAt)
	})
	return active
}

// ActiveCount reports how many users have an unexpired suspicion window.
// Expired entries held only for retention do not count.
func (l *Ledger) ActiveCount() int {
	return len(l.Active())
}

// Purge drops entries whose window expired more than the retention horizon
// ago. Active windows are never cut short. Returns the number removed.
func (l *Ledger) Purge(retention time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.clock.Now().Add(-retention)
	removed := 0
	for userID, item := range l.entries {
		if item.expiresAt.Before(cutoff) {
			delete(l.entries, userID)
			removed++
		}
	}
	return removed
}

func (l *Ledger) snapshot(userID string, item *entry) Entry {
	return Entry{
		UserID:          userID,
		ExpiresAt:       item.expiresAt,
		OffenseCount:    item.offenseCount,
		SpamOccurrences: item.spamOccurrences,
		MentionCount:    item.mentionCount,
	}
}
