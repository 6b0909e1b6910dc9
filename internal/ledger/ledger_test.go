package ledger

import (
	"testing"
	"time"

	"scamsentry/internal/config"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func testConfig() config.SuspicionConfig {
	return config.SuspicionConfig{
		WindowMinutes:          60,
		MentionCooldownMinutes: 10,
		MaxMentions:            4,
		MaxSpamOccurrences:     7,
		RetentionHours:         72,
	}
}

func TestQuarantineExtendsWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := New(testConfig())
	l.WithClock(clock)

	first := l.RecordQuarantine("u1")
	if first.OffenseCount != 1 || first.SpamOccurrences != 1 {
		t.Fatalf("fresh entry: %+v", first)
	}
	if !l.IsSuspected("u1") {
		t.Fatalf("expected suspected after quarantine")
	}

	second := l.RecordQuarantine("u1")
	if second.SpamOccurrences != 2 {
		t.Fatalf("spam count not incremented: %+v", second)
	}
	if got, want := second.ExpiresAt, first.ExpiresAt.Add(time.Hour); !got.Equal(want) {
		t.Fatalf("window not extended: got %v want %v", got, want)
	}

	// Two stacked windows: suspicion survives one window but not two.
	clock.now = clock.now.Add(90 * time.Minute)
	if !l.IsSuspected("u1") {
		t.Fatalf("expected still suspected inside stacked window")
	}
	clock.now = clock.now.Add(31 * time.Minute)
	if l.IsSuspected("u1") {
		t.Fatalf("expected expiry after both windows elapsed")
	}
}

func TestMentionCooldownReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := New(testConfig())
	l.WithClock(clock)

	if got := l.RecordMention("unknown"); got != 0 {
		t.Fatalf("mention on unknown user counted: %d", got)
	}

	l.RecordQuarantine("u1")
	for i := 1; i <= 4; i++ {
		if got := l.RecordMention("u1"); got != i {
			t.Fatalf("mention %d counted as %d", i, got)
		}
	}
	if l.ExceedsMentionLimit("u1") {
		t.Fatalf("limit tripped at exactly max mentions")
	}
	if got := l.RecordMention("u1"); got != 5 || !l.ExceedsMentionLimit("u1") {
		t.Fatalf("limit not tripped past max: count %d", got)
	}

	// Cooldown elapses; the counter starts over.
	clock.now = clock.now.Add(11 * time.Minute)
	if got := l.RecordMention("u1"); got != 1 {
		t.Fatalf("counter not reset after cooldown: %d", got)
	}
}

func TestSpamLimit(t *testing.T) {
	l := New(testConfig())
	for i := 0; i < 6; i++ {
		l.RecordQuarantine("u1")
	}
	if l.ExceedsSpamLimit("u1") {
		t.Fatalf("limit tripped below threshold")
	}
	l.RecordQuarantine("u1")
	if !l.ExceedsSpamLimit("u1") {
		t.Fatalf("limit not tripped at threshold")
	}
}

func TestActiveAndPurge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := New(testConfig())
	l.WithClock(clock)

	l.RecordQuarantine("old")
	clock.now = clock.now.Add(30 * time.Minute)
	l.RecordQuarantine("fresh")

	active := l.Active()
	if len(active) != 2 || active[0].UserID != "old" {
		t.Fatalf("active ordering wrong: %+v", active)
	}

	// "old" expires, then ages past retention; "fresh" was extended further.
	clock.now = clock.now.Add(31 * time.Minute)
	if got := len(l.Active()); got != 1 {
		t.Fatalf("expected 1 active, got %d", got)
	}

	clock.now = clock.now.Add(73 * time.Hour)
	removed := l.Purge(72 * time.Hour)
	if removed != 2 {
		t.Fatalf("purge removed %d, want 2", removed)
	}
	if got := l.ActiveCount(); got != 0 {
		t.Fatalf("entries left after purge: %d", got)
	}
	if again := l.RecordQuarantine("fresh"); again.SpamOccurrences != 1 {
		t.Fatalf("purged entry kept history: %+v", again)
	}
}

func TestActiveCountExcludesRetainedExpiredEntries(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := New(testConfig())
	l.WithClock(clock)

	l.RecordQuarantine("u1")
	clock.now = clock.now.Add(2 * time.Hour)

	// Past the window, inside retention: the entry is kept but the user is
	// no longer under suspicion.
	if removed := l.Purge(72 * time.Hour); removed != 0 {
		t.Fatalf("entry inside retention purged: %d", removed)
	}
	if got := l.ActiveCount(); got != 0 {
		t.Fatalf("expired entry counted as active: %d", got)
	}
	if again := l.RecordQuarantine("u1"); again.SpamOccurrences != 2 {
		t.Fatalf("history lost inside retention: %+v", again)
	}
}
