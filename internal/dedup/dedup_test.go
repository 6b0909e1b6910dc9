package dedup

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestRecordSightingAcrossChannels(t *testing.T) {
	tracker := New(time.Hour)

	if got := tracker.RecordSighting("u1", "buy now", "c1"); len(got) != 1 {
		t.Fatalf("first sighting: %v", got)
	}
	if got := tracker.RecordSighting("u1", "buy now", "c2"); len(got) != 2 {
		t.Fatalf("second channel: %v", got)
	}
	if got := tracker.RecordSighting("u1", "buy now", "c3"); len(got) != 3 {
		t.Fatalf("third channel: %v", got)
	}

	// Different content and different author are independent keys.
	if got := tracker.RecordSighting("u1", "other text", "c4"); len(got) != 1 {
		t.Fatalf("different content shared a key: %v", got)
	}
	if got := tracker.RecordSighting("u2", "buy now", "c5"); len(got) != 1 {
		t.Fatalf("different author shared a key: %v", got)
	}
}

func TestSightingsExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := New(time.Hour)
	tracker.WithClock(clock)

	tracker.RecordSighting("u1", "spam", "c1")
	clock.now = clock.now.Add(61 * time.Minute)
	if got := tracker.RecordSighting("u1", "spam", "c2"); len(got) != 1 {
		t.Fatalf("expired sighting survived: %v", got)
	}
}

func TestSweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tracker := New(time.Hour)
	tracker.WithClock(clock)

	tracker.RecordSighting("u1", "spam", "c1")
	tracker.RecordSighting("u2", "spam", "c1")
	if tracker.Size() != 2 {
		t.Fatalf("size %d", tracker.Size())
	}

	clock.now = clock.now.Add(2 * time.Hour)
	tracker.Sweep()
	if tracker.Size() != 0 {
		t.Fatalf("sweep left %d keys", tracker.Size())
	}
}
