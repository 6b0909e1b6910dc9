package utils

import (
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestInflightAcquireRelease(t *testing.T) {
	g := NewInflight(30 * time.Second)

	if !g.TryAcquire("m1") {
		t.Fatalf("first acquire failed")
	}
	if g.TryAcquire("m1") {
		t.Fatalf("duplicate acquire succeeded")
	}
	if !g.TryAcquire("m2") {
		t.Fatalf("unrelated key blocked")
	}

	g.Release("m1")
	if !g.TryAcquire("m1") {
		t.Fatalf("acquire after release failed")
	}
}

func TestInflightStaleMarkersExpire(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	g := NewInflight(30 * time.Second)
	g.WithClock(clock)

	if !g.TryAcquire("m1") {
		t.Fatalf("acquire failed")
	}
	clock.now = clock.now.Add(31 * time.Second)
	if !g.TryAcquire("m1") {
		t.Fatalf("stale marker still blocking")
	}
}
