package report

import (
	"testing"
	"time"

	"scamsentry/internal/config"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestSnapshotRanksOffenders(t *testing.T) {
	a := New(config.ReportingConfig{IntervalMinutes: 1440})

	a.RecordEvent("url_shortener", "u1", "Alice", "alice")
	a.RecordEvent("url_shortener", "u1", "Alice", "alice")
	a.RecordEvent("discord_invite", "u2", "Bob", "bob")
	a.RecordManualReport()
	a.RecordAdminBan("mod1", "Mod One", "")
	a.RecordAdminBan("mod1", "Mod One", "")
	a.RecordAdminBan("mod2", "Mod Two", "")

	summary := a.Snapshot(5)
	if summary.Intercepts != 3 || summary.Manual != 1 {
		t.Fatalf("counts: %+v", summary)
	}
	if summary.Categories["url_shortener"] != 2 || summary.Categories["discord_invite"] != 1 {
		t.Fatalf("categories: %v", summary.Categories)
	}
	if len(summary.Offenders) != 2 || summary.Offenders[0].UserID != "u1" || summary.Offenders[0].Count != 2 {
		t.Fatalf("offenders: %+v", summary.Offenders)
	}
	if len(summary.AdminBans) != 2 || summary.AdminBans[0].AdminID != "mod1" {
		t.Fatalf("admin bans: %+v", summary.AdminBans)
	}
}

func TestSnapshotCapsTopN(t *testing.T) {
	a := New(config.ReportingConfig{IntervalMinutes: 1440})
	for _, id := range []string{"u1", "u2", "u3"} {
		a.RecordEvent("other", id, "", "")
	}
	if got := len(a.Snapshot(2).Offenders); got != 2 {
		t.Fatalf("topN not applied: %d", got)
	}
}

func TestDueAndReset(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	a := New(config.ReportingConfig{IntervalMinutes: 60})
	a.WithClock(clock)

	if a.Due() {
		t.Fatalf("due immediately")
	}
	clock.now = clock.now.Add(time.Hour)
	if !a.Due() {
		t.Fatalf("not due after interval")
	}

	a.RecordEvent("other", "u1", "", "")
	a.Reset()
	if a.Due() {
		t.Fatalf("due right after reset")
	}
	if summary := a.Snapshot(5); summary.Intercepts != 0 || len(summary.Offenders) != 0 {
		t.Fatalf("reset did not clear: %+v", summary)
	}
}
