package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestWhitelistRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.IsWhitelisted(ctx, "u1")
	if err != nil || ok {
		t.Fatalf("empty whitelist: %v %v", ok, err)
	}

	if err := store.AddWhitelist(ctx, "u1", "alice", "mod1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if ok, _ := store.IsWhitelisted(ctx, "u1"); !ok {
		t.Fatalf("user not whitelisted after add")
	}

	// Upsert keeps a single row.
	if err := store.AddWhitelist(ctx, "u1", "alice2", "mod2"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	list, err := store.ListWhitelist(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if list[0].Username != "alice2" || list[0].AddedBy != "mod2" {
		t.Fatalf("upsert did not update: %+v", list[0])
	}

	if err := store.RemoveWhitelist(ctx, "u1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ok, _ := store.IsWhitelisted(ctx, "u1"); ok {
		t.Fatalf("user still whitelisted after remove")
	}
}

func TestReportThreads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	threadID, err := store.GetReportThread(ctx, "u1")
	if err != nil || threadID != "" {
		t.Fatalf("missing thread: %q %v", threadID, err)
	}

	if err := store.SetReportThread(ctx, "u1", "t1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if threadID, _ = store.GetReportThread(ctx, "u1"); threadID != "t1" {
		t.Fatalf("got %q", threadID)
	}

	if err := store.SetReportThread(ctx, "u1", "t2"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if threadID, _ = store.GetReportThread(ctx, "u1"); threadID != "t2" {
		t.Fatalf("replace kept %q", threadID)
	}
}

func TestAuditLogs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := AuditLog{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "quarantine", Details: "scam pattern", CreatedAt: time.Now()}
	if err := store.AddAuditLog(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	logs, err := store.ListAuditLogs(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil || len(logs) != 1 {
		t.Fatalf("list: %v %v", logs, err)
	}
	if logs[0].Event != "quarantine" || logs[0].Level != "WARN" {
		t.Fatalf("got %+v", logs[0])
	}

	if err := store.CleanupAuditLogs(ctx, 0); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestDomainAllowList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddDomainAllow(ctx, "g1", "Example.ORG"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddDomainAllow(ctx, "g1", "example.org"); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}

	domains, err := store.ListDomainAllow(ctx, "g1")
	if err != nil || len(domains) != 1 || domains[0] != "example.org" {
		t.Fatalf("list: %v %v", domains, err)
	}

	if err := store.RemoveDomainAllow(ctx, "g1", "example.org"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if domains, _ := store.ListDomainAllow(ctx, "g1"); len(domains) != 0 {
		t.Fatalf("remove left %v", domains)
	}
}

func TestBanLeaderboard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.RecordBanAction(ctx, "mod1", "scammer", "scam activity"); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.RecordBanAction(ctx, "mod2", "scammer2", "scam activity"); err != nil {
		t.Fatalf("record: %v", err)
	}

	counts, err := store.CountBansByAdmin(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if len(counts) != 2 || counts[0].AdminID != "mod1" || counts[0].Bans != 3 {
		t.Fatalf("got %+v", counts)
	}

	old, err := store.CountBansByAdmin(ctx, time.Now().Add(time.Hour))
	if err != nil || len(old) != 0 {
		t.Fatalf("future cutoff returned %v %v", old, err)
	}
}
