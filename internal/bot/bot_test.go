package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/audit"
	"scamsentry/internal/config"
	"scamsentry/internal/platform"
	"scamsentry/internal/storage"
)

type sentMessage struct {
	channelID string
	content   string
}

// fakeAdapter records outbound traffic and answers member lookups from a
// fixed map.
type fakeAdapter struct {
	sent    []sentMessage
	members map[string]*platform.Member
}

func (f *fakeAdapter) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]platform.Message, error) {
	return nil, nil
}

func (f *fakeAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return nil
}

func (f *fakeAdapter) FetchMember(ctx context.Context, guildID, userID string) (*platform.Member, error) {
	if member, ok := f.members[userID]; ok {
		return member, nil
	}
	return nil, errors.New("unknown member")
}

func (f *fakeAdapter) ListMembers(ctx context.Context, guildID string) ([]platform.Member, error) {
	return nil, nil
}

func (f *fakeAdapter) BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return nil
}

func (f *fakeAdapter) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return nil
}

func (f *fakeAdapter) CreateThread(ctx context.Context, parentChannelID, name string) (string, error) {
	return "", errors.New("threads unavailable")
}

func (f *fakeAdapter) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: content})
	return "m1", nil
}

func (f *fakeAdapter) SendComplex(ctx context.Context, channelID string, send *discordgo.MessageSend) (string, error) {
	f.sent = append(f.sent, sentMessage{channelID: channelID, content: send.Content})
	return "m2", nil
}

func (f *fakeAdapter) SendDirectMessage(ctx context.Context, userID, content string) error {
	return nil
}

func (f *fakeAdapter) CanModerate(guildID, targetID string) (bool, error) {
	return true, nil
}

func newTestBot(t *testing.T) (*Bot, *fakeAdapter, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	adapter := &fakeAdapter{}
	logger := zap.NewNop()
	b := &Bot{
		cfg: config.Config{
			GuildID:       "guild1",
			ReportChannel: "report",
		},
		logger:  logger,
		adapter: adapter,
		store:   store,
		audit:   audit.NewLogger(store, logger),
	}
	return b, adapter, store
}

func TestCritAuditEventsReachReportChannel(t *testing.T) {
	b, adapter, _ := newTestBot(t)
	b.audit.SetNotifier(b.notifyCritical)

	ctx := context.Background()
	b.audit.Log(ctx, audit.LevelInfo, "guild1", "u1", "whitelist", "added by mod")
	b.audit.Log(ctx, audit.LevelCrit, "guild1", "u2", "kick", "mention spam while suspected")

	if len(adapter.sent) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(adapter.sent))
	}
	notice := adapter.sent[0]
	if notice.channelID != "report" {
		t.Fatalf("notice went to %q", notice.channelID)
	}
	if !strings.Contains(notice.content, "kick") || !strings.Contains(notice.content, "u2") {
		t.Fatalf("unexpected notice: %q", notice.content)
	}
}

func TestNotifyCriticalWithoutReportChannel(t *testing.T) {
	b, adapter, _ := newTestBot(t)
	b.cfg.ReportChannel = ""

	b.notifyCritical(context.Background(), storage.AuditLog{Level: audit.LevelCrit, Event: "ban", UserID: "u1"})
	if len(adapter.sent) != 0 {
		t.Fatalf("notice sent without a report channel: %+v", adapter.sent)
	}
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("short string mangled: %q", got)
	}
	if got := truncate("héllo", 2); got != "h…" {
		t.Fatalf("rune split: %q", got)
	}
	long := strings.Repeat("安", 400)
	cut := truncate(long, 1000)
	if !utf8.ValidString(cut) {
		t.Fatalf("invalid utf-8 after truncation")
	}
	if len(cut) > 1000+len("…") {
		t.Fatalf("truncated string too long: %d bytes", len(cut))
	}
}
