package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/audit"
	"scamsentry/internal/classifier"
	"scamsentry/internal/config"
	"scamsentry/internal/dedup"
	"scamsentry/internal/impersonation"
	"scamsentry/internal/ledger"
	"scamsentry/internal/metrics"
	"scamsentry/internal/patterns"
	"scamsentry/internal/platform"
	"scamsentry/internal/report"
	"scamsentry/internal/storage"
	"scamsentry/internal/urlscan"
	"scamsentry/internal/utils"
)

const (
	processingTimeout = 30 * time.Second
	purgeFetchLimit   = 100
	tempNoticeDelay   = 8 * time.Second
)

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	session    *discordgo.Session
	adapter    platform.Adapter
	store      *storage.Store
	audit      *audit.Logger
	ledger     *ledger.Ledger
	tracker    *dedup.Tracker
	classifier *classifier.Classifier
	scanner    *impersonation.Scanner
	aggregator *report.Aggregator
	inflight   *utils.Inflight

	excludedPatterns []*regexp.Regexp
	cancelJobs       context.CancelFunc

	mu          sync.Mutex
	threadCache map[string]string
}

func New(
	cfg config.Config,
	logger *zap.Logger,
	store *storage.Store,
	ldg *ledger.Ledger,
	tracker *dedup.Tracker,
	scanner *impersonation.Scanner,
	aggregator *report.Aggregator,
	auditLogger *audit.Logger,
) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	session.StateEnabled = true

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		session:     session,
		adapter:     platform.NewDiscord(session),
		store:       store,
		audit:       auditLogger,
		ledger:      ldg,
		tracker:     tracker,
		scanner:     scanner,
		aggregator:  aggregator,
		inflight:    utils.NewInflight(processingTimeout),
		threadCache: make(map[string]string),
	}
	b.classifier = classifier.New(cfg, ldg, tracker, b, logger)
	auditLogger.SetNotifier(b.notifyCritical)

	for _, pattern := range cfg.ExcludedChannelPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("invalid excluded channel pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		b.excludedPatterns = append(b.excludedPatterns, compiled)
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildMemberAdd)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancelJobs = cancel
	b.loadAllowedDomains(ctx)
	go b.runJobs(ctx)

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	if b.cancelJobs != nil {
		b.cancelJobs()
	}
	done := make(chan struct{})
	go func() {
		_ = b.session.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		b.logger.Warn("session close timed out")
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" || m.GuildID != b.cfg.GuildID {
		return
	}
	if m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply {
		return
	}

	if !b.inflight.TryAcquire(m.ID) {
		return
	}
	defer b.inflight.Release(m.ID)

	metrics.MessagesScanned.Inc()
	ctx := context.Background()

	if b.isExcludedChannel(m.ChannelID) {
		return
	}

	member := m.Member
	if member == nil {
		fetched, err := b.adapter.FetchMember(ctx, m.GuildID, m.Author.ID)
		if err != nil {
			b.logger.Warn("author member lookup failed", zap.String("user_id", m.Author.ID), zap.Error(err))
			return
		}
		member = &discordgo.Member{Roles: fetched.RoleIDs, JoinedAt: fetched.JoinedAt, Nick: fetched.DisplayName}
	}

	authorProtected := b.classifier.IsProtected(member.Roles)

	// Moderators drive the bot from the report channel: admin commands
	// first, then a bare mention files a manual report for the target.
	if m.ChannelID == b.cfg.ReportChannel && authorProtected {
		if isAdminCommand(m.Content) {
			b.handleAdminCommand(ctx, m)
			return
		}
		if len(m.Mentions) > 0 {
			b.handleManualReport(ctx, m)
			return
		}
	}

	if authorProtected {
		return
	}

	whitelisted, err := b.store.IsWhitelisted(ctx, m.Author.ID)
	if err != nil {
		b.logger.Error("whitelist lookup failed", zap.String("user_id", m.Author.ID), zap.Error(err))
	}

	// The unauthorized-URL path fires before full classification: it removes
	// the single message and notifies the author without opening a suspicion
	// window.
	if !whitelisted && !isMediaOnly(m) && urlscan.HasUnauthorizedURL(m.Content, m.GuildID) {
		b.handleUnauthorizedURL(ctx, m, member)
		return
	}

	moderatable, err := b.adapter.CanModerate(m.GuildID, m.Author.ID)
	if err != nil {
		b.logger.Warn("role hierarchy check failed", zap.String("user_id", m.Author.ID), zap.Error(err))
		moderatable = false
	}

	msg := classifier.Message{
		ID:               m.ID,
		GuildID:          m.GuildID,
		ChannelID:        m.ChannelID,
		AuthorID:         m.Author.ID,
		Content:          m.Content,
		DisplayName:      displayName(member, m.Author),
		RoleIDs:          member.Roles,
		JoinedAt:         member.JoinedAt,
		MentionedUserIDs: mentionIDs(m.Mentions),
		MentionsEveryone: m.MentionEveryone,
		Forwarded:        m.MessageReference != nil && m.Type != discordgo.MessageTypeReply,
		ViaWebhook:       m.WebhookID != "",
		Whitelisted:      whitelisted,
		Moderatable:      moderatable,
	}

	verdict := b.classifier.Classify(ctx, msg)
	switch verdict.Action {
	case classifier.ActionQuarantine:
		b.quarantine(ctx, m, member, verdict)
	case classifier.ActionKick:
		b.escalateKick(ctx, m, verdict)
	}
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != b.cfg.GuildID || m.User == nil || m.User.Bot {
		return
	}
	if b.classifier.IsProtected(m.Roles) {
		return
	}

	name := displayName(m.Member, m.User)
	match, found := b.scanner.Check(m.User.ID, name)
	if !found {
		return
	}

	candidate := platform.Member{
		UserID:      m.User.ID,
		Username:    m.User.Username,
		DisplayName: name,
		AvatarURL:   m.User.AvatarURL(""),
		RoleIDs:     m.Roles,
		JoinedAt:    m.JoinedAt,
	}
	if created, err := discordgo.SnowflakeTimestamp(m.User.ID); err == nil {
		candidate.CreatedAt = created
	}
	b.handleImpersonation(context.Background(), candidate, match)
}

// notifyCritical forwards CRIT audit entries to the report channel so kicks,
// bans, and impersonation alerts are visible without opening the per-user
// threads.
func (b *Bot) notifyCritical(ctx context.Context, entry storage.AuditLog) {
	if entry.Level != audit.LevelCrit || b.cfg.ReportChannel == "" {
		return
	}
	b.replyNoPing(ctx, b.cfg.ReportChannel,
		fmt.Sprintf("Critical event `%s` for <@%s>: %s", entry.Event, entry.UserID, entry.Details))
}

// IsProtected implements classifier.MemberDirectory.
func (b *Bot) IsProtected(ctx context.Context, userID string) (bool, error) {
	member, err := b.adapter.FetchMember(ctx, b.cfg.GuildID, userID)
	if err != nil {
		return false, err
	}
	return b.classifier.IsProtected(member.RoleIDs), nil
}

// HasOnlyBaseRole implements classifier.MemberDirectory.
func (b *Bot) HasOnlyBaseRole(ctx context.Context, userID string) (bool, error) {
	member, err := b.adapter.FetchMember(ctx, b.cfg.GuildID, userID)
	if err != nil {
		return false, err
	}
	return len(member.RoleIDs) == 1 && member.RoleIDs[0] == b.cfg.BaseRoleID, nil
}

func (b *Bot) isExcludedChannel(channelID string) bool {
	for _, excluded := range b.cfg.ExcludedChannels {
		if channelID == excluded {
			return true
		}
	}

	channel, err := b.session.State.Channel(channelID)
	if err != nil {
		return false
	}
	if b.matchesExcludedPattern(channel.Name) {
		return true
	}

	// Threads inherit exclusion from their parent channel.
	if channel.IsThread() && channel.ParentID != "" {
		for _, excluded := range b.cfg.ExcludedChannels {
			if channel.ParentID == excluded {
				return true
			}
		}
		if parent, err := b.session.State.Channel(channel.ParentID); err == nil {
			return b.matchesExcludedPattern(parent.Name)
		}
	}
	return false
}

func (b *Bot) matchesExcludedPattern(name string) bool {
	for _, pattern := range b.excludedPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

func (b *Bot) loadAllowedDomains(ctx context.Context) {
	domains, err := b.store.ListDomainAllow(ctx, b.cfg.GuildID)
	if err != nil {
		b.logger.Error("loading domain allow-list failed", zap.Error(err))
		return
	}
	patterns.SetExtraAllowedDomains(domains)
	if len(domains) > 0 {
		b.logger.Info("loaded extra allowed domains", zap.Int("count", len(domains)))
	}
}

func isMediaOnly(m *discordgo.MessageCreate) bool {
	if strings.TrimSpace(m.Content) != "" {
		return false
	}
	if len(m.StickerItems) > 0 {
		return true
	}
	return len(m.Embeds) == 1 && m.Embeds[0].Type == discordgo.EmbedTypeGifv
}

func mentionIDs(mentions []*discordgo.User) []string {
	ids := make([]string, 0, len(mentions))
	for _, user := range mentions {
		ids = append(ids, user.ID)
	}
	return ids
}

func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user != nil {
		return user.Username
	}
	return ""
}
