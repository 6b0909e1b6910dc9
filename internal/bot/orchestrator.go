package bot

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/audit"
	"scamsentry/internal/classifier"
	"scamsentry/internal/impersonation"
	"scamsentry/internal/metrics"
	"scamsentry/internal/platform"
)

const (
	embedColorWarning = 0xE67E22
	embedColorCrit    = 0xE74C3C
	embedColorInfo    = 0x3498DB

	banReason = "Scam activity detected"
)

// quarantine removes the offending message everywhere it was seen, records
// the offense, and posts a review card with ban/whitelist buttons to the
// user's report thread.
func (b *Bot) quarantine(ctx context.Context, m *discordgo.MessageCreate, member *discordgo.Member, verdict classifier.Verdict) {
	entry := b.ledger.RecordQuarantine(m.Author.ID)
	metrics.Quarantines.WithLabelValues(verdict.Category).Inc()
	metrics.SuspectedUsers.Set(float64(b.ledger.ActiveCount()))

	deleted := b.purgeMatching(ctx, m.Author.ID, m.Content, verdict.Channels)

	b.logger.Warn("message quarantined",
		zap.String("user_id", m.Author.ID),
		zap.Strings("reasons", verdict.Reasons),
		zap.String("category", verdict.Category),
		zap.Int("deleted", deleted),
		zap.Int("offense_count", entry.OffenseCount))

	name := displayName(member, m.Author)
	b.aggregator.RecordEvent(verdict.Category, m.Author.ID, name, m.Author.Username)

	embed := b.quarantineEmbed(m, member, verdict, entry.SpamOccurrences)
	b.sendReviewCard(ctx, m.Author.ID, name, embed)

	b.audit.Log(ctx, audit.LevelWarn, m.GuildID, m.Author.ID, "quarantine", strings.Join(verdict.Reasons, "; "))
}

// escalateKick removes a user who kept offending while already under
// suspicion. The ledger entry is left intact so a rejoin stays suspected.
func (b *Bot) escalateKick(ctx context.Context, m *discordgo.MessageCreate, verdict classifier.Verdict) {
	reason := strings.Join(verdict.Reasons, "; ")
	if err := b.adapter.KickMember(ctx, m.GuildID, m.Author.ID, reason); err != nil {
		b.logger.Error("kick failed", zap.String("user_id", m.Author.ID), zap.Error(err))
		return
	}
	metrics.Kicks.Inc()

	b.purgeMatching(ctx, m.Author.ID, m.Content, verdict.Channels)

	b.logger.Warn("user kicked",
		zap.String("user_id", m.Author.ID),
		zap.Strings("reasons", verdict.Reasons))

	notice := fmt.Sprintf("Kicked <@%s> (`%s`): %s", m.Author.ID, m.Author.ID, reason)
	b.sendReviewNotice(ctx, m.Author.ID, m.Author.Username, notice)

	b.audit.Log(ctx, audit.LevelCrit, m.GuildID, m.Author.ID, "kick", reason)
}

// handleUnauthorizedURL deletes a single link-bearing message and tells the
// author why, falling back to a short-lived channel notice when DMs are
// closed.
func (b *Bot) handleUnauthorizedURL(ctx context.Context, m *discordgo.MessageCreate, member *discordgo.Member) {
	if err := b.adapter.DeleteMessage(ctx, m.ChannelID, m.ID); err != nil {
		b.logger.Error("unauthorized url delete failed",
			zap.String("message_id", m.ID),
			zap.String("channel_id", m.ChannelID),
			zap.Error(err))
		return
	}
	metrics.UnauthorizedURLs.Inc()

	notice := fmt.Sprintf("Hey <@%s>, your message in <#%s> was removed because it contained a link that is not allowed here. "+
		"If you believe this was a mistake, please contact the moderators.", m.Author.ID, m.ChannelID)
	if err := b.adapter.SendDirectMessage(ctx, m.Author.ID, notice); err != nil {
		b.sendTemporaryNotice(ctx, m.ChannelID,
			fmt.Sprintf("<@%s> your message was removed: links are not allowed here.", m.Author.ID))
	}

	name := displayName(member, m.Author)
	b.aggregator.RecordEvent(classifier.CategoryShortener, m.Author.ID, name, m.Author.Username)

	embed := &discordgo.MessageEmbed{
		Title: "Unauthorized Link Removed",
		Color: embedColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", m.Author.ID, m.Author.ID), Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", m.ChannelID), Inline: true},
			{Name: "Message", Value: truncate(m.Content, 1000), Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	b.sendReviewCard(ctx, m.Author.ID, name, embed)

	b.audit.Log(ctx, audit.LevelInfo, m.GuildID, m.Author.ID, "unauthorized_url", truncate(m.Content, 500))
}

// handleImpersonation posts an alert for a member whose display name is too
// close to a protected member's.
func (b *Bot) handleImpersonation(ctx context.Context, candidate platform.Member, match impersonation.Match) {
	metrics.ImpersonationAlerts.Inc()
	b.aggregator.RecordEvent(classifier.CategoryImpersonation, candidate.UserID, candidate.DisplayName, candidate.Username)

	b.logger.Warn("possible impersonation",
		zap.String("user_id", candidate.UserID),
		zap.String("display_name", candidate.DisplayName),
		zap.String("impersonated", match.Identity.DisplayName),
		zap.Float64("similarity", match.Similarity))

	embed := &discordgo.MessageEmbed{
		Title: "Possible Impersonation",
		Color: embedColorCrit,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", candidate.UserID, candidate.UserID), Inline: true},
			{Name: "Display Name", Value: orDash(candidate.DisplayName), Inline: true},
			{Name: "Similarity", Value: fmt.Sprintf("%.0f%%", match.Similarity*100), Inline: true},
			{Name: "Impersonating", Value: fmt.Sprintf("%s (%s)", match.Identity.DisplayName, match.Identity.RoleName), Inline: false},
			{Name: "Account Created", Value: formatTimestamp(candidate.CreatedAt), Inline: true},
			{Name: "Joined Server", Value: formatTimestamp(candidate.JoinedAt), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if candidate.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: candidate.AvatarURL}
	}
	b.sendReviewCard(ctx, candidate.UserID, candidate.DisplayName, embed)

	b.audit.Log(ctx, audit.LevelCrit, b.cfg.GuildID, candidate.UserID, "impersonation",
		fmt.Sprintf("display name %q matches %q (%.2f)", candidate.DisplayName, match.Identity.DisplayName, match.Similarity))
}

// handleManualReport opens (or reuses) a review thread for each member a
// moderator mentioned in the report channel.
func (b *Bot) handleManualReport(ctx context.Context, m *discordgo.MessageCreate) {
	for _, target := range m.Mentions {
		if target.Bot {
			continue
		}
		b.aggregator.RecordManualReport()

		name := target.Username
		if member, err := b.adapter.FetchMember(ctx, m.GuildID, target.ID); err == nil && member.DisplayName != "" {
			name = member.DisplayName
		}

		embed := &discordgo.MessageEmbed{
			Title: "Manual Report",
			Color: embedColorWarning,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Reported User", Value: fmt.Sprintf("<@%s> (`%s`)", target.ID, target.ID), Inline: true},
				{Name: "Reported By", Value: fmt.Sprintf("<@%s>", m.Author.ID), Inline: true},
				{Name: "Note", Value: orDash(truncate(m.Content, 1000)), Inline: false},
			},
			Timestamp: time.Now().Format(time.RFC3339),
		}
		b.sendReviewCard(ctx, target.ID, name, embed)

		b.audit.Log(ctx, audit.LevelInfo, m.GuildID, target.ID, "manual_report",
			fmt.Sprintf("reported by %s", m.Author.ID))
	}
}

// purgeMatching deletes every recent copy of the content the author posted in
// the given channels. Failures are logged and skipped so one missing
// permission does not stop the sweep.
func (b *Bot) purgeMatching(ctx context.Context, authorID, content string, channelIDs []string) int {
	deleted := 0
	for _, channelID := range channelIDs {
		recent, err := b.adapter.FetchRecentMessages(ctx, channelID, purgeFetchLimit)
		if err != nil {
			b.logger.Warn("recent message fetch failed", zap.String("channel_id", channelID), zap.Error(err))
			continue
		}
		for _, msg := range recent {
			if msg.AuthorID != authorID || msg.Content != content {
				continue
			}
			if err := b.adapter.DeleteMessage(ctx, channelID, msg.ID); err != nil {
				b.logger.Warn("delete failed",
					zap.String("channel_id", channelID),
					zap.String("message_id", msg.ID),
					zap.Error(err))
				continue
			}
			deleted++
		}
	}
	return deleted
}

// sendReviewCard posts an embed with ban/whitelist buttons to the user's
// report thread, creating the thread on first use. When thread creation
// fails the card lands directly in the report channel.
func (b *Bot) sendReviewCard(ctx context.Context, userID, username string, embed *discordgo.MessageEmbed) {
	send := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Ban User",
						Style:    discordgo.DangerButton,
						CustomID: "ban_" + userID,
					},
					discordgo.Button{
						Label:    "Whitelist User",
						Style:    discordgo.SuccessButton,
						CustomID: "trust_" + userID,
					},
				},
			},
		},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	b.deliverToThread(ctx, userID, username, send)
}

func (b *Bot) sendReviewNotice(ctx context.Context, userID, username, content string) {
	b.deliverToThread(ctx, userID, username, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
}

func (b *Bot) deliverToThread(ctx context.Context, userID, username string, send *discordgo.MessageSend) {
	threadID := b.reportThread(ctx, userID)
	if threadID != "" {
		if _, err := b.adapter.SendComplex(ctx, threadID, send); err == nil {
			return
		}
		// Stale thread (archived past recovery or deleted); fall through and
		// create a fresh one.
		b.forgetReportThread(userID)
	}

	threadID, err := b.adapter.CreateThread(ctx, b.cfg.ReportChannel, "Suspicious Activity - "+username)
	if err != nil {
		b.logger.Error("thread creation failed", zap.String("user_id", userID), zap.Error(err))
		if _, err := b.adapter.SendComplex(ctx, b.cfg.ReportChannel, send); err != nil {
			b.logger.Error("report channel send failed", zap.Error(err))
		}
		return
	}
	b.rememberReportThread(ctx, userID, threadID)
	if _, err := b.adapter.SendComplex(ctx, threadID, send); err != nil {
		b.logger.Error("thread send failed", zap.String("thread_id", threadID), zap.Error(err))
	}
}

func (b *Bot) reportThread(ctx context.Context, userID string) string {
	b.mu.Lock()
	threadID, ok := b.threadCache[userID]
	b.mu.Unlock()
	if ok {
		return threadID
	}

	threadID, err := b.store.GetReportThread(ctx, userID)
	if err != nil {
		b.logger.Error("report thread lookup failed", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	if threadID != "" {
		b.mu.Lock()
		b.threadCache[userID] = threadID
		b.mu.Unlock()
	}
	return threadID
}

func (b *Bot) rememberReportThread(ctx context.Context, userID, threadID string) {
	b.mu.Lock()
	b.threadCache[userID] = threadID
	b.mu.Unlock()
	if err := b.store.SetReportThread(ctx, userID, threadID); err != nil {
		b.logger.Error("report thread persist failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (b *Bot) forgetReportThread(userID string) {
	b.mu.Lock()
	delete(b.threadCache, userID)
	b.mu.Unlock()
}

func (b *Bot) sendTemporaryNotice(ctx context.Context, channelID, content string) {
	messageID, err := b.adapter.SendMessage(ctx, channelID, content)
	if err != nil {
		b.logger.Warn("temporary notice failed", zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	time.AfterFunc(tempNoticeDelay, func() {
		if err := b.adapter.DeleteMessage(context.Background(), channelID, messageID); err != nil {
			b.logger.Warn("temporary notice cleanup failed", zap.String("message_id", messageID), zap.Error(err))
		}
	})
}

func (b *Bot) quarantineEmbed(m *discordgo.MessageCreate, member *discordgo.Member, verdict classifier.Verdict, spamCount int) *discordgo.MessageEmbed {
	accountCreated := "unknown"
	if created, err := discordgo.SnowflakeTimestamp(m.Author.ID); err == nil {
		accountCreated = formatTimestamp(created)
	}

	embed := &discordgo.MessageEmbed{
		Title: "Suspicious Message Quarantined",
		Color: embedColorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "User", Value: fmt.Sprintf("<@%s> (`%s`)", m.Author.ID, m.Author.ID), Inline: true},
			{Name: "Display Name", Value: orDash(displayName(member, m.Author)), Inline: true},
			{Name: "Username", Value: orDash(m.Author.Username), Inline: true},
			{Name: "Account Created", Value: accountCreated, Inline: true},
			{Name: "Joined Server", Value: formatTimestamp(member.JoinedAt), Inline: true},
			{Name: "Spam Count", Value: fmt.Sprintf("%d", spamCount), Inline: true},
			{Name: "Channels", Value: channelMentions(verdict.Channels), Inline: false},
			{Name: "Reasons", Value: "• " + strings.Join(verdict.Reasons, "\n• "), Inline: false},
			{Name: "Message", Value: orDash(truncate(m.Content, 1000)), Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if m.Author.Avatar != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: m.Author.AvatarURL("")}
	}
	return embed
}

func channelMentions(channelIDs []string) string {
	if len(channelIDs) == 0 {
		return "N/A"
	}
	mentions := make([]string, 0, len(channelIDs))
	for _, id := range channelIDs {
		mentions = append(mentions, "<#"+id+">")
	}
	return strings.Join(mentions, " ")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("<t:%d:R>", t.Unix())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
