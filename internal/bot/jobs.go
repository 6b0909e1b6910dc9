package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/impersonation"
	"scamsentry/internal/metrics"
	"scamsentry/internal/report"
)

const jobTimeout = 5 * time.Minute

// runJobs drives the periodic work: security reports, impersonation cache
// refresh and sweeps, dedup pruning, ledger purging, and audit retention.
// All of it stops when ctx is cancelled.
func (b *Bot) runJobs(ctx context.Context) {
	reportTick := time.NewTicker(time.Minute)
	defer reportTick.Stop()

	sweepInterval := time.Duration(b.cfg.Impersonation.SweepHours) * time.Hour
	impersonationTick := time.NewTicker(sweepInterval)
	defer impersonationTick.Stop()

	dedupTick := time.NewTicker(time.Duration(b.cfg.Dedup.SweepSeconds) * time.Second)
	defer dedupTick.Stop()

	purgeTick := time.NewTicker(time.Hour)
	defer purgeTick.Stop()

	retentionTick := time.NewTicker(24 * time.Hour)
	defer retentionTick.Stop()

	b.withTimeout(ctx, b.refreshIdentities)

	for {
		select {
		case <-ctx.Done():
			return
		case <-reportTick.C:
			if b.cfg.Reporting.IntervalMinutes > 0 && b.aggregator.Due() {
				b.withTimeout(ctx, b.sendSecurityReport)
			}
		case <-impersonationTick.C:
			b.withTimeout(ctx, func(jobCtx context.Context) {
				if b.scanner.NeedsRefresh() {
					b.refreshIdentities(jobCtx)
				}
				b.sweepImpersonators(jobCtx)
			})
		case <-dedupTick.C:
			b.tracker.Sweep()
		case <-purgeTick.C:
			retention := time.Duration(b.cfg.Suspicion.RetentionHours) * time.Hour
			if purged := b.ledger.Purge(retention); purged > 0 {
				b.logger.Info("purged stale suspicion entries", zap.Int("count", purged))
			}
			metrics.SuspectedUsers.Set(float64(b.ledger.ActiveCount()))
		case <-retentionTick.C:
			b.withTimeout(ctx, func(jobCtx context.Context) {
				if err := b.store.CleanupAuditLogs(jobCtx, b.cfg.RetentionDays); err != nil {
					b.logger.Error("audit log cleanup failed", zap.Error(err))
				}
			})
		}
	}
}

func (b *Bot) withTimeout(ctx context.Context, job func(context.Context)) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	job(jobCtx)
}

// refreshIdentities rebuilds the impersonation scanner's cache of protected
// member names from the live member list.
func (b *Bot) refreshIdentities(ctx context.Context) {
	if len(b.cfg.ProtectedRoleIDs) == 0 {
		b.logger.Warn("no protected roles configured; impersonation scanning disabled")
		return
	}

	members, err := b.adapter.ListMembers(ctx, b.cfg.GuildID)
	if err != nil {
		b.logger.Error("member list fetch failed", zap.Error(err))
		return
	}

	roleNames := b.roleNames()
	var identities []impersonation.Identity
	for _, member := range members {
		if member.Bot {
			continue
		}
		roleName := b.protectedRoleName(member.RoleIDs, roleNames)
		if roleName == "" {
			continue
		}
		identities = append(identities, impersonation.Identity{
			UserID:      member.UserID,
			DisplayName: member.DisplayName,
			Username:    member.Username,
			RoleName:    roleName,
		})
	}

	b.scanner.SetIdentities(identities)
	b.logger.Info("protected identities refreshed", zap.Int("count", len(identities)))
}

func (b *Bot) roleNames() map[string]string {
	names := make(map[string]string)
	guild, err := b.session.State.Guild(b.cfg.GuildID)
	if err != nil {
		return names
	}
	for _, role := range guild.Roles {
		names[role.ID] = role.Name
	}
	return names
}

// protectedRoleName returns the name of the first protected role the member
// holds, or "" when they hold none.
func (b *Bot) protectedRoleName(roleIDs []string, names map[string]string) string {
	for _, roleID := range roleIDs {
		for _, protected := range b.cfg.ProtectedRoleIDs {
			if roleID != protected {
				continue
			}
			if name := names[roleID]; name != "" {
				return name
			}
			return "Staff"
		}
	}
	return ""
}

// sweepImpersonators walks the full member list looking for display names
// that collide with a protected member's.
func (b *Bot) sweepImpersonators(ctx context.Context) {
	if b.scanner.IdentityCount() == 0 {
		return
	}

	members, err := b.adapter.ListMembers(ctx, b.cfg.GuildID)
	if err != nil {
		b.logger.Error("member list fetch failed", zap.Error(err))
		return
	}

	flagged := 0
	for _, member := range members {
		if member.Bot || b.classifier.IsProtected(member.RoleIDs) {
			continue
		}
		match, found := b.scanner.Check(member.UserID, member.DisplayName)
		if !found {
			continue
		}
		flagged++
		b.handleImpersonation(ctx, member, match)
	}

	b.logger.Info("impersonation sweep finished",
		zap.Int("members", len(members)),
		zap.Int("flagged", flagged))

	if flagged > 0 {
		notice := fmt.Sprintf("Impersonation sweep: checked %d members, flagged %d.", len(members), flagged)
		if _, err := b.adapter.SendMessage(ctx, b.cfg.ReportChannel, notice); err != nil {
			b.logger.Warn("sweep summary send failed", zap.Error(err))
		}
	}
}

// sendSecurityReport posts the periodic summary to the report channel. The
// aggregator only resets after a successful send so a failed delivery keeps
// the counts for the next attempt.
func (b *Bot) sendSecurityReport(ctx context.Context) {
	summary := b.aggregator.Snapshot(5)

	embed := &discordgo.MessageEmbed{
		Title: "Security Report",
		Color: embedColorInfo,
		Description: fmt.Sprintf("Activity since <t:%d:f>", summary.Since.Unix()),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Messages Intercepted", Value: fmt.Sprintf("%d", summary.Intercepts), Inline: true},
			{Name: "Manual Reports", Value: fmt.Sprintf("%d", summary.Manual), Inline: true},
			{Name: "Users Under Suspicion", Value: fmt.Sprintf("%d", b.ledger.ActiveCount()), Inline: true},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if field := categoryField(summary); field != nil {
		embed.Fields = append(embed.Fields, field)
	}
	if field := offenderField(summary); field != nil {
		embed.Fields = append(embed.Fields, field)
	}
	if field := b.leaderboardField(ctx, summary); field != nil {
		embed.Fields = append(embed.Fields, field)
	}

	_, err := b.adapter.SendComplex(ctx, b.cfg.ReportChannel, &discordgo.MessageSend{
		Embeds:          []*discordgo.MessageEmbed{embed},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		b.logger.Error("security report send failed", zap.Error(err))
		return
	}

	b.aggregator.Reset()
	b.logger.Info("security report sent",
		zap.Int("intercepts", summary.Intercepts),
		zap.Int("manual", summary.Manual))
}

func categoryField(summary report.Summary) *discordgo.MessageEmbedField {
	if len(summary.Categories) == 0 {
		return nil
	}
	var lines []string
	for _, category := range []string{"url_shortener", "discord_invite", "encoded_url", "impersonation", "other"} {
		if count, ok := summary.Categories[category]; ok && count > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", category, count))
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return &discordgo.MessageEmbedField{Name: "By Category", Value: strings.Join(lines, "\n")}
}

func offenderField(summary report.Summary) *discordgo.MessageEmbedField {
	if len(summary.Offenders) == 0 {
		return nil
	}
	var lines []string
	for _, offender := range summary.Offenders {
		lines = append(lines, fmt.Sprintf("<@%s> (%s): %d", offender.UserID, offender.DisplayName, offender.Count))
	}
	return &discordgo.MessageEmbedField{Name: "Top Offenders", Value: strings.Join(lines, "\n")}
}

// leaderboardField ranks moderators by persisted ban actions since the last
// report, so the leaderboard survives restarts. Display names come from the
// in-memory aggregate when the moderator acted this interval.
func (b *Bot) leaderboardField(ctx context.Context, summary report.Summary) *discordgo.MessageEmbedField {
	counts, err := b.store.CountBansByAdmin(ctx, summary.Since)
	if err != nil {
		b.logger.Error("ban leaderboard query failed", zap.Error(err))
		return nil
	}
	if len(counts) == 0 {
		return nil
	}
	if len(counts) > 5 {
		counts = counts[:5]
	}

	names := make(map[string]string, len(summary.AdminBans))
	for _, admin := range summary.AdminBans {
		names[admin.AdminID] = admin.DisplayName
	}

	var lines []string
	for rank, admin := range counts {
		name := names[admin.AdminID]
		if name == "" {
			name = "<@" + admin.AdminID + ">"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %d bans", rank+1, name, admin.Bans))
	}
	return &discordgo.MessageEmbedField{Name: "Moderator Leaderboard", Value: strings.Join(lines, "\n")}
}
