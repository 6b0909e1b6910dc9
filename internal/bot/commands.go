package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/audit"
)

const (
	allowCommand   = "!allow"
	trustedCommand = "!trusted"

	allowUsage   = "Usage: `!allow add <domain>`, `!allow remove <domain>`, `!allow list`"
	trustedUsage = "Usage: `!trusted` to list, `!trusted remove <@user>` to drop an entry"
)

// isAdminCommand reports whether the message is one of the moderator
// commands handled in the report channel.
func isAdminCommand(content string) bool {
	fields := strings.Fields(content)
	return len(fields) > 0 && (fields[0] == allowCommand || fields[0] == trustedCommand)
}

func (b *Bot) handleAdminCommand(ctx context.Context, m *discordgo.MessageCreate) {
	fields := strings.Fields(m.Content)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case allowCommand:
		b.handleAllowCommand(ctx, m, fields[1:])
	case trustedCommand:
		b.handleTrustedCommand(ctx, m, fields[1:])
	}
}

// handleAllowCommand mutates the guild's extra allowed-domain list and
// reloads it into the pattern library so the change applies immediately.
func (b *Bot) handleAllowCommand(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	if len(args) == 0 {
		b.replyNoPing(ctx, m.ChannelID, allowUsage)
		return
	}

	switch args[0] {
	case "add", "remove":
		if len(args) != 2 {
			b.replyNoPing(ctx, m.ChannelID, allowUsage)
			return
		}
		domain := normalizeDomainArg(args[1])
		if domain == "" {
			b.replyNoPing(ctx, m.ChannelID, fmt.Sprintf("`%s` does not look like a domain.", args[1]))
			return
		}

		var err error
		if args[0] == "add" {
			err = b.store.AddDomainAllow(ctx, m.GuildID, domain)
		} else {
			err = b.store.RemoveDomainAllow(ctx, m.GuildID, domain)
		}
		if err != nil {
			b.logger.Error("domain allow-list update failed",
				zap.String("domain", domain), zap.Error(err))
			b.replyNoPing(ctx, m.ChannelID, "Updating the allowed domains failed.")
			return
		}
		b.loadAllowedDomains(ctx)

		if args[0] == "add" {
			b.audit.Log(ctx, audit.LevelInfo, m.GuildID, m.Author.ID, "domain_allow", domain)
			b.replyNoPing(ctx, m.ChannelID, fmt.Sprintf("Added `%s` to the allowed domains.", domain))
		} else {
			b.audit.Log(ctx, audit.LevelInfo, m.GuildID, m.Author.ID, "domain_disallow", domain)
			b.replyNoPing(ctx, m.ChannelID, fmt.Sprintf("Removed `%s` from the allowed domains.", domain))
		}

	case "list":
		domains, err := b.store.ListDomainAllow(ctx, m.GuildID)
		if err != nil {
			b.logger.Error("domain allow-list query failed", zap.Error(err))
			b.replyNoPing(ctx, m.ChannelID, "Listing the allowed domains failed.")
			return
		}
		if len(domains) == 0 {
			b.replyNoPing(ctx, m.ChannelID, "No extra allowed domains configured.")
			return
		}
		b.replyNoPing(ctx, m.ChannelID, "Extra allowed domains: `"+strings.Join(domains, "`, `")+"`")

	default:
		b.replyNoPing(ctx, m.ChannelID, allowUsage)
	}
}

// handleTrustedCommand lists the whitelist or removes a user from it.
// Additions keep going through the review-card whitelist button.
func (b *Bot) handleTrustedCommand(ctx context.Context, m *discordgo.MessageCreate, args []string) {
	switch {
	case len(args) == 0:
		entries, err := b.store.ListWhitelist(ctx)
		if err != nil {
			b.logger.Error("whitelist query failed", zap.Error(err))
			b.replyNoPing(ctx, m.ChannelID, "Listing the whitelist failed.")
			return
		}
		if len(entries) == 0 {
			b.replyNoPing(ctx, m.ChannelID, "The whitelist is empty.")
			return
		}
		var lines []string
		for _, entry := range entries {
			lines = append(lines, fmt.Sprintf("<@%s> (%s), added by <@%s>",
				entry.UserID, orDash(entry.Username), entry.AddedBy))
		}
		b.replyNoPing(ctx, m.ChannelID, "Whitelisted users:\n"+strings.Join(lines, "\n"))

	case args[0] == "remove" && len(args) == 2:
		userID := parseUserArg(args[1])
		if userID == "" {
			b.replyNoPing(ctx, m.ChannelID, trustedUsage)
			return
		}
		if err := b.store.RemoveWhitelist(ctx, userID); err != nil {
			b.logger.Error("whitelist removal failed", zap.String("user_id", userID), zap.Error(err))
			b.replyNoPing(ctx, m.ChannelID, "Removing the whitelist entry failed.")
			return
		}
		b.audit.Log(ctx, audit.LevelInfo, m.GuildID, userID, "whitelist_remove",
			fmt.Sprintf("removed by %s", m.Author.ID))
		b.replyNoPing(ctx, m.ChannelID, fmt.Sprintf("Removed <@%s> from the whitelist.", userID))

	default:
		b.replyNoPing(ctx, m.ChannelID, trustedUsage)
	}
}

func (b *Bot) replyNoPing(ctx context.Context, channelID, content string) {
	_, err := b.adapter.SendComplex(ctx, channelID, &discordgo.MessageSend{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		b.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// normalizeDomainArg reduces a pasted URL or bare domain to its lowercased
// host, or "" when the argument cannot be a domain.
func normalizeDomainArg(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	if i := strings.IndexAny(domain, "/?#"); i >= 0 {
		domain = domain[:i]
	}
	domain = strings.TrimSuffix(domain, ".")
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " \t@") {
		return ""
	}
	return domain
}

// parseUserArg accepts a raw snowflake or a <@id> / <@!id> mention.
func parseUserArg(raw string) string {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "<@!")
	id = strings.TrimPrefix(id, "<@")
	id = strings.TrimSuffix(id, ">")
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	if id == "" {
		return ""
	}
	return id
}
