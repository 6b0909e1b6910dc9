package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"scamsentry/internal/audit"
	"scamsentry/internal/metrics"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.GuildID != b.cfg.GuildID || i.Member == nil || i.Member.User == nil {
		return
	}

	customID := i.MessageComponentData().CustomID
	var targetID string
	var action func(context.Context, *discordgo.InteractionCreate, string) (string, error)
	switch {
	case strings.HasPrefix(customID, "ban_"):
		targetID = strings.TrimPrefix(customID, "ban_")
		action = b.banFromReview
	case strings.HasPrefix(customID, "trust_"):
		targetID = strings.TrimPrefix(customID, "trust_")
		action = b.whitelistFromReview
	default:
		return
	}

	ctx := context.Background()

	// Only members holding a protected role may act on review cards.
	if !b.classifier.IsProtected(i.Member.Roles) {
		b.respondEphemeral(s, i, "You do not have permission to use this button.")
		return
	}

	reply, err := action(ctx, i, targetID)
	if err != nil {
		b.logger.Error("review action failed",
			zap.String("custom_id", customID),
			zap.String("admin_id", i.Member.User.ID),
			zap.Error(err))
		b.respondEphemeral(s, i, "Action failed: "+err.Error())
		return
	}
	b.respondEphemeral(s, i, reply)
	b.disableCardButtons(s, i)
}

func (b *Bot) banFromReview(ctx context.Context, i *discordgo.InteractionCreate, targetID string) (string, error) {
	adminID := i.Member.User.ID
	if err := b.adapter.BanMember(ctx, i.GuildID, targetID, banReason, 7); err != nil {
		return "", err
	}
	metrics.Bans.Inc()

	if err := b.store.RecordBanAction(ctx, adminID, targetID, banReason); err != nil {
		b.logger.Error("ban action persist failed", zap.String("admin_id", adminID), zap.Error(err))
	}
	b.aggregator.RecordAdminBan(adminID, displayName(i.Member, i.Member.User), i.Member.User.AvatarURL(""))

	b.audit.Log(ctx, audit.LevelCrit, i.GuildID, targetID, "ban",
		fmt.Sprintf("banned by %s", adminID))
	b.logger.Info("user banned from review card",
		zap.String("user_id", targetID),
		zap.String("admin_id", adminID))

	return fmt.Sprintf("Banned <@%s> and removed their recent messages.", targetID), nil
}

func (b *Bot) whitelistFromReview(ctx context.Context, i *discordgo.InteractionCreate, targetID string) (string, error) {
	adminID := i.Member.User.ID

	username := ""
	if member, err := b.adapter.FetchMember(ctx, i.GuildID, targetID); err == nil {
		username = member.Username
	}
	if err := b.store.AddWhitelist(ctx, targetID, username, adminID); err != nil {
		return "", err
	}

	b.audit.Log(ctx, audit.LevelInfo, i.GuildID, targetID, "whitelist",
		fmt.Sprintf("whitelisted by %s", adminID))
	b.logger.Info("user whitelisted from review card",
		zap.String("user_id", targetID),
		zap.String("admin_id", adminID))

	return fmt.Sprintf("Whitelisted <@%s>; their messages will no longer be flagged.", targetID), nil
}

func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction response failed", zap.Error(err))
	}
}

// disableCardButtons greys out the buttons on the card that was acted on so
// a second moderator cannot double-ban.
func (b *Bot) disableCardButtons(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Message == nil {
		return
	}
	components := make([]discordgo.MessageComponent, 0, len(i.Message.Components))
	for _, component := range i.Message.Components {
		row, ok := component.(*discordgo.ActionsRow)
		if !ok {
			components = append(components, component)
			continue
		}
		updated := discordgo.ActionsRow{}
		for _, inner := range row.Components {
			if button, ok := inner.(*discordgo.Button); ok {
				disabled := *button
				disabled.Disabled = true
				updated.Components = append(updated.Components, disabled)
				continue
			}
			updated.Components = append(updated.Components, inner)
		}
		components = append(components, updated)
	}

	_, err := s.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    i.Message.ChannelID,
		ID:         i.Message.ID,
		Components: components,
	})
	if err != nil {
		b.logger.Warn("disabling card buttons failed", zap.Error(err))
	}
}
