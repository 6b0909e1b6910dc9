package platform

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a discordgo session to the Adapter interface.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

func (d *Discord) FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	raw, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch messages in %s: %w", channelID, err)
	}
	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		if m.Author == nil {
			continue
		}
		messages = append(messages, Message{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			AuthorID:  m.Author.ID,
			Content:   m.Content,
		})
	}
	return messages, nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (d *Discord) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	raw, err := d.session.State.Member(guildID, userID)
	if err != nil {
		raw, err = d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("fetch member %s: %w", userID, err)
		}
	}
	member := convertMember(raw)
	return &member, nil
}

func (d *Discord) ListMembers(ctx context.Context, guildID string) ([]Member, error) {
	var members []Member
	after := ""
	for {
		page, err := d.session.GuildMembers(guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, raw := range page {
			members = append(members, convertMember(raw))
		}
		after = page[len(page)-1].User.ID
		if len(page) < 1000 {
			break
		}
	}
	return members, nil
}

func (d *Discord) BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error {
	return d.session.GuildBanCreateWithReason(guildID, userID, reason, deleteDays, discordgo.WithContext(ctx))
}

func (d *Discord) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx))
}

func (d *Discord) CreateThread(ctx context.Context, parentChannelID, name string) (string, error) {
	if len(name) > 100 {
		name = name[:100]
	}
	thread, err := d.session.ThreadStartComplex(parentChannelID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 1440,
		Type:                discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create thread in %s: %w", parentChannelID, err)
	}
	return thread.ID, nil
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (string, error) {
	msg, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) SendComplex(ctx context.Context, channelID string, send *discordgo.MessageSend) (string, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID, content string) error {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open DM channel: %w", err)
	}
	_, err = d.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx))
	return err
}

// CanModerate reports whether the bot's highest role sits strictly above the
// target's highest role. The bot never moderates itself.
func (d *Discord) CanModerate(guildID, targetID string) (bool, error) {
	if d.session.State.User != nil && targetID == d.session.State.User.ID {
		return false, nil
	}

	guild, err := d.session.State.Guild(guildID)
	if err != nil || len(guild.Roles) == 0 {
		guild, err = d.session.Guild(guildID)
		if err != nil {
			return false, fmt.Errorf("fetch guild %s: %w", guildID, err)
		}
	}

	positions := make(map[string]int, len(guild.Roles))
	for _, role := range guild.Roles {
		positions[role.ID] = role.Position
	}

	botMember, err := d.FetchMember(context.Background(), guildID, d.session.State.User.ID)
	if err != nil {
		return false, err
	}
	target, err := d.FetchMember(context.Background(), guildID, targetID)
	if err != nil {
		return false, err
	}

	return highestPosition(botMember.RoleIDs, positions) > highestPosition(target.RoleIDs, positions), nil
}

func highestPosition(roleIDs []string, positions map[string]int) int {
	highest := -1
	for _, roleID := range roleIDs {
		if pos, ok := positions[roleID]; ok && pos > highest {
			highest = pos
		}
	}
	return highest
}

func convertMember(raw *discordgo.Member) Member {
	member := Member{
		RoleIDs:  raw.Roles,
		JoinedAt: raw.JoinedAt,
	}
	if raw.User != nil {
		member.UserID = raw.User.ID
		member.Username = raw.User.Username
		member.AvatarURL = raw.User.AvatarURL("")
		member.Bot = raw.User.Bot
		if created, err := discordgo.SnowflakeTimestamp(raw.User.ID); err == nil {
			member.CreatedAt = created
		}
	}
	member.DisplayName = raw.Nick
	if member.DisplayName == "" {
		member.DisplayName = member.Username
	}
	return member
}
