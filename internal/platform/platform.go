// Package platform isolates the chat-platform surface the detection engine
// needs. The engine talks to the Adapter interface; the Discord type
// implements it over a discordgo session.
package platform

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
}

type Member struct {
	UserID      string
	Username    string
	DisplayName string
	AvatarURL   string
	RoleIDs     []string
	JoinedAt    time.Time
	CreatedAt   time.Time
	Bot         bool
}

type Adapter interface {
	FetchRecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	FetchMember(ctx context.Context, guildID, userID string) (*Member, error)
	ListMembers(ctx context.Context, guildID string) ([]Member, error)
	BanMember(ctx context.Context, guildID, userID, reason string, deleteDays int) error
	KickMember(ctx context.Context, guildID, userID, reason string) error
	CreateThread(ctx context.Context, parentChannelID, name string) (string, error)
	SendMessage(ctx context.Context, channelID, content string) (string, error)
	SendComplex(ctx context.Context, channelID string, send *discordgo.MessageSend) (string, error)
	SendDirectMessage(ctx context.Context, userID, content string) error
	CanModerate(guildID, targetID string) (bool, error)
}
