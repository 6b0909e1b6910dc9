// Package classifier combines pattern, URL, role, and mention signals with
// the suspicion ledger and the cross-channel dedup tracker to decide what to
// do with an inbound message.
package classifier

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"scamsentry/internal/config"
	"scamsentry/internal/dedup"
	"scamsentry/internal/ledger"
	"scamsentry/internal/patterns"
	"scamsentry/internal/urlscan"
)

type Action int

const (
	ActionAllow Action = iota
	ActionQuarantine
	ActionKick
)

func (a Action) String() string {
	switch a {
	case ActionQuarantine:
		return "quarantine"
	case ActionKick:
		return "kick"
	default:
		return "allow"
	}
}

// Report categories fed to the aggregator.
const (
	CategoryShortener     = "url_shortener"
	CategoryInvite        = "discord_invite"
	CategoryEncoded       = "encoded_url"
	CategoryImpersonation = "impersonation"
	CategoryOther         = "other"
)

// Verdict is the classification outcome. Channels carries every channel the
// offending content should be purged from.
type Verdict struct {
	Action   Action
	Reasons  []string
	Category string
	Channels []string
}

func allow() Verdict { return Verdict{Action: ActionAllow} }

// Message is the platform-agnostic view of an inbound message. Whitelisted
// and Moderatable are resolved by the caller, which owns the whitelist store
// and the bot's role position.
type Message struct {
	ID               string
	GuildID          string
	ChannelID        string
	AuthorID         string
	Content          string
	DisplayName      string
	RoleIDs          []string
	JoinedAt         time.Time
	MentionedUserIDs []string
	MentionsEveryone bool
	Forwarded        bool
	ViaWebhook       bool
	Whitelisted      bool
	Moderatable      bool
}

// MemberDirectory answers role questions about other guild members.
type MemberDirectory interface {
	IsProtected(ctx context.Context, userID string) (bool, error)
	HasOnlyBaseRole(ctx context.Context, userID string) (bool, error)
}

type Classifier struct {
	cfg     config.Config
	ledger  *ledger.Ledger
	tracker *dedup.Tracker
	dir     MemberDirectory
	logger  *zap.Logger
	clock   Clock
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func New(cfg config.Config, ldg *ledger.Ledger, tracker *dedup.Tracker, dir MemberDirectory, logger *zap.Logger) *Classifier {
	return &Classifier{
		cfg:     cfg,
		ledger:  ldg,
		tracker: tracker,
		dir:     dir,
		logger:  logger,
		clock:   realClock{},
	}
}

func (c *Classifier) WithClock(clock Clock) {
	c.clock = clock
}

// IsProtected reports whether the role set includes a protected role. An
// unconfigured protected-role list fails open: everyone is protected and the
// bot takes no action rather than over-moderating.
func (c *Classifier) IsProtected(roleIDs []string) bool {
	if len(c.cfg.ProtectedRoleIDs) == 0 {
		return true
	}
	for _, roleID := range roleIDs {
		for _, protected := range c.cfg.ProtectedRoleIDs {
			if roleID == protected {
				return true
			}
		}
	}
	return false
}

func (c *Classifier) hasOnlyBaseRole(roleIDs []string) bool {
	return len(roleIDs) == 1 && roleIDs[0] == c.cfg.BaseRoleID
}

// Classify runs the priority pipeline: skip exempt authors, compute signals,
// check the cross-channel flood (which overrides everything), then the
// quarantine composite, and finally mention/spam escalation for users
// already under suspicion.
func (c *Classifier) Classify(ctx context.Context, msg Message) Verdict {
	if msg.Whitelisted || c.IsProtected(msg.RoleIDs) || !msg.Moderatable {
		return allow()
	}

	content := msg.Content
	matchedTags := patterns.MatchScamPatterns(content)
	obfuscation := urlscan.DetectObfuscation(content)
	hasExternalURL := !urlscan.IsAllowedURL(content, msg.GuildID)
	deceptiveURL := urlscan.HasDeceptiveURL(content)
	shortenerURL := urlscan.ContainsShortener(content)
	hasDscGG := patterns.DscGG.MatchString(content)
	hasInvite := patterns.DiscordInvite.MatchString(content)
	hasOnlyBase := c.hasOnlyBaseRole(msg.RoleIDs)
	scamName := patterns.MatchScamName(msg.DisplayName)
	forwarded := msg.Forwarded || msg.ViaWebhook

	now := c.clock.Now()
	joinedRecently := !msg.JoinedAt.IsZero() && now.Sub(msg.JoinedAt) < 10*time.Minute

	hasAnyMentions := len(msg.MentionedUserIDs) > 0 || msg.MentionsEveryone
	qualifyingMentions, mentioningUnprotected := c.mentionSignals(ctx, msg, hasOnlyBase)

	// Cross-channel flood overrides every content signal: the same text from
	// a base-role-only author in enough distinct channels is quarantined even
	// when nothing else matches.
	channels := c.tracker.RecordSighting(msg.AuthorID, content, msg.ChannelID)
	if len(channels) > c.cfg.Dedup.FloodChannels && hasOnlyBase {
		return Verdict{
			Action:   ActionQuarantine,
			Reasons:  []string{"multi-channel flood"},
			Category: c.categorize(content, obfuscation, shortenerURL),
			Channels: channels,
		}
	}

	targetedScam := c.isTargetedScam(content, hasOnlyBase, qualifyingMentions, hasExternalURL)
	recentJoiner := joinedRecently && hasOnlyBase && (hasAnyMentions || hasExternalURL)
	officialMention := strings.Contains(content, "garden.finance")

	var reasons []string
	if len(matchedTags) > 0 && hasOnlyBase {
		reasons = append(reasons, "scam pattern: "+strings.Join(matchedTags, ", "))
	}
	if hasExternalURL && qualifyingMentions && hasOnlyBase {
		reasons = append(reasons, "external URL with mentions")
	}
	if deceptiveURL && hasOnlyBase {
		reasons = append(reasons, "deceptive URL")
	}
	if shortenerURL && hasOnlyBase {
		reasons = append(reasons, "URL shortener")
	}
	if obfuscation.Obfuscated() && hasOnlyBase {
		reasons = append(reasons, "URL obfuscation")
	}
	if targetedScam {
		reasons = append(reasons, "targeted scam")
	}
	if scamName {
		reasons = append(reasons, "scam display name")
	}
	if mentioningUnprotected {
		reasons = append(reasons, "base-role user mentioning members")
	}
	if recentJoiner {
		reasons = append(reasons, "recent joiner with suspicious behavior")
	}
	if hasDscGG {
		reasons = append(reasons, "dsc.gg link")
	}
	if hasInvite && !officialMention {
		reasons = append(reasons, "discord invite")
	}
	if forwarded && hasOnlyBase {
		reasons = append(reasons, "forwarded message")
	}

	if len(reasons) > 0 {
		return Verdict{
			Action:   ActionQuarantine,
			Reasons:  reasons,
			Category: c.categorize(content, obfuscation, shortenerURL),
			Channels: []string{msg.ChannelID},
		}
	}

	// No fresh verdict; users already under suspicion are still rate-limited.
	if c.ledger.IsSuspected(msg.AuthorID) {
		if hasAnyMentions {
			count := c.ledger.RecordMention(msg.AuthorID)
			if c.ledger.ExceedsMentionLimit(msg.AuthorID) {
				c.logger.Warn("mention limit exceeded while under suspicion",
					zap.String("user_id", msg.AuthorID), zap.Int("mentions", count))
				return Verdict{Action: ActionKick, Reasons: []string{"excessive mentions while under suspicion"}}
			}
		}
		if c.ledger.ExceedsSpamLimit(msg.AuthorID) {
			return Verdict{Action: ActionKick, Reasons: []string{"excessive spam occurrences while under suspicion"}}
		}
	}

	return allow()
}

// mentionSignals resolves the two mention-based signals. Qualifying mentions
// require every mentioned user to hold only the base role (or @everyone);
// mentioningUnprotected fires when a base-role author mentions anyone
// without a protected role. A failed member lookup counts as unprotected
// for the second signal and disqualifies the first.
func (c *Classifier) mentionSignals(ctx context.Context, msg Message, hasOnlyBase bool) (qualifying, mentioningUnprotected bool) {
	if len(msg.MentionedUserIDs) == 0 {
		return msg.MentionsEveryone, false
	}

	allBase := true
	for _, userID := range msg.MentionedUserIDs {
		onlyBase, err := c.dir.HasOnlyBaseRole(ctx, userID)
		if err != nil {
			c.logger.Debug("mentioned member lookup failed", zap.String("user_id", userID), zap.Error(err))
			allBase = false
		} else if !onlyBase {
			allBase = false
		}

		if hasOnlyBase && !mentioningUnprotected {
			protected, err := c.dir.IsProtected(ctx, userID)
			if err != nil || !protected {
				mentioningUnprotected = true
			}
		}
	}

	return allBase || msg.MentionsEveryone, mentioningUnprotected
}

func (c *Classifier) isTargetedScam(content string, hasOnlyBase, qualifyingMentions, hasExternalURL bool) bool {
	supportTerms := patterns.SupportTerms.MatchString(content)
	dmRequest := patterns.DMRequest.MatchString(content)
	invite := patterns.DiscordInvite.MatchString(content)

	return (hasOnlyBase && qualifyingMentions && (hasExternalURL || dmRequest)) ||
		(supportTerms && invite)
}

// categorize picks the report category for a quarantined message.
func (c *Classifier) categorize(content string, obfuscation urlscan.ObfuscationFlags, shortener bool) string {
	switch {
	case shortener:
		return CategoryShortener
	case patterns.DiscordInvite.MatchString(content):
		return CategoryInvite
	case obfuscation.Obfuscated():
		return CategoryEncoded
	default:
		return CategoryOther
	}
}
