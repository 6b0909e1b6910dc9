package patterns

import (
	"regexp"
	"strings"
	"sync"
)

// Rule pairs a compiled matcher with the tag reported when it fires.
type Rule struct {
	Tag     string
	Matcher *regexp.Regexp
}

var scamRules = []Rule{
	{"admin-referral", regexp.MustCompile(`(?i)refer to the admin`)},
	{"open-ticket", regexp.MustCompile(`(?i)\[OPEN-TICKET\]`)},
	{"ticket-verb", regexp.MustCompile(`(?i)(?:SUBMIT|CREATE|OPEN)(?:[\s-]+\w+){0,2}[\s-]+(?:QUERY|TICKET)`)},
	{"complain-to-team", regexp.MustCompile(`(?i)to complain to team`)},
	{"dsc-gg", regexp.MustCompile(`(?i)dsc\.gg/`)},
	{"invite-mention", regexp.MustCompile(`(?i)discord\.gg/[a-zA-Z0-9]+\s*@`)},
	{"url-mention", regexp.MustCompile(`(?i)https?://.*\s*@[a-zA-Z0-9]+`)},
	{"airdrop-live", regexp.MustCompile(`(?i)airdrop is live now`)},
	{"opensea-collab", regexp.MustCompile(`(?i)collaborated with opensea`)},
	{"claim-asap", regexp.MustCompile(`(?i)claim as soon as possible`)},
	{"auto-announcement", regexp.MustCompile(`(?i)this is an automatically generated announcement message`)},
	{"earn-promise", regexp.MustCompile(`(?i)earn \$?\d+k or more within \d+ hours`)},
	{"profit-cut", regexp.MustCompile(`(?i)you will pay me \d+% of your profit`)},
	{"dm-funnel", regexp.MustCompile(`(?i)(only interested people should apply|drop a message|let's get started by asking)`)},
	{"whatsapp-contact", regexp.MustCompile(`(?i)WhatsApp \+\d{1,3} \d{4,}`)},
	{"earn-money", regexp.MustCompile(`(?i)how to earn|how to make money|make \$\d+k`)},
	{"teach-to-earn", regexp.MustCompile(`(?i)I\x{2019}ll teach \d+ people to earn`)},
	{"server-rep", regexp.MustCompile(`(?i)server representative`)},
	{"support-rep", regexp.MustCompile(`(?i)support representative`)},
	{"juice-airdrop", regexp.MustCompile(`(?i)JUICE AIR-DROP`)},
	{"live-now", regexp.MustCompile(`(?i)live NOW`)},
	{"juice-foundation", regexp.MustCompile(`(?i)juice-foundation\.org`)},
	{"free-tokens", regexp.MustCompile(`(?i)Get your free tokens`)},

	// Job scams.
	{"cyrillic-text", regexp.MustCompile(`[\p{Cyrillic}]{3,}`)},
	{"hiring-pitch", regexp.MustCompile(`(?i)\b(?:looking|hiring|seeking|need)\s+(?:for\s+)?(?:employees|staff|team members|workers)\b`)},
	{"salary-rate", regexp.MustCompile(`(?i)(?:\$\d+(?:[-+]?\d+)?/(?:hour|hr|week|month|day)|(?:\d+[-+]?\d+)?\s*(?:USD|EUR)/(?:hour|hr|week|month|day))`)},
	{"no-experience", regexp.MustCompile(`(?i)(?:no|without)\s+(?:exp(?:erience)?|quals?|qualifications?)\s+(?:req(?:uired)?|needed)`)},
	{"contact-via-dm", regexp.MustCompile(`(?i)(?:reach|contact|message|dm)\s+(?:me|us|admin)\s+(?:via|through|by|using)\s+(?:dm|pm|telegram|discord|email)`)},
	{"friend-request", regexp.MustCompile(`(?i)send\s+(?:me|us)?\s+(?:a\s+)?friend\s+req(?:uest)?`)},
	{"role-for-hire", regexp.MustCompile(`(?i)\b(?:dev(?:eloper)?s?|testers?|analysts?|writers?|moderators?|designers?)\s+(?:\$\d+[-+]?\d*[kK]?\+?\s*/\s*(?:week|month|year)|needed)`)},
	{"platform-hiring", regexp.MustCompile(`(?i)platform\s+(?:looking|hiring|searching|seeking)\s+for`)},
	{"web3-recruiting", regexp.MustCompile(`(?i)\b(?:AI|ML|DeFi|Crypto|NFT|Web3)\s+(?:platform|project|company)\s+(?:hiring|recruiting|looking)`)},

	// Fake-support funnels.
	{"dm-for-support", regexp.MustCompile(`(?i)\b(?:dm|message|contact)\s+(?:me|us|admin|support)\s+(?:for|about|regarding)\s+(?:help|support|assistance|ticket)`)},
	{"ticket-invite-com", regexp.MustCompile(`(?i)create a ticket .* https://discord\.com/invite/`)},
	{"ticket-invite-gg", regexp.MustCompile(`(?i)create a ticket .* https://discord\.gg/`)},
	{"live-support-desk", regexp.MustCompile(`(?i)\b(?:reach out to|contact) .* (?:live support|support desk)\b`)},
	{"ticket-with-invite", regexp.MustCompile(`(?i)\b(?:support_ticket|support ticket|ticket).+(?:discord\.gg|discord\.com/invite)`)},
	{"faq-with-invite", regexp.MustCompile(`(?i)\b(?:for all|for prompt|for any|for) (?:faq|questions|assistance|help|support).+(?:discord\.gg|discord\.com/invite)`)},
	{"invite-with-anchor", regexp.MustCompile(`(?i)(?:discord\.gg|discord\.com/invite).+(?:\[#[^\]]+\]|\(>\s*https)`)},
	{"create-tcket", regexp.MustCompile(`(?i)create-?t!?cket.*https`)},
	{"check-my-ticket", regexp.MustCompile(`(?i)check my ticket.*(?:https|discord\.com/invite)`)},
	{"submit-query-url", regexp.MustCompile(`(?i)submit query.*https`)},
	{"request-support-url", regexp.MustCompile(`(?i)request(?:_| )(?:support|assistance).*(?:https|discord\.com/invite)`)},
	{"unclaimed-airdrop", regexp.MustCompile(`(?i)unclaimed airdrop.*https`)},
	{"paper-handed", regexp.MustCompile(`(?i)paper handed.*(?:claim|airdrop).*https`)},
	{"fomo-diamondhands", regexp.MustCompile(`(?i)fomo-diamondhands`)},
	{"support-invite", regexp.MustCompile(`(?i)(?:support|ticket|assistance).*discord\.com/invite`)},
	{"invite-support", regexp.MustCompile(`(?i)discord\.com/invite/.*(?:submit|query|support|ticket)`)},
	{"create-ticket-url", regexp.MustCompile(`(?i)create.*ticket.*(?:https|discord\.gg)`)},
	{"pointer-before-url", regexp.MustCompile(`(?i)(?:👆|👇|👉).*https`)},
	{"pointer-after-url", regexp.MustCompile(`(?i)https.*(?:👆|👇|👉)`)},

	// Freelancer self-promotion spam.
	{"dev-pitch", regexp.MustCompile(`(?i)(?:developer|dev|engineer|programmer)\s+(?:who|with)\s+(?:enjoys|experience|expertise)`)},
	{"web3-dev", regexp.MustCompile(`(?i)(?:blockchain|web3|defi|smart contract|solidity|rust)\s+(?:developer|dev|engineer)`)},
	{"fullstack-web3", regexp.MustCompile(`(?i)(?:full[\s-]?stack|fullstack).*(?:blockchain|web3)`)},
	{"stack-dropping", regexp.MustCompile(`(?i)(?:frontend|backend|full[\s-]?stack).*(?:react|vue|angular|node|django|express)`)},
	{"specializing-in", regexp.MustCompile(`(?i)(?:specializ(?:e|ing)|focus(?:ed|ing)|experience)\s+in\s+(?:building|developing|creating)`)},
	{"ambitious-team", regexp.MustCompile(`(?i)if\s+you(?:'re|\s+are)\s+(?:working on|interested in|looking for).*(?:ambitious|developer|development|team)`)},
	{"skillset-pitch", regexp.MustCompile(`(?i)(?:toolkit|skill(?:s|set)|tech stack|main skill).*(?:solidity|rust|web3|blockchain)`)},
	{"years-experience", regexp.MustCompile(`(?i)(?:8|5|10)\+?\s*years?\s+(?:of\s+)?experience`)},
	{"contact-me", regexp.MustCompile(`(?i)please\s+(?:feel\s+free\s+to\s+)?contact\s+me`)},
	{"open-to-work", regexp.MustCompile(`(?i)(?:open\s+to|available\s+for|looking\s+for).*(?:collaboration|projects|opportunities|joining)`)},

	// Wallet phishing.
	{"wallet-verify", regexp.MustCompile(`(?i)(?:verify|validate|sync|connect)\s+(?:your\s+)?wallet`)},
	{"wallet-sync-required", regexp.MustCompile(`(?i)wallet\s+(?:verification|validation|sync|connection)\s+(?:required|needed)`)},
	{"account-flagged", regexp.MustCompile(`(?i)your\s+account\s+(?:has\s+been\s+)?(?:flagged|suspended|locked|compromised)`)},
	{"recovery-tool", regexp.MustCompile(`(?i)recovery\s+tool`)},
	{"claim-here", regexp.MustCompile(`(?i)claim\s+(?:your\s+)?(?:unclaimed\s+)?(?:rewards?|airdrop|tokens?)\s+here`)},
}

var scamNameRules = []Rule{
	{"announcement-name", regexp.MustCompile(`(?i)announcement`)},
	{"megaphone-name", regexp.MustCompile(`📢`)},
	{"brand-name", regexp.MustCompile(`(?i)^PENDLE$`)},
}

// Composite signals shared with the classifier.
var (
	SupportTerms  = regexp.MustCompile(`(?i)\b(?:support|ticket|assistance|help desk|live support|faq|questions)\b`)
	DMRequest     = regexp.MustCompile(`(?i)\b(?:dm|message|reach out|contact)\s+(?:me|us|support|team)\b`)
	DiscordInvite = regexp.MustCompile(`(?i)discord\.gg[\\/]|discord\.com/invite[\\/]|discord[.\s]*(?:gg|com[.\s]*[\\/][.\s]*invite)[\\/:]`)
	DscGG         = regexp.MustCompile(`(?i)dsc\.gg/`)
)

var allowedDomains = map[string]struct{}{
	"garden.finance":             {},
	"x.com":                      {},
	"tenor.com":                  {},
	"giphy.com":                  {},
	"gfycat.com":                 {},
	"media.giphy.com":            {},
	"media.tenor.com":            {},
	"media.discordapp.net":       {},
	"cdn.discordapp.com":         {},
	"images-ext-1.discordapp.net": {},
	"images-ext-2.discordapp.net": {},
	"soundcloud.com":             {},
	"i.scdn.co":                  {},
	"p.scdn.co":                  {},
	"spotify.com":                {},
	"youtube.com":                {},
	"youtu.be":                   {},
	"www.youtube.com":            {},
	"youtube-nocookie.com":       {},
	"m.youtube.com":              {},
	"dune.com":                   {},
}

var shortenerDomains = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "is.gd", "buff.ly", "ow.ly",
	"tr.im", "dsc.gg", "adf.ly", "tiny.cc", "shorten.me", "clck.ru", "cutt.ly",
	"rebrand.ly", "short.io", "bl.ink", "snip.ly", "lnk.to", "hive.am",
	"shor.by", "bc.vc", "v.gd", "qps.ru", "spoo.me", "x.co", "yourls.org",
	"shorturl.at", "tny.im", "u.to", "url.ie", "shrturi.com", "s.id",
	"tr.ee", "kutt.it", "dub.sh", "soo.gd", "qr.ae", "tothe.link",
	"san.aq", "kurzelinks.de", "lstu.fr", "bitly.pk",
}

// Shortener first labels that collide with common English words. Bare
// references to these only count when followed by a path segment.
var commonWordShorteners = map[string]struct{}{
	"to": {}, "is": {}, "us": {}, "id": {},
}

// Guild moderators can extend the allow-list at runtime; the extra set is
// loaded from storage at startup and on every change.
var (
	extraMu      sync.RWMutex
	extraAllowed = map[string]struct{}{}
)

// MatchScamPatterns returns the tags of every scam rule the text trips.
func MatchScamPatterns(text string) []string {
	var tags []string
	for _, rule := range scamRules {
		if rule.Matcher.MatchString(text) {
			tags = append(tags, rule.Tag)
		}
	}
	return tags
}

// MatchScamName reports whether a display name matches a known scam-account
// naming pattern.
func MatchScamName(displayName string) bool {
	for _, rule := range scamNameRules {
		if rule.Matcher.MatchString(displayName) {
			return true
		}
	}
	return false
}

// IsAllowedDomain matches the domain itself or any subdomain of an
// allow-listed entry.
func IsAllowedDomain(domain string) bool {
	domain = strings.ToLower(domain)
	if _, ok := allowedDomains[domain]; ok {
		return true
	}
	for allowed := range allowedDomains {
		if strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	extraMu.RLock()
	defer extraMu.RUnlock()
	if _, ok := extraAllowed[domain]; ok {
		return true
	}
	for allowed := range extraAllowed {
		if strings.HasSuffix(domain, "."+allowed) {
			return true
		}
	}
	return false
}

func IsShortenerDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, shortener := range shortenerDomains {
		if domain == shortener || strings.HasSuffix(domain, "."+shortener) {
			return true
		}
	}
	return false
}

// ShortenerDomains returns the known shortener list for bare-token scanning.
func ShortenerDomains() []string {
	return shortenerDomains
}

// RequiresPath reports whether a bare reference to the shortener needs an
// accompanying path segment before it counts as a link.
func RequiresPath(shortener string) bool {
	label, _, _ := strings.Cut(shortener, ".")
	_, ok := commonWordShorteners[label]
	return ok
}

// SetExtraAllowedDomains replaces the runtime-configured allow-list additions.
func SetExtraAllowedDomains(domains []string) {
	next := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		next[strings.ToLower(domain)] = struct{}{}
	}
	extraMu.Lock()
	extraAllowed = next
	extraMu.Unlock()
}
