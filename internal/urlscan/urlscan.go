// Package urlscan decides whether the URLs inside a message are authorized,
// deceptive, shortened, or obfuscated. Allow-listed URLs suppress every
// heuristic for that URL; checks are evaluated per URL, so one allow-listed
// link does not shield a second suspicious one.
package urlscan

import (
	"regexp"
	"strings"

	"scamsentry/internal/patterns"
	"scamsentry/internal/utils"
)

type URL struct {
	Raw    string
	Domain string
	Path   string
}

var (
	urlPattern = regexp.MustCompile(`(?i)https?://([^/\s]+)([^\s]*)`)

	// Bare word.word.tld tokens without a scheme.
	plainDomainPattern = regexp.MustCompile(`(?i)(?:^|[^.@\w])((?:\w+\.)+(?:com|org|net|network|io|finance|xyz|app|dev|info|co|gg|in|ca|us|uk|edu|gov|biz|me|tv|ai|so|tech|store|shop|cloud|de|fr|jp|ru|cn|au|nl|se|br|it|es|eu|nz|at|ch|pl|kr|za|crypto|eth|nft|dao|bitcoin|defi|chain|wallet))\b`)

	hiddenChars      = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{2060}\x{180E}]`)
	lookalikeDomain  = regexp.MustCompile(`(?i)^(?:dlscord|d1scord|discorcl|discorb|discordd|diamondhand)\.|^(?:gem|airdr[o0]p|nft-claim|crypto|swap|fomo|claim|web3|dao|seed)-`)
	suspiciousDomain = regexp.MustCompile(`(?i)^(?:[a-z0-9-]+\.)*(?:claim|airdrop|fomo|diamond|hands|nft|crypto|web3|seed|free|reward)[a-z0-9-]*\.[a-z]+$`)
	tripleHyphenated = regexp.MustCompile(`(?i)^[a-z0-9]+-[a-z0-9]+-[a-z0-9]+\.[a-z]+`)
	irregularInvite  = regexp.MustCompile(`(?i)discord(?:\.gg|\.com/invite)/[a-zA-Z0-9]{8,}`)
	ticketLinkText   = regexp.MustCompile(`(?i)(?:ticket|support|help|query|assistance).*https?://|https?://.*(?:ticket|support|help|query|assistance)`)

	markupStripper = strings.NewReplacer("**", "", "__", "", "*", "", "_", "", "`", "", "~~", "", ">", "")

	percentEncoding = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
	spacedScheme    = regexp.MustCompile(`(?i)h\s*t\s*t\s*p\s*s?\s*:`)
	wellFormedURL   = regexp.MustCompile(`(?i)https?://`)
	altSlashes      = regexp.MustCompile(`(?i)https?:\s*[@#*]{2,}|https?:\s+[/@]{2}`)
	invisibleInURL  = regexp.MustCompile(`(?i)https?://\S*[\x{200B}-\x{200D}\x{FEFF}\x{2060}\x{180E}]`)
	unusualBrackets = regexp.MustCompile(`(?i)https?://[^/\s]*[<>()\[\]{}\\|^~]+[^/\s]*`)
	spacedDiscord   = regexp.MustCompile(`(?i)\bd\s*i\s*s\s*c\s*o\s*r\s*d\s*\.\s*(?:g\s*g|c\s*o\s*m)\b`)
)

// Precompiled bare-token matchers for every shortener domain. Shorteners
// whose first label collides with a common word additionally require a path.
var bareShorteners []bareShortener

type bareShortener struct {
	loose       *regexp.Regexp
	strict      *regexp.Regexp
	requirePath bool
}

func init() {
	for _, shortener := range patterns.ShortenerDomains() {
		quoted := regexp.QuoteMeta(shortener)
		bareShorteners = append(bareShorteners, bareShortener{
			loose:       regexp.MustCompile(`(?i)(?:^|\s)` + quoted + `(?:/\S+)?(?:\s|$)`),
			strict:      regexp.MustCompile(`(?i)(?:^|\s)` + quoted + `/\S+(?:\s|$)`),
			requirePath: patterns.RequiresPath(shortener),
		})
	}
}

// ExtractURLs returns every protocol-prefixed URL in the text. Hosts are
// canonicalized through punycode so lookalike IDN hosts compare in ASCII.
func ExtractURLs(text string) []URL {
	matches := urlPattern.FindAllStringSubmatch(text, -1)
	urls := make([]URL, 0, len(matches))
	for _, m := range matches {
		domain := strings.ToLower(m[1])
		if _, host, err := utils.NormalizeURL(m[0]); err == nil && host != "" {
			domain = host
		}
		urls = append(urls, URL{Raw: m[0], Domain: domain, Path: m[2]})
	}
	return urls
}

// ExtractBareDomains returns bare domain-like tokens written without a
// scheme. Protocol-prefixed URLs are stripped first so a host is not scanned
// twice.
func ExtractBareDomains(text string) []string {
	stripped := urlPattern.ReplaceAllString(text, " ")
	matches := plainDomainPattern.FindAllStringSubmatch(stripped, -1)
	domains := make([]string, 0, len(matches))
	for _, m := range matches {
		domains = append(domains, strings.ToLower(m[1]))
	}
	return domains
}

// IsAllowedURL reports whether every URL and bare domain in the text is
// allow-listed or an internal link to the given guild. A single disallowed
// URL fails the whole message.
func IsAllowedURL(text, guildID string) bool {
	for _, u := range ExtractURLs(text) {
		if patterns.IsAllowedDomain(u.Domain) {
			continue
		}
		if isDiscordHost(u.Domain) && linksToGuild(u.Path, guildID) {
			continue
		}
		return false
	}
	for _, domain := range ExtractBareDomains(text) {
		if domain == "discord.com" || domain == "discord.gg" {
			continue
		}
		if !patterns.IsAllowedDomain(domain) {
			return false
		}
	}
	return true
}

// HasUnauthorizedURL is the stricter pre-classification check: shorteners
// and external invites are always unauthorized, internal links to the
// current guild and allow-listed domains pass.
func HasUnauthorizedURL(text, guildID string) bool {
	if ContainsShortener(text) {
		return true
	}

	for _, u := range ExtractURLs(text) {
		if patterns.IsAllowedDomain(u.Domain) {
			continue
		}
		if u.Domain == "discord.com" || u.Domain == "discord.gg" || strings.HasSuffix(u.Domain, ".discord.com") {
			if linksToGuild(u.Path, guildID) {
				continue
			}
			if u.Domain == "discord.gg" || strings.Contains(u.Path, "/invite/") {
				return true
			}
			// Other Discord links (support pages and the like) pass.
			continue
		}
		return true
	}

	for _, domain := range ExtractBareDomains(text) {
		if domain == "discord.com" || domain == "discord.gg" {
			continue
		}
		if !patterns.IsAllowedDomain(domain) {
			return true
		}
	}
	return false
}

// HasDeceptiveURL detects lookalike domains, keyword-squatting domains,
// hyphen-heavy domains, hidden characters inside a URL, shortener links,
// irregular invites, and ticket-themed link text.
func HasDeceptiveURL(text string) bool {
	urls := ExtractURLs(text)
	unlisted := false
	for _, u := range urls {
		if patterns.IsAllowedDomain(u.Domain) {
			continue
		}
		unlisted = true
		if hiddenChars.MatchString(u.Raw) {
			return true
		}
		if lookalikeDomain.MatchString(u.Domain) {
			return true
		}
		if strings.HasPrefix(u.Domain, "discord.") && u.Domain != "discord.com" && u.Domain != "discord.gg" {
			return true
		}
		if patterns.IsShortenerDomain(u.Domain) {
			return true
		}
		if suspiciousDomain.MatchString(u.Domain) {
			return true
		}
		if tripleHyphenated.MatchString(u.Domain) {
			return true
		}
	}

	if len(urls) > 0 && !unlisted {
		return false
	}
	return irregularInvite.MatchString(text) || (unlisted && ticketLinkText.MatchString(text))
}

// ObfuscationFlags breaks down which obfuscation heuristics fired.
type ObfuscationFlags struct {
	PercentEncoding     bool
	BrokenScheme        bool
	AlternativeSlashes  bool
	InvisibleChars      bool
	UnusualBrackets     bool
	SpacedDiscord       bool
	ExcessiveLineBreaks bool
}

func (f ObfuscationFlags) Obfuscated() bool {
	return f.PercentEncoding || f.BrokenScheme || f.AlternativeSlashes ||
		f.InvisibleChars || f.UnusualBrackets || f.SpacedDiscord || f.ExcessiveLineBreaks
}

// DetectObfuscation inspects the text for attempts to sneak a URL past
// pattern matching. When every extracted URL is allow-listed the message is
// taken at face value and all flags stay false.
func DetectObfuscation(text string) ObfuscationFlags {
	urls := ExtractURLs(text)
	if len(urls) > 0 {
		allAllowed := true
		for _, u := range urls {
			if !patterns.IsAllowedDomain(u.Domain) {
				allAllowed = false
				break
			}
		}
		if allAllowed {
			return ObfuscationFlags{}
		}
	}

	clean := markupStripper.Replace(text)
	lower := strings.ToLower(clean)

	flags := ObfuscationFlags{
		PercentEncoding:    percentEncoding.MatchString(clean),
		BrokenScheme:       spacedScheme.MatchString(clean) && !wellFormedURL.MatchString(clean),
		AlternativeSlashes: altSlashes.MatchString(clean),
		InvisibleChars:     invisibleInURL.MatchString(clean),
		UnusualBrackets:    unusualBrackets.MatchString(clean),
	}
	if spacedDiscord.MatchString(clean) &&
		!strings.Contains(lower, "discord.gg") && !strings.Contains(lower, "discord.com") {
		flags.SpacedDiscord = true
	}
	if strings.Count(text, "\n") > 5 && len(text) < 200 {
		flags.ExcessiveLineBreaks = true
	}
	return flags
}

// ContainsShortener matches protocol-prefixed and bare shortener links.
func ContainsShortener(text string) bool {
	for _, u := range ExtractURLs(text) {
		if patterns.IsShortenerDomain(u.Domain) {
			return true
		}
	}
	for _, s := range bareShorteners {
		if s.requirePath {
			if s.strict.MatchString(text) {
				return true
			}
			continue
		}
		if s.loose.MatchString(text) {
			return true
		}
	}
	return false
}

func isDiscordHost(domain string) bool {
	return domain == "discord.com" || strings.HasSuffix(domain, ".discord.com")
}

func linksToGuild(path, guildID string) bool {
	if !strings.Contains(path, "/channels/") {
		return false
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "channels" && i+1 < len(parts) {
			return parts[i+1] == guildID
		}
	}
	return false
}
