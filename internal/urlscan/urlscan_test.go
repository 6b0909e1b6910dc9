package urlscan

import (
	"testing"

	"scamsentry/internal/patterns"
)

const guildID = "123456789"

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("check https://Evil.COM/path and https://garden.finance/swap")
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls, got %d", len(urls))
	}
	if urls[0].Domain != "evil.com" {
		t.Fatalf("host not lowercased: %q", urls[0].Domain)
	}
	if urls[1].Domain != "garden.finance" {
		t.Fatalf("unexpected domain %q", urls[1].Domain)
	}
}

func TestExtractBareDomains(t *testing.T) {
	domains := ExtractBareDomains("visit scamsite.xyz for rewards")
	if len(domains) != 1 || domains[0] != "scamsite.xyz" {
		t.Fatalf("got %v", domains)
	}
	if got := ExtractBareDomains("see user@example.com for details"); len(got) != 0 {
		t.Fatalf("email matched as domain: %v", got)
	}
}

func TestHasUnauthorizedURL(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"https://bit.ly/freemint", true},
		{"https://evil.com/claim", true},
		{"https://discord.gg/scamserver", true},
		{"https://discord.com/invite/scamserver", true},
		{"https://discord.com/channels/" + guildID + "/111/222", false},
		{"https://discord.com/channels/999/111/222", false},
		{"https://support.discord.com/hc/articles/1", false},
		{"https://garden.finance/swap", false},
		{"https://tenor.com/view/funny", false},
		{"nothing to see here", false},
		{"check scamsite.com now", true},
	}
	for _, tc := range cases {
		if got := HasUnauthorizedURL(tc.text, guildID); got != tc.want {
			t.Fatalf("HasUnauthorizedURL(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestIsAllowedURL(t *testing.T) {
	if !IsAllowedURL("https://garden.finance and https://youtu.be/abc", guildID) {
		t.Fatalf("allow-listed urls rejected")
	}
	if IsAllowedURL("https://garden.finance plus https://evil.com", guildID) {
		t.Fatalf("one disallowed url should fail the message")
	}
}

func TestHasDeceptiveURL(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"https://dlscord.com/login", true},
		{"https://discord.security-check.com update", true},
		{"https://discord.gift-claim.net", true},
		{"https://free-nft-claim.xyz/mint", true},
		{"https://airdrop-event.io", true},
		{"join discord.gg/abcdefgh12 now", true},
		{"open a ticket here https://helpdesk.io", true},
		{"https://garden.finance/swap is live", false},
		{"plain message", false},
	}
	for _, tc := range cases {
		if got := HasDeceptiveURL(tc.text); got != tc.want {
			t.Fatalf("HasDeceptiveURL(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestHasDeceptiveURLAllowedSuppression(t *testing.T) {
	// Ticket wording next to an allow-listed link is not deceptive.
	if HasDeceptiveURL("need support? watch https://youtube.com/watch?v=1") {
		t.Fatalf("allow-listed url treated as deceptive")
	}
}

func TestDetectObfuscation(t *testing.T) {
	if flags := DetectObfuscation("https://evil.com/%61%62%63"); !flags.PercentEncoding {
		t.Fatalf("percent encoding not flagged")
	}
	if flags := DetectObfuscation("h t t p s : evil dot com"); !flags.BrokenScheme {
		t.Fatalf("broken scheme not flagged")
	}
	if flags := DetectObfuscation("d i s c o r d . g g slash free"); !flags.SpacedDiscord {
		t.Fatalf("spaced discord not flagged")
	}
	if flags := DetectObfuscation("https://ev<il>.com"); !flags.UnusualBrackets {
		t.Fatalf("brackets not flagged")
	}
	if flags := DetectObfuscation("https://discord\u200bgg/evil"); !flags.InvisibleChars {
		t.Fatalf("zero-width character not flagged")
	}
	if flags := DetectObfuscation("https://evil.com ordinary text"); flags.Obfuscated() {
		t.Fatalf("plain url flagged: %+v", flags)
	}
	if flags := DetectObfuscation("https://garden.finance/%61%62"); flags.Obfuscated() {
		t.Fatalf("allow-listed url should suppress flags")
	}
	if flags := DetectObfuscation("a\nb\nc\nd\ne\nf\ng"); !flags.ExcessiveLineBreaks {
		t.Fatalf("line breaks not flagged")
	}
}

func TestContainsShortener(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"https://bit.ly/abc", true},
		{"grab it at bit.ly/abc", true},
		{"grab it at cutt.ly now", true},
		{"is.gd/payload here", true},
		{"that is. good", false},
		{"https://github.com/owner/repo", false},
	}
	for _, tc := range cases {
		if got := ContainsShortener(tc.text); got != tc.want {
			t.Fatalf("ContainsShortener(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestRuntimeAllowListExtension(t *testing.T) {
	patterns.SetExtraAllowedDomains([]string{"partner.io"})
	defer patterns.SetExtraAllowedDomains(nil)

	if HasUnauthorizedURL("https://partner.io/launch", guildID) {
		t.Fatalf("runtime-allowed domain rejected")
	}
}
