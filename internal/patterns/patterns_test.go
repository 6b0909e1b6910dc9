package patterns

import "testing"

func TestMatchScamPatterns(t *testing.T) {
	cases := []struct {
		text string
		tag  string
	}{
		{"[OPEN-TICKET] reach out to our live support desk", "open-ticket"},
		{"please verify your wallet to continue", "wallet-verify"},
		{"claim your unclaimed rewards here", "claim-here"},
		{"Нужны сотрудники для удаленной работы", "cyrillic-text"},
		{"dm me for help with your ticket", "dm-for-support"},
		{"dsc.gg/freemint", "dsc-gg"},
	}
	for _, tc := range cases {
		tags := MatchScamPatterns(tc.text)
		found := false
		for _, tag := range tags {
			if tag == tc.tag {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected tag %q for %q, got %v", tc.tag, tc.text, tags)
		}
	}

	if tags := MatchScamPatterns("gm everyone, great day to build"); len(tags) != 0 {
		t.Fatalf("clean text matched %v", tags)
	}
}

func TestMatchScamName(t *testing.T) {
	for _, name := range []string{"Announcements", "📢 Updates", "PENDLE"} {
		if !MatchScamName(name) {
			t.Fatalf("expected %q to match", name)
		}
	}
	if MatchScamName("alice") {
		t.Fatalf("plain name matched")
	}
}

func TestIsAllowedDomain(t *testing.T) {
	if !IsAllowedDomain("garden.finance") {
		t.Fatalf("exact allow failed")
	}
	if !IsAllowedDomain("docs.garden.finance") {
		t.Fatalf("subdomain allow failed")
	}
	if IsAllowedDomain("evil.com") {
		t.Fatalf("unknown domain allowed")
	}

	SetExtraAllowedDomains([]string{"example.org"})
	defer SetExtraAllowedDomains(nil)
	if !IsAllowedDomain("example.org") || !IsAllowedDomain("sub.example.org") {
		t.Fatalf("extra allow-list not applied")
	}
}

func TestIsShortenerDomain(t *testing.T) {
	if !IsShortenerDomain("bit.ly") || !IsShortenerDomain("www.bit.ly") {
		t.Fatalf("shortener not recognized")
	}
	if IsShortenerDomain("github.com") {
		t.Fatalf("github flagged as shortener")
	}
}

func TestRequiresPath(t *testing.T) {
	if !RequiresPath("is.gd") {
		t.Fatalf("is.gd should require a path")
	}
	if RequiresPath("bit.ly") {
		t.Fatalf("bit.ly should not require a path")
	}
}
