// Package impersonation compares member display names against a cached set
// of protected (staff) identities using normalized string similarity.
package impersonation

import (
	"strings"
	"sync"
	"time"

	"scamsentry/internal/config"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Identity is one protected member the scanner guards against.
type Identity struct {
	UserID      string
	DisplayName string
	Username    string
	RoleName    string
	Normalized  string
}

// Match is a candidate scored against a protected identity.
type Match struct {
	Identity   Identity
	Similarity float64
}

type Scanner struct {
	mu          sync.RWMutex
	cfg         config.ImpersonationConfig
	clock       Clock
	identities  []Identity
	refreshedAt time.Time
}

func NewScanner(cfg config.ImpersonationConfig) *Scanner {
	return &Scanner{cfg: cfg, clock: realClock{}}
}

func (s *Scanner) WithClock(clock Clock) {
	s.clock = clock
}

var leetReplacer = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"8", "b",
)

// Normalize lowercases, strips spaces and common separators, and undoes
// leet-speak digit substitutions so "Adm1n_Team" and "AdminTeam" compare
// equal.
func Normalize(name string) string {
	lowered := strings.ToLower(name)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r == ' ' || r == '\t' || r == '\n':
		case r == '.' || r == '_' || r == '-':
		default:
			b.WriteRune(r)
		}
	}
	return leetReplacer.Replace(b.String())
}

// Similarity scores two names in [0, 1]: 1.0 for an exact normalized match,
// the length ratio when one normalized form contains the other, else the
// positional character-match ratio.
func Similarity(a, b string) float64 {
	na := Normalize(a)
	nb := Normalize(b)

	if na == nb {
		if na == "" {
			return 0
		}
		return 1.0
	}

	ra := []rune(na)
	rb := []rune(nb)
	minLen := len(ra)
	maxLen := len(rb)
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}
	if maxLen == 0 {
		return 0
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return float64(minLen) / float64(maxLen)
	}

	matches := 0
	for i := 0; i < minLen; i++ {
		if ra[i] == rb[i] {
			matches++
		}
	}
	return float64(matches) / float64(maxLen)
}

// SetIdentities replaces the protected-identity cache.
func (s *Scanner) SetIdentities(identities []Identity) {
	for i := range identities {
		identities[i].Normalized = Normalize(identities[i].DisplayName)
	}
	s.mu.Lock()
	s.identities = identities
	s.refreshedAt = s.clock.Now()
	s.mu.Unlock()
}

// NeedsRefresh reports whether the cache is older than the refresh interval.
func (s *Scanner) NeedsRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	maxAge := time.Duration(s.cfg.RefreshHours) * time.Hour
	return s.clock.Now().Sub(s.refreshedAt) > maxAge
}

// IdentityCount returns the cached protected-identity count.
func (s *Scanner) IdentityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}

// Check scores the candidate against every protected identity and returns
// the best match when it clears the threshold. The candidate's own identity
// is skipped so protected members never match themselves.
func (s *Scanner) Check(userID, displayName string) (Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best Match
	for _, identity := range s.identities {
		if identity.UserID == userID {
			continue
		}
		score := Similarity(displayName, identity.DisplayName)
		if score > best.Similarity {
			best = Match{Identity: identity, Similarity: score}
		}
	}

	if best.Similarity >= s.cfg.Threshold {
		return best, true
	}
	return Match{}, false
}
