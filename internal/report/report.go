// Package report accumulates interception counters over a rolling interval:
// per-category counts, repeat offenders, manual reports, and moderator ban
// activity. Purely observational; the orchestrator feeds it and a periodic
// job drains it.
package report

import (
	"sort"
	"sync"
	"time"

	"scamsentry/internal/config"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type offender struct {
	displayName string
	username    string
	count       int
}

type adminStat struct {
	displayName string
	avatarURL   string
	count       int
}

type Aggregator struct {
	mu         sync.Mutex
	clock      Clock
	interval   time.Duration
	lastReport time.Time

	intercepts int
	manual     int
	categories map[string]int
	offenders  map[string]*offender
	adminBans  map[string]*adminStat
}

// Offender is one entry of the top-offender ranking.
type Offender struct {
	UserID      string
	DisplayName string
	Username    string
	Count       int
}

// AdminBan is one entry of the moderator ban leaderboard.
type AdminBan struct {
	AdminID     string
	DisplayName string
	AvatarURL   string
	Count       int
}

// Summary is a point-in-time copy of the aggregate, safe to format and send
// without holding the lock.
type Summary struct {
	Since      time.Time
	Intercepts int
	Manual     int
	Categories map[string]int
	Offenders  []Offender
	AdminBans  []AdminBan
}

func New(cfg config.ReportingConfig) *Aggregator {
	a := &Aggregator{
		clock:      realClock{},
		interval:   time.Duration(cfg.IntervalMinutes) * time.Minute,
		categories: make(map[string]int),
		offenders:  make(map[string]*offender),
		adminBans:  make(map[string]*adminStat),
	}
	a.lastReport = a.clock.Now()
	return a
}

func (a *Aggregator) WithClock(clock Clock) {
	a.clock = clock
	a.lastReport = clock.Now()
}

// RecordEvent increments the category counter and the offender's count.
func (a *Aggregator) RecordEvent(category, userID, displayName, username string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.intercepts++
	a.categories[category]++

	if userID == "" {
		return
	}
	entry := a.offenders[userID]
	if entry == nil {
		entry = &offender{}
		a.offenders[userID] = entry
	}
	entry.count++
	if displayName != "" {
		entry.displayName = displayName
	}
	if username != "" {
		entry.username = username
	}
}

func (a *Aggregator) RecordManualReport() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manual++
}

func (a *Aggregator) RecordAdminBan(adminID, displayName, avatarURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.adminBans[adminID]
	if entry == nil {
		entry = &adminStat{}
		a.adminBans[adminID] = entry
	}
	entry.count++
	if displayName != "" {
		entry.displayName = displayName
	}
	if avatarURL != "" {
		entry.avatarURL = avatarURL
	}
}

// Due reports whether a full interval has elapsed since the last successful
// report. The periodic job may tick more often than the interval; the
// wall-clock check keeps overlapping ticks harmless.
func (a *Aggregator) Due() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clock.Now().Sub(a.lastReport) >= a.interval
}

func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// Snapshot copies the current aggregate for formatting. Top offenders and
// admins are ranked by count, capped at topN.
func (a *Aggregator) Snapshot(topN int) Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{
		Since:      a.lastReport,
		Intercepts: a.intercepts,
		Manual:     a.manual,
		Categories: make(map[string]int, len(a.categories)),
	}
	for category, count := range a.categories {
		summary.Categories[category] = count
	}

	for userID, entry := range a.offenders {
		summary.Offenders = append(summary.Offenders, Offender{
			UserID:      userID,
			DisplayName: entry.displayName,
			Username:    entry.username,
			Count:       entry.count,
		})
	}
	sort.Slice(summary.Offenders, func(i, j int) bool {
		return summary.Offenders[i].Count > summary.Offenders[j].Count
	})
	if len(summary.Offenders) > topN {
		summary.Offenders = summary.Offenders[:topN]
	}

	for adminID, entry := range a.adminBans {
		summary.AdminBans = append(summary.AdminBans, AdminBan{
			AdminID:     adminID,
			DisplayName: entry.displayName,
			AvatarURL:   entry.avatarURL,
			Count:       entry.count,
		})
	}
	sort.Slice(summary.AdminBans, func(i, j int) bool {
		return summary.AdminBans[i].Count > summary.AdminBans[j].Count
	})
	if len(summary.AdminBans) > topN {
		summary.AdminBans = summary.AdminBans[:topN]
	}

	return summary
}

// Reset clears the counters after a report was sent successfully.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.intercepts = 0
	a.manual = 0
	a.categories = make(map[string]int)
	a.offenders = make(map[string]*offender)
	a.adminBans = make(map[string]*adminStat)
	a.lastReport = a.clock.Now()
}
