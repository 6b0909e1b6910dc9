package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

type AuditLog struct {
	ID        int64
	GuildID   string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

type WhitelistEntry struct {
	UserID    string
	Username  string
	AddedBy   string
	CreatedAt time.Time
}

type AdminBanCount struct {
	AdminID string
	Bans    int
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) IsWhitelisted(ctx context.Context, userID string) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM whitelist WHERE user_id = ?`, userID)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) AddWhitelist(ctx context.Context, userID, username, addedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO whitelist (user_id, username, added_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			added_by = excluded.added_by
	`, userID, username, addedBy, time.Now().Unix())
	return err
}

func (s *Store) RemoveWhitelist(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM whitelist WHERE user_id = ?`, userID)
	return err
}

func (s *Store) ListWhitelist(ctx context.Context) ([]WhitelistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, added_by, created_at FROM whitelist ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []WhitelistEntry
	for rows.Next() {
		var entry WhitelistEntry
		var created int64
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.AddedBy, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		list = append(list, entry)
	}
	return list, rows.Err()
}

// GetReportThread returns the stored thread id for the user, or "" when no
// report thread exists yet.
func (s *Store) GetReportThread(ctx context.Context, userID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT thread_id FROM report_threads WHERE user_id = ?`, userID)
	var threadID string
	if err := row.Scan(&threadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return threadID, nil
}

func (s *Store) SetReportThread(ctx context.Context, userID, threadID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_threads (user_id, thread_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET thread_id = excluded.thread_id
	`, userID, threadID, time.Now().Unix())
	return err
}

func (s *Store) AddAuditLog(ctx context.Context, log AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (guild_id, user_id, level, event, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.GuildID, log.UserID, log.Level, log.Event, log.Details, log.CreatedAt.Unix())
	return err
}

// ListAuditLogs returns the guild's entries since the cutoff, newest first.
// The bot only writes the table; reads are for operators inspecting the
// database directly or via external tooling.
func (s *Store) ListAuditLogs(ctx context.Context, guildID string, since time.Time) ([]AuditLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, level, event, details, created_at
		FROM audit_logs
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var log AuditLog
		var created int64
		if err := rows.Scan(&log.ID, &log.GuildID, &log.UserID, &log.Level, &log.Event, &log.Details, &created); err != nil {
			return nil, err
		}
		log.CreatedAt = time.Unix(created, 0)
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func (s *Store) CleanupAuditLogs(ctx context.Context, retentionDays int) error {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < ?`, cutoff.Unix())
	return err
}

func (s *Store) AddDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domain_allowlist (guild_id, domain) VALUES (?, ?)`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) RemoveDomainAllow(ctx context.Context, guildID, domain string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM domain_allowlist WHERE guild_id = ? AND domain = ?`, guildID, strings.ToLower(domain))
	return err
}

func (s *Store) ListDomainAllow(ctx context.Context, guildID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT domain FROM domain_allowlist WHERE guild_id = ? ORDER BY domain`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, err
		}
		domains = append(domains, domain)
	}
	return domains, rows.Err()
}

// RecordBanAction persists a moderator ban for the leaderboard and audit
// history.
func (s *Store) RecordBanAction(ctx context.Context, adminID, userID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ban_actions (admin_id, user_id, reason, created_at)
		VALUES (?, ?, ?, ?)
	`, adminID, userID, reason, time.Now().Unix())
	return err
}

func (s *Store) CountBansByAdmin(ctx context.Context, since time.Time) ([]AdminBanCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT admin_id, COUNT(*) FROM ban_actions
		WHERE created_at >= ?
		GROUP BY admin_id
		ORDER BY COUNT(*) DESC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []AdminBanCount
	for rows.Next() {
		var count AdminBanCount
		if err := rows.Scan(&count.AdminID, &count.Bans); err != nil {
			return nil, err
		}
		counts = append(counts, count)
	}
	return counts, rows.Err()
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
