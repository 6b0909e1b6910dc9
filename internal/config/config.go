package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken            string              `yaml:"discord_token"`
	GuildID                 string              `yaml:"guild_id"`
	DatabasePath            string              `yaml:"database_path"`
	LogLevel                string              `yaml:"log_level"`
	ReportChannel           string              `yaml:"report_channel"`
	BaseRoleID              string              `yaml:"base_role_id"`
	ProtectedRoleIDs        []string            `yaml:"protected_role_ids"`
	ExcludedChannels        []string            `yaml:"excluded_channels"`
	ExcludedChannelPatterns []string            `yaml:"excluded_channel_patterns"`
	RetentionDays           int                 `yaml:"retention_days"`
	RulePreset              string              `yaml:"rule_preset"`
	Health                  HealthConfig        `yaml:"health"`
	Suspicion               SuspicionConfig     `yaml:"suspicion"`
	Dedup                   DedupConfig         `yaml:"dedup"`
	Impersonation           ImpersonationConfig `yaml:"impersonation"`
	Reporting               ReportingConfig     `yaml:"reporting"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SuspicionConfig struct {
	WindowMinutes          int `yaml:"window_minutes"`
	MentionCooldownMinutes int `yaml:"mention_cooldown_minutes"`
	MaxMentions            int `yaml:"max_mentions"`
	MaxSpamOccurrences     int `yaml:"max_spam_occurrences"`
	RetentionHours         int `yaml:"retention_hours"`
}

type DedupConfig struct {
	TTLMinutes    int `yaml:"ttl_minutes"`
	FloodChannels int `yaml:"flood_channels"`
	SweepSeconds  int `yaml:"sweep_seconds"`
}

type ImpersonationConfig struct {
	Threshold    float64 `yaml:"threshold"`
	RefreshHours int     `yaml:"refresh_hours"`
	SweepHours   int     `yaml:"sweep_hours"`
}

type ReportingConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/scamsentry.db",
		LogLevel:      "info",
		RetentionDays: 14,
		RulePreset:    "medium",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Suspicion: SuspicionConfig{
			WindowMinutes:          60,
			MentionCooldownMinutes: 10,
			MaxMentions:            4,
			MaxSpamOccurrences:     7,
			RetentionHours:         72,
		},
		Dedup: DedupConfig{
			TTLMinutes:    60,
			FloodChannels: 2,
			SweepSeconds:  300,
		},
		Impersonation: ImpersonationConfig{
			Threshold:    0.95,
			RefreshHours: 12,
			SweepHours:   6,
		},
		Reporting: ReportingConfig{IntervalMinutes: 1440},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return Config{}, errors.New("GUILD_ID is required")
	}

	cfg.RulePreset = normalizePreset(cfg.RulePreset)
	applyPreset(&cfg)
	clampIntervals(&cfg)

	return cfg, nil
}

// clampIntervals keeps the background tickers startable; time.NewTicker
// panics on non-positive durations.
func clampIntervals(cfg *Config) {
	defaults := DefaultConfig()
	if cfg.Dedup.TTLMinutes <= 0 {
		cfg.Dedup.TTLMinutes = defaults.Dedup.TTLMinutes
	}
	if cfg.Dedup.SweepSeconds <= 0 {
		cfg.Dedup.SweepSeconds = defaults.Dedup.SweepSeconds
	}
	if cfg.Impersonation.RefreshHours <= 0 {
		cfg.Impersonation.RefreshHours = defaults.Impersonation.RefreshHours
	}
	if cfg.Impersonation.SweepHours <= 0 {
		cfg.Impersonation.SweepHours = defaults.Impersonation.SweepHours
	}
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.GuildID = envString("GUILD_ID", cfg.GuildID)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.ReportChannel = envString("REPORT_CHANNEL", cfg.ReportChannel)
	cfg.BaseRoleID = envString("BASE_ROLE_ID", cfg.BaseRoleID)
	cfg.ProtectedRoleIDs = envStringList("PROTECTED_ROLE_IDS", cfg.ProtectedRoleIDs)
	cfg.ExcludedChannels = envStringList("EXCLUDED_CHANNELS", cfg.ExcludedChannels)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.RulePreset = envString("RULE_PRESET", cfg.RulePreset)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Suspicion.WindowMinutes = envInt("SUSPICION_WINDOW_MINUTES", cfg.Suspicion.WindowMinutes)
	cfg.Suspicion.MentionCooldownMinutes = envInt("MENTION_COOLDOWN_MINUTES", cfg.Suspicion.MentionCooldownMinutes)
	cfg.Suspicion.MaxMentions = envInt("MAX_MENTIONS", cfg.Suspicion.MaxMentions)
	cfg.Suspicion.MaxSpamOccurrences = envInt("MAX_SPAM_OCCURRENCES", cfg.Suspicion.MaxSpamOccurrences)
	cfg.Suspicion.RetentionHours = envInt("SUSPICION_RETENTION_HOURS", cfg.Suspicion.RetentionHours)
	cfg.Dedup.TTLMinutes = envInt("DEDUP_TTL_MINUTES", cfg.Dedup.TTLMinutes)
	cfg.Dedup.SweepSeconds = envInt("DEDUP_SWEEP_SECONDS", cfg.Dedup.SweepSeconds)
	cfg.Dedup.FloodChannels = envInt("DEDUP_FLOOD_CHANNELS", cfg.Dedup.FloodChannels)
	cfg.Impersonation.Threshold = envFloat("IMPERSONATION_THRESHOLD", cfg.Impersonation.Threshold)
	cfg.Impersonation.RefreshHours = envInt("IMPERSONATION_REFRESH_HOURS", cfg.Impersonation.RefreshHours)
	cfg.Impersonation.SweepHours = envInt("IMPERSONATION_SWEEP_HOURS", cfg.Impersonation.SweepHours)
	cfg.Reporting.IntervalMinutes = envInt("REPORT_INTERVAL_MINUTES", cfg.Reporting.IntervalMinutes)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envStringList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var list []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			list = append(list, trimmed)
		}
	}
	return list
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizePreset(value string) string {
	switch strings.ToLower(value) {
	case "low", "medium", "high":
		return strings.ToLower(value)
	default:
		return "medium"
	}
}

// Presets shift how aggressively repeat offenders and impersonators are
// pursued; the suspicion window itself is fixed by the detection design.
func applyPreset(cfg *Config) {
	switch cfg.RulePreset {
	case "low":
		cfg.Suspicion.MaxSpamOccurrences = 9
		cfg.Suspicion.MaxMentions = 6
		cfg.Impersonation.Threshold = 0.97
	case "high":
		cfg.Suspicion.MaxSpamOccurrences = 5
		cfg.Suspicion.MaxMentions = 3
		cfg.Impersonation.Threshold = 0.90
	}
}
