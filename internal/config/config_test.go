package config

import "testing"

func TestNormalizePreset(t *testing.T) {
	if got := normalizePreset("HIGH"); got != "high" {
		t.Fatalf("got %q", got)
	}
	if got := normalizePreset("bogus"); got != "medium" {
		t.Fatalf("got %q", got)
	}
}

func TestApplyPreset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RulePreset = "high"
	applyPreset(&cfg)
	if cfg.Suspicion.MaxSpamOccurrences != 5 || cfg.Suspicion.MaxMentions != 3 {
		t.Fatalf("high preset: %+v", cfg.Suspicion)
	}
	if cfg.Impersonation.Threshold != 0.90 {
		t.Fatalf("high threshold: %v", cfg.Impersonation.Threshold)
	}

	cfg = DefaultConfig()
	cfg.RulePreset = "low"
	applyPreset(&cfg)
	if cfg.Suspicion.MaxSpamOccurrences != 9 || cfg.Suspicion.MaxMentions != 6 {
		t.Fatalf("low preset: %+v", cfg.Suspicion)
	}
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("GUILD_ID", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without token")
	}

	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "guild")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RulePreset != "medium" || cfg.Suspicion.WindowMinutes != 60 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadClampsSweepIntervals(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("GUILD_ID", "guild")
	t.Setenv("DEDUP_SWEEP_SECONDS", "0")
	t.Setenv("IMPERSONATION_SWEEP_HOURS", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dedup.SweepSeconds != 300 {
		t.Fatalf("sweep seconds not clamped: %d", cfg.Dedup.SweepSeconds)
	}
	if cfg.Impersonation.SweepHours != 6 {
		t.Fatalf("sweep hours not clamped: %d", cfg.Impersonation.SweepHours)
	}
}
