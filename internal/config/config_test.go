package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("MJFEED_CONFIG", "does-not-exist.yaml")
	t.Setenv("MASTODON_ACCESS_TOKEN", "token")
	t.Setenv("MASTODON_INSTANCE_URL", "https://mastodon.example")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PollInterval != 30*time.Minute {
		t.Errorf("PollInterval = %v, want 30m", cfg.PollInterval)
	}
	if cfg.PublishInterval != time.Minute {
		t.Errorf("PublishInterval = %v, want 1m", cfg.PublishInterval)
	}
	if cfg.TeaserMaxLength != 200 {
		t.Errorf("TeaserMaxLength = %d, want 200", cfg.TeaserMaxLength)
	}
	if cfg.LongThreshold != 4000 || cfg.SummaryTargetLength != 1200 || cfg.SummaryPromptMaxChars != 6000 {
		t.Errorf("summarization defaults wrong: %d/%d/%d",
			cfg.LongThreshold, cfg.SummaryTargetLength, cfg.SummaryPromptMaxChars)
	}
	if len(cfg.DefaultHashtags) != 2 || cfg.DefaultHashtags[0] != "#MotherJones" {
		t.Errorf("DefaultHashtags = %v", cfg.DefaultHashtags)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("DEFAULT_HASHTAGS", "News, Politics")
	t.Setenv("TEASER_MAX_LENGTH", "280")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.PollInterval != 5*time.Minute {
		t.Errorf("PollInterval = %v, want 5m", cfg.PollInterval)
	}
	if cfg.TeaserMaxLength != 280 {
		t.Errorf("TeaserMaxLength = %d, want 280", cfg.TeaserMaxLength)
	}
	want := []string{"#News", "#Politics"}
	if len(cfg.DefaultHashtags) != 2 || cfg.DefaultHashtags[0] != want[0] || cfg.DefaultHashtags[1] != want[1] {
		t.Errorf("DefaultHashtags = %v, want %v", cfg.DefaultHashtags, want)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("MJFEED_CONFIG", "does-not-exist.yaml")
	t.Setenv("MASTODON_ACCESS_TOKEN", "")
	t.Setenv("MASTODON_INSTANCE_URL", "https://mastodon.example")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error for missing access token")
	}
}
