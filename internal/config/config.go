// Package config loads pipeline settings from an optional YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Mastodon settings
	MastodonAccessToken string `yaml:"mastodon_access_token"`
	MastodonInstanceURL string `yaml:"mastodon_instance_url"`
	// Mention appended to direct-visibility posts so the instance delivers
	// them as a DM to someone.
	DirectMention string `yaml:"direct_mention"`

	// Feed settings
	FeedURL      string        `yaml:"feed_url"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// Publisher settings
	PublishInterval time.Duration `yaml:"publish_interval"`

	// Trending tag settings
	TrendsRefreshInterval time.Duration `yaml:"trends_refresh_interval"`
	TrendsTTL             time.Duration `yaml:"trends_ttl"`
	TrendsLimit           int           `yaml:"trends_limit"`

	// Gemini settings (empty API key runs the pipeline in degraded mode
	// with deterministic fallbacks)
	GoogleAPIKey string `yaml:"google_api_key"`

	// Teaser settings
	DefaultHashtags       []string `yaml:"default_hashtags"`
	TeaserMaxLength       int      `yaml:"teaser_max_length"`
	LongThreshold         int      `yaml:"long_threshold"`
	SummaryTargetLength   int      `yaml:"summary_target_length"`
	SummaryPromptMaxChars int      `yaml:"summary_prompt_max_chars"`

	// App settings
	DatabasePath string `yaml:"database_path"`
	HTTPAddr     string `yaml:"http_addr"`
	Debug        bool   `yaml:"debug"`
}

const defaultConfigPath = "config.yaml"

// Load builds the configuration: defaults, then the YAML file if present,
// then environment overrides. Validate is applied before returning.
func Load() (*Config, error) {
	cfg := &Config{
		FeedURL:               "https://www.motherjones.com/feed/",
		PollInterval:          30 * time.Minute,
		PublishInterval:       time.Minute,
		TrendsRefreshInterval: 6 * time.Hour,
		TrendsTTL:             24 * time.Hour,
		TrendsLimit:           10,
		DefaultHashtags:       []string{"#MotherJones", "#Investigative"},
		TeaserMaxLength:       200,
		LongThreshold:         4000,
		SummaryTargetLength:   1200,
		SummaryPromptMaxChars: 6000,
		DatabasePath:          "mjfeed.db",
		HTTPAddr:              ":8080",
	}

	path := defaultConfigPath
	if v := os.Getenv("MJFEED_CONFIG"); v != "" {
		path = v
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, cfg.Validate()
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MASTODON_ACCESS_TOKEN"); v != "" {
		c.MastodonAccessToken = v
	}
	if v := os.Getenv("MASTODON_INSTANCE_URL"); v != "" {
		c.MastodonInstanceURL = v
	}
	if v := os.Getenv("DIRECT_MENTION"); v != "" {
		c.DirectMention = v
	}
	if v := os.Getenv("RSS_FEED_URL"); v != "" {
		c.FeedURL = v
	}
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		c.GoogleAPIKey = v
	}
	if v := os.Getenv("DEFAULT_HASHTAGS"); v != "" {
		c.DefaultHashtags = splitHashtags(v)
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTPAddr = v
	}
	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}

	c.PollInterval = getEnvDurationOrDefault("POLL_INTERVAL", c.PollInterval)
	c.PublishInterval = getEnvDurationOrDefault("PUBLISH_INTERVAL", c.PublishInterval)
	c.TrendsRefreshInterval = getEnvDurationOrDefault("TRENDS_REFRESH_INTERVAL", c.TrendsRefreshInterval)
	c.TrendsTTL = getEnvDurationOrDefault("TRENDS_TTL", c.TrendsTTL)

	c.TrendsLimit = getEnvIntOrDefault("TRENDS_LIMIT", c.TrendsLimit)
	c.TeaserMaxLength = getEnvIntOrDefault("TEASER_MAX_LENGTH", c.TeaserMaxLength)
	c.LongThreshold = getEnvIntOrDefault("LONG_THRESHOLD", c.LongThreshold)
	c.SummaryTargetLength = getEnvIntOrDefault("SUMMARY_TARGET_LENGTH", c.SummaryTargetLength)
	c.SummaryPromptMaxChars = getEnvIntOrDefault("SUMMARY_PROMPT_MAX_CHARS", c.SummaryPromptMaxChars)
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// splitHashtags parses the comma-joined env form, ensuring the # prefix.
func splitHashtags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !strings.HasPrefix(part, "#") {
			part = "#" + part
		}
		tags = append(tags, part)
	}
	return tags
}

func (c *Config) Validate() error {
	if c.MastodonAccessToken == "" {
		return fmt.Errorf("MASTODON_ACCESS_TOKEN is required")
	}
	if c.MastodonInstanceURL == "" {
		return fmt.Errorf("MASTODON_INSTANCE_URL is required")
	}
	if c.FeedURL == "" {
		return fmt.Errorf("RSS_FEED_URL is required")
	}
	if c.TeaserMaxLength <= 0 {
		return fmt.Errorf("teaser_max_length must be positive")
	}
	return nil
}
