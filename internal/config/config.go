package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all process-level configuration for the harvester
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	JobSchedule string // cron expression, empty disables scheduled runs
	JobFile     string

	// Platform access
	BaseURL          string
	Proxies          []string
	UserAgents       []string
	FetchTimeout     time.Duration
	FetchMaxRetries  int
	DetailMaxRetries int
	FetchRateLimit   float64 // requests per second, 0 = unlimited

	// Run control
	PausePollInterval time.Duration
	BlockedAuthors    []string

	// Output configuration
	OutputDir    string
	SecondaryDir string

	// Azure Storage configuration
	StorageAccount   string
	StorageContainer string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		JobSchedule: getEnv("JOB_SCHEDULE", ""),
		JobFile:     getEnv("JOB_FILE", ""),

		BaseURL:          strings.TrimRight(getEnv("REDDIT_BASE_URL", DefaultBaseURL), "/"),
		Proxies:          getSliceEnv("PROXIES", nil),
		UserAgents:       getSliceEnv("USER_AGENTS", nil),
		FetchTimeout:     getDurationEnv("FETCH_TIMEOUT", DefaultFetchTimeout),
		FetchMaxRetries:  getIntEnv("FETCH_MAX_RETRIES", DefaultFetchMaxRetries),
		DetailMaxRetries: getIntEnv("DETAIL_MAX_RETRIES", DefaultDetailMaxRetries),
		FetchRateLimit:   getFloatEnv("FETCH_RATE_LIMIT", 0),

		PausePollInterval: getDurationEnv("PAUSE_POLL_INTERVAL", DefaultPausePollInterval),
		BlockedAuthors:    getSliceEnv("BLOCKED_AUTHORS", []string{"AutoModerator", "timee_bot"}),

		OutputDir:    getEnv("OUTPUT_DIR", ""),
		SecondaryDir: getEnv("SECONDARY_DIR", ""),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "harvests"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Default returns a configuration with every default applied and no environment lookups
func Default() *Config {
	return &Config{
		Port:              "8080",
		BaseURL:           DefaultBaseURL,
		FetchTimeout:      DefaultFetchTimeout,
		FetchMaxRetries:   DefaultFetchMaxRetries,
		DetailMaxRetries:  DefaultDetailMaxRetries,
		PausePollInterval: DefaultPausePollInterval,
		BlockedAuthors:    []string{"AutoModerator", "timee_bot"},
		StorageContainer:  "harvests",
		SMTPPort:          587,
	}
}

func (c *Config) validate() error {
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	if c.FetchMaxRetries <= 0 || c.DetailMaxRetries <= 0 {
		return fmt.Errorf("FETCH_MAX_RETRIES and DETAIL_MAX_RETRIES must be positive")
	}

	if c.FetchRateLimit < 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must not be negative")
	}

	if c.PausePollInterval <= 0 {
		return fmt.Errorf("PAUSE_POLL_INTERVAL must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
