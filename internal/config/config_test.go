package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultFetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, []string{"AutoModerator", "timee_bot"}, cfg.BlockedAuthors)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDDIT_BASE_URL", "http://127.0.0.1:9999/")
	t.Setenv("PROXIES", "10.0.0.1:3128:user:pass, 10.0.0.2:3128")
	t.Setenv("FETCH_TIMEOUT", "2s")
	t.Setenv("BLOCKED_AUTHORS", "bot_a,bot_b")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9999", cfg.BaseURL)
	assert.Equal(t, []string{"10.0.0.1:3128:user:pass", "10.0.0.2:3128"}, cfg.Proxies)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, []string{"bot_a", "bot_b"}, cfg.BlockedAuthors)
}

func TestLoadRejectsIncompleteSMTP(t *testing.T) {
	t.Setenv("NOTIFICATION_EMAIL", "ops@example.com")
	t.Setenv("SMTP_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}
