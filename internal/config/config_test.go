package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8083", cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.AutoReplyTimeout)
	assert.Equal(t, 5, cfg.IdentifyPromptThreshold)
	assert.Equal(t, ":8083", cfg.Addr())
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadRejectsBadThreshold(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")
	t.Setenv("PREVIEW_THRESHOLD", "1.5")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsZeroPromptThreshold(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/test")
	t.Setenv("IDENTIFY_PROMPT_THRESHOLD", "0")

	_, err := Load()
	require.Error(t, err)
}
