package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultsApplied(t *testing.T) {
	path := writeConfig(t, "community: ExampleCity\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.MinimumLinkAgeMinutes)
	assert.Equal(t, 10, cfg.VelocityThreshold)
	assert.Equal(t, 24, cfg.AchievementCooldownHours)
	assert.Equal(t, 3, cfg.DeletedContentThreshold)
	assert.Equal(t, "none", cfg.AIProvider)
	assert.False(t, cfg.AIEnabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
community: ExampleCity
velocity_threshold: 20
minimum_link_age_minutes: 10
redis:
  addr: redis:6380
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.VelocityThreshold)
	assert.Equal(t, 10, cfg.MinimumLinkAgeMinutes)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "community: ExampleCity\nvelocity_threshold: 20\n")
	t.Setenv("HUBBOT_VELOCITY_THRESHOLD", "30")
	t.Setenv("HUBBOT_REDIS__ADDR", "env-redis:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.VelocityThreshold)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
}

func TestValidation(t *testing.T) {
	_, err := Load(writeConfig(t, "enabled: true\n"))
	assert.Error(t, err, "community is required")

	_, err = Load(writeConfig(t, "community: c\nai_provider: claude\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "community: c\nai_provider: gemini\n"))
	assert.Error(t, err, "gemini requires a key")

	t.Setenv("HUBBOT_GEMINI_API_KEY", "secret")
	cfg, err := Load(writeConfig(t, "community: c\nai_provider: gemini\n"))
	require.NoError(t, err)
	assert.True(t, cfg.AIEnabled())
}
