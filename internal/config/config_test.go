package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categorywatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Notifications.NotifyEditorOfOwnChange)
	assert.False(t, cfg.Notifications.UseAutoWatchCategory)
	assert.False(t, cfg.Notifications.RevealEditorAddress)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
env: production
wiki:
  base_url: https://wiki.example.org
  site_name: Example Wiki
  server_timezone: Europe/Berlin
notifications:
  notify_editor_of_own_change: false
  use_auto_watch_category: true
  reveal_editor_address: true
  max_parallel_categories: 4
mail:
  system_sender_address: wiki@example.org
  send_timeout: 3s
http:
  hook_secret: s3cret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://wiki.example.org", cfg.Wiki.BaseURL)
	assert.Equal(t, "Example Wiki", cfg.Wiki.SiteName)
	assert.Equal(t, "/wiki/$1", cfg.Wiki.ArticlePath, "unset keys keep their default")
	assert.False(t, cfg.Notifications.NotifyEditorOfOwnChange)
	assert.True(t, cfg.Notifications.UseAutoWatchCategory)
	assert.True(t, cfg.Notifications.RevealEditorAddress)
	assert.Equal(t, 4, cfg.Notifications.MaxParallelCategories)
	assert.Equal(t, 3*time.Second, cfg.Mail.SendTimeout)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "wiki:\n  site_name: From File\n")
	t.Setenv("CATWATCH_WIKI_SITE_NAME", "From Env")
	t.Setenv("CATWATCH_REVEAL_EDITOR_ADDRESS", "true")
	t.Setenv("CATWATCH_SEND_RATE", "0.5")
	t.Setenv("CATWATCH_HOOK_RATE_WINDOW", "30s")
	t.Setenv("CATWATCH_MAX_PARALLEL_CATEGORIES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "From Env", cfg.Wiki.SiteName)
	assert.True(t, cfg.Notifications.RevealEditorAddress)
	assert.InDelta(t, 0.5, cfg.Mail.SendRatePerSecond, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.HTTP.HookRateWindow)
	assert.Equal(t, 3, cfg.Notifications.MaxParallelCategories)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("CATWATCH_NOTIFY_EDITOR", "maybe")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATWATCH_NOTIFY_EDITOR")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "wiki: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"missing base url", func(c *Config) { c.Wiki.BaseURL = " " }, ErrMissingBaseURL},
		{"article path without placeholder", func(c *Config) { c.Wiki.ArticlePath = "/wiki/" }, ErrInvalidArticlePath},
		{"unknown zone", func(c *Config) { c.Wiki.ServerTimezone = "Mars/Olympus" }, ErrInvalidLocation},
		{"bad sender", func(c *Config) { c.Mail.SystemSenderAddress = "not an address" }, ErrInvalidSender},
		{"zero parallelism", func(c *Config) { c.Notifications.MaxParallelCategories = 0 }, ErrInvalidParallelism},
		{"negative rate", func(c *Config) { c.Mail.SendRatePerSecond = -1 }, ErrInvalidSendRate},
		{"zero hook window", func(c *Config) { c.HTTP.HookRateWindow = 0 }, ErrInvalidHookRateRule},
		{"production without secret", func(c *Config) { c.Env = EnvProduction }, ErrMissingHookSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidate_JoinsProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wiki.BaseURL = ""
	cfg.Notifications.MaxParallelCategories = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrMissingBaseURL)
	assert.ErrorIs(t, err, ErrInvalidParallelism)
}

func TestWarnings_EditorFromWithResend(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Warnings())

	cfg.Notifications.RevealEditorAddress = true
	cfg.Notifications.FromIsEditorWhenRevealed = true
	assert.Empty(t, cfg.Warnings(), "the no-op sender accepts any From")

	cfg.Mail.ResendAPIKey = "re_test"
	warnings := cfg.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "from_is_editor_when_revealed")

	cfg.Notifications.RevealEditorAddress = false
	assert.Empty(t, cfg.Warnings(), "the editor address is never revealed")
}
