package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, time.Second, cfg.Pacing.RequestDelay)
	assert.Equal(t, 5*time.Minute, cfg.Pacing.CooldownTotal)
	assert.Equal(t, time.Minute, cfg.Pacing.CooldownStep)
	assert.Equal(t, 15, cfg.Pacing.WindowShouts)
	assert.Equal(t, "csv", cfg.Audit.Format)
	assert.False(t, cfg.Pacing.ProactiveCooldown)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FAVTHANKER_USERNAME", "operator")
	t.Setenv("FAVTHANKER_AUDIT_FORMAT", "SQLITE")
	t.Setenv("FAVTHANKER_LOG_LEVEL", "debug")
	t.Setenv("FAVTHANKER_SHOUT_DELAY", "3s")
	t.Setenv("FAVTHANKER_NOTIFICATIONS_ENABLED", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "operator", cfg.Account.Username)
	assert.Equal(t, "sqlite", cfg.Audit.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3*time.Second, cfg.Pacing.ShoutDelay)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("FAVTHANKER_SHOUT_DELAY", "soon")
	t.Setenv("FAVTHANKER_REQUESTS_PER_SECOND", "fast")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FAVTHANKER_SHOUT_DELAY")
	assert.Contains(t, err.Error(), "FAVTHANKER_REQUESTS_PER_SECOND")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
account:
  username: operator
pacing:
  shout_delay: 20s
  proactive_cooldown: true
audit:
  format: both
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "operator", cfg.Account.Username)
	assert.Equal(t, 20*time.Second, cfg.Pacing.ShoutDelay)
	assert.True(t, cfg.Pacing.ProactiveCooldown)
	assert.Equal(t, "both", cfg.Audit.Format)
	// untouched keys keep their defaults
	assert.Equal(t, time.Second, cfg.Pacing.RequestDelay)
}

func TestLoadFromFileMissing(t *testing.T) {
	err := DefaultConfig().LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errSub string
	}{
		{"bad audit format", func(c *Config) { c.Audit.Format = "xml" }, "Format"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "Level"},
		{"zero window", func(c *Config) { c.Pacing.WindowShouts = 0 }, "WindowShouts"},
		{"step larger than total", func(c *Config) { c.Pacing.CooldownStep = 10 * time.Minute }, "cooldown_step"},
		{"bad base url", func(c *Config) { c.Site.BaseURL = "not a url" }, "BaseURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"username":      "flaguser",
		"shout-delay":   2 * time.Second,
		"notifications": false,
		"log-level":     "",
	})

	assert.Equal(t, "flaguser", cfg.Account.Username)
	assert.Equal(t, 2*time.Second, cfg.Pacing.ShoutDelay)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Account.Username = "operator"
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, cfg, loaded)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account:\n  username: fromfile\nlogging:\n  level: warn\n"), 0644))
	t.Setenv("HOME", dir)
	t.Setenv("FAVTHANKER_USERNAME", "fromenv")

	cfg, err := Load(path, map[string]interface{}{"log-level": "error"})
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.Account.Username)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestProfile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "operator.json")
		content := `{"messages":["Thanks for the fav!"],"groups":[{"name":"Friends","users":["Alice"],"messages":["Thanks!"]}]}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		p, err := LoadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Thanks for the fav!"}, p.Messages)
		require.Len(t, p.Groups, 1)
		assert.True(t, p.Groups[0].Contains("alice"))
	})

	t.Run("empty pool rejected", func(t *testing.T) {
		path := filepath.Join(dir, "empty.yaml")
		require.NoError(t, os.WriteFile(path, []byte("messages: []\n"), 0644))
		_, err := LoadProfile(path)
		assert.Error(t, err)
	})

	t.Run("group without messages rejected", func(t *testing.T) {
		path := filepath.Join(dir, "group.yaml")
		content := "messages: [hi]\ngroups:\n  - name: g\n    users: [bob]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		_, err := LoadProfile(path)
		assert.Error(t, err)
	})

	t.Run("save and reload", func(t *testing.T) {
		path := filepath.Join(dir, "saved.yaml")
		p := &Profile{Username: "op", Messages: []string{"ty"}}
		require.NoError(t, SaveProfile(path, p))
		loaded, err := LoadProfile(path)
		require.NoError(t, err)
		assert.Equal(t, p.Messages, loaded.Messages)
	})
}

func TestProfilePath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "", cfg.ProfilePath())
	cfg.Account.Username = "Operator"
	assert.Equal(t, "operator.json", cfg.ProfilePath())
	cfg.Account.ProfilePath = "/tmp/p.yaml"
	assert.Equal(t, "/tmp/p.yaml", cfg.ProfilePath())
}
