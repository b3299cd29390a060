package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Path)
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 3, cfg.Chat.DailyFreeLimit)
	assert.Equal(t, 20*time.Millisecond, cfg.Chat.TypingSpeed)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(Dir(), "pitchside.db"), cfg.Storage.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(t.TempDir(), "config.toml")

	content := `
[api]
base_url = "http://localhost:8080"
request_timeout = "5s"

[chat]
typing_speed = "15ms"

[storage]
backend = "memory"
path = "~/data/cache.db"

[prompts]
upgrade = "Out of messages ({{limit}})"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("PITCHSIDE_CHAT_DAILY_FREE_LIMIT", "5")
	t.Setenv("PITCHSIDE_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "http://localhost:8080", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 15*time.Millisecond, cfg.Chat.TypingSpeed)
	assert.Equal(t, 5, cfg.Chat.DailyFreeLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, filepath.Join(home, "data", "cache.db"), cfg.Storage.Path)
	assert.Equal(t, "Out of messages ({{limit}})", cfg.Prompts.Upgrade)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	tests := []struct {
		name    string
		content string
	}{
		{"bad backend", "[storage]\nbackend = \"postgres\"\n"},
		{"bad url", "[api]\nbase_url = \"not a url\"\n"},
		{"redis without addr", "[storage]\nbackend = \"redis\"\n"},
		{"zero limit", "[chat]\ndaily_free_limit = 0\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
		{"broken toml", "[api\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, WriteDefault(path, false))
	assert.ErrorIs(t, WriteDefault(path, false), ErrExists)
	require.NoError(t, WriteDefault(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)

	def := Default()
	def.Path = path
	assert.Equal(t, def, cfg)
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PITCHSIDE_API_BASE_URL=http://127.0.0.1:9999\n"), 0644))
	t.Cleanup(func() { _ = os.Unsetenv("PITCHSIDE_API_BASE_URL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.API.BaseURL)
}

func TestWatchMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	err := Watch(filepath.Join(t.TempDir(), "config.toml"), func(*Config, error) {})
	assert.ErrorIs(t, err, ErrNoFile)
}

func TestWatchReloadsPrompts(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[prompts]\nupgrade = \"first\"\n"), 0644))

	changes := make(chan *Config, 8)
	require.NoError(t, Watch(path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	}))

	require.NoError(t, os.WriteFile(path, []byte("[prompts]\nupgrade = \"second\"\n"), 0644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Prompts.Upgrade == "second" {
				assert.Equal(t, path, cfg.Path)
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
