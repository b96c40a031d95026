package internal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picodice/pkg/commands"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
)

func TestGetConfigPath(t *testing.T) {
	t.Setenv(config.EnvPicoDiceConfig, "")
	t.Setenv(config.EnvPicoDiceHome, "")
	t.Setenv("HOME", "/tmp/home")

	assert.Equal(t, filepath.Join("/tmp/home", ".picodice", "config.json"), GetConfigPath())
}

func TestGetConfigPath_Override(t *testing.T) {
	t.Setenv(config.EnvPicoDiceConfig, "/etc/picodice/bot.json")
	assert.Equal(t, "/etc/picodice/bot.json", GetConfigPath())
}

func TestLoadConfig_ReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bot": {"prefix": "?"}}`), 0o600))
	t.Setenv(config.EnvPicoDiceConfig, path)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "?", cfg.Bot.Prefix)
}

func TestFormatVersion(t *testing.T) {
	oldVersion, oldGit := version, gitCommit
	t.Cleanup(func() {
		version, gitCommit = oldVersion, oldGit
	})

	version = "1.2.3"
	gitCommit = ""
	assert.Equal(t, "1.2.3", FormatVersion())

	gitCommit = "abc123"
	assert.Equal(t, "1.2.3 (git: abc123)", FormatVersion())
}

func TestFormatBuildInfo_FallsBackToRuntimeVersion(t *testing.T) {
	oldBuildTime, oldGoVersion := buildTime, goVersion
	t.Cleanup(func() {
		buildTime, goVersion = oldBuildTime, oldGoVersion
	})

	buildTime = "2026-01-01T00:00:00Z"
	goVersion = ""

	build, goVer := FormatBuildInfo()
	assert.Equal(t, "2026-01-01T00:00:00Z", build)
	assert.NotEmpty(t, goVer)
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() { logger.SetLevel(logger.INFO) })

	cfg := config.DefaultConfig()
	cfg.Log.Level = "warn"
	require.NoError(t, SetupLogging(cfg, false))
	assert.Equal(t, logger.WARN, logger.GetLevel())

	require.NoError(t, SetupLogging(cfg, true))
	assert.Equal(t, logger.DEBUG, logger.GetLevel())

	cfg.Log.Level = "loud"
	assert.Error(t, SetupLogging(cfg, false))
}

func TestNewApp_SeededRollsAreDeterministic(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bot.Seed = 42
	cfg.RateLimits.CommandsPerMinute = 0

	roll := func() string {
		app := NewApp(cfg)
		var got string
		req := commands.Request{
			Channel:  "console",
			ChatID:   "console",
			SenderID: "console",
			Text:     "!roll 4d20",
			Respond: func(r commands.Reply) error {
				got = r.Text
				return nil
			},
		}
		res := app.Dispatcher.Dispatch(context.Background(), req)
		require.True(t, res.Handled)
		require.NoError(t, res.Err)
		return got
	}

	first := roll()
	assert.Contains(t, first, "console: ")
	assert.Equal(t, first, roll())
}
