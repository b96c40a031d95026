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
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "!", cfg.Bot.Prefix)
	assert.False(t, cfg.Channels.Discord.Enabled)
	assert.Equal(t, "127.0.0.1", cfg.Gateway.Host)
	assert.NotZero(t, cfg.Gateway.Port)
	assert.Equal(t, "/ws", cfg.Channels.WebSocket.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_NonExistent(t *testing.T) {
	t.Setenv(EnvDiscordToken, "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, `{
  "bot": {"prefix": "$", "admins": ["discord:42"]},
  "channels": {"discord": {"enabled": true, "token": "abc"}},
  "rate_limits": {"commands_per_minute": 10, "burst": 2}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "$", cfg.Bot.Prefix)
	assert.Equal(t, FlexibleStringSlice{"discord:42"}, cfg.Bot.Admins)
	assert.True(t, cfg.Channels.Discord.Enabled)
	assert.Equal(t, "abc", cfg.Channels.Discord.Token)
	assert.Equal(t, 10, cfg.RateLimits.CommandsPerMinute)
	assert.Equal(t, 18790, cfg.Gateway.Port, "unset fields keep defaults")
}

func TestLoadConfig_FlexibleStringSlice_MixedArray(t *testing.T) {
	path := writeConfig(t, `{"channels": {"telegram": {"allow_from": ["u1", 123, true]}}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, FlexibleStringSlice{"u1", "123", "true"}, cfg.Channels.Telegram.AllowFrom)
}

func TestLoadConfig_FlexibleStringSlice_SingleString(t *testing.T) {
	path := writeConfig(t, `{"channels": {"slack": {"allow_from": "U1"}}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, FlexibleStringSlice{"U1"}, cfg.Channels.Slack.AllowFrom)
}

func TestLoadConfig_InvalidSyntax(t *testing.T) {
	path := writeConfig(t, `{"bot": `)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("PICODICE_BOT_PREFIX", "?")
	t.Setenv("PICODICE_CHANNELS_TELEGRAM_ENABLED", "true")
	t.Setenv("PICODICE_CHANNELS_TELEGRAM_TOKEN", "tg")
	t.Setenv("PICODICE_GATEWAY_PORT", "9000")

	cfg, err := LoadConfig(writeConfig(t, `{"bot": {"prefix": "!"}}`))
	require.NoError(t, err)
	assert.Equal(t, "?", cfg.Bot.Prefix)
	assert.True(t, cfg.Channels.Telegram.Enabled)
	assert.Equal(t, "tg", cfg.Channels.Telegram.Token)
	assert.Equal(t, 9000, cfg.Gateway.Port)
}

func TestLoadConfig_DiscordTokenFallback(t *testing.T) {
	t.Setenv(EnvDiscordToken, "legacy-token")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "legacy-token", cfg.Channels.Discord.Token)
	assert.True(t, cfg.Channels.Discord.Enabled)
}

func TestLoadConfig_RejectsLongPrefix(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{"bot": {"prefix": "roll"}}`))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("PICODICE_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("PICODICE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("PICODICE_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(envPath))
	assert.Equal(t, "loaded", os.Getenv("PICODICE_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, SaveConfig(path, DefaultConfig()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "!", cfg.Bot.Prefix)
}

func TestGetEnabledChannels(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, GetEnabledChannels(cfg))

	cfg.Channels.Discord.Enabled = true
	cfg.Channels.Discord.Token = "t"
	cfg.Channels.Slack.Enabled = true
	cfg.Channels.Slack.BotToken = "xoxb"
	cfg.Channels.WebSocket.Enabled = true
	assert.Equal(t, []string{"discord", "websocket"}, GetEnabledChannels(cfg))

	cfg.Channels.Slack.AppToken = "xapp"
	assert.Equal(t, []string{"discord", "slack", "websocket"}, GetEnabledChannels(cfg))
	assert.Nil(t, GetEnabledChannels(nil))
	assert.Len(t, GetAllChannelNames(), 4)
}
