package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvDiscordToken is read when no Discord token is configured, for
// compatibility with plain .env deployments.
const EnvDiscordToken = "DISCORD_TOKEN"

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*f = FlexibleStringSlice{}
		} else {
			*f = FlexibleStringSlice{single}
		}
		return nil
	}

	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Bot        BotConfig        `json:"bot" label:"Bot"`
	Channels   ChannelsConfig   `json:"channels" label:"Messaging Channels"`
	Gateway    GatewayConfig    `json:"gateway" label:"Gateway"`
	RateLimits RateLimitsConfig `json:"rate_limits" label:"Rate Limits"`
	Log        LogConfig        `json:"log" label:"Logging"`
}

type BotConfig struct {
	Prefix string `json:"prefix" label:"Command Prefix" env:"PICODICE_BOT_PREFIX"`
	// Admins are "channel:senderID" entries such as "discord:1234".
	Admins FlexibleStringSlice `json:"admins" label:"Admins" env:"PICODICE_BOT_ADMINS"`
	Seed   uint64              `json:"seed" label:"Random Seed" env:"PICODICE_BOT_SEED"` // 0 = unseeded
}

type ChannelsConfig struct {
	Discord   DiscordConfig   `json:"discord" label:"Discord"`
	Telegram  TelegramConfig  `json:"telegram" label:"Telegram"`
	Slack     SlackConfig     `json:"slack" label:"Slack"`
	WebSocket WebSocketConfig `json:"websocket" label:"WebSocket"`
}

type DiscordConfig struct {
	Enabled   bool                `json:"enabled" label:"Enabled" env:"PICODICE_CHANNELS_DISCORD_ENABLED"`
	Token     string              `json:"token" label:"Token" env:"PICODICE_CHANNELS_DISCORD_TOKEN"`
	Proxy     string              `json:"proxy" label:"Proxy" env:"PICODICE_CHANNELS_DISCORD_PROXY"`
	AllowFrom FlexibleStringSlice `json:"allow_from" label:"Allow From" env:"PICODICE_CHANNELS_DISCORD_ALLOW_FROM"`
}

type TelegramConfig struct {
	Enabled   bool                `json:"enabled" label:"Enabled" env:"PICODICE_CHANNELS_TELEGRAM_ENABLED"`
	Token     string              `json:"token" label:"Token" env:"PICODICE_CHANNELS_TELEGRAM_TOKEN"`
	Proxy     string              `json:"proxy" label:"Proxy" env:"PICODICE_CHANNELS_TELEGRAM_PROXY"`
	AllowFrom FlexibleStringSlice `json:"allow_from" label:"Allow From" env:"PICODICE_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type SlackConfig struct {
	Enabled   bool                `json:"enabled" label:"Enabled" env:"PICODICE_CHANNELS_SLACK_ENABLED"`
	BotToken  string              `json:"bot_token" label:"Bot Token" env:"PICODICE_CHANNELS_SLACK_BOT_TOKEN"`
	AppToken  string              `json:"app_token" label:"App Token" env:"PICODICE_CHANNELS_SLACK_APP_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" label:"Allow From" env:"PICODICE_CHANNELS_SLACK_ALLOW_FROM"`
}

type WebSocketConfig struct {
	Enabled   bool                `json:"enabled" label:"Enabled" env:"PICODICE_CHANNELS_WEBSOCKET_ENABLED"`
	Host      string              `json:"host" label:"Host" env:"PICODICE_CHANNELS_WEBSOCKET_HOST"`
	Port      int                 `json:"port" label:"Port" env:"PICODICE_CHANNELS_WEBSOCKET_PORT"`
	Path      string              `json:"path" label:"Path" env:"PICODICE_CHANNELS_WEBSOCKET_PATH"`
	AllowFrom FlexibleStringSlice `json:"allow_from" label:"Allow From" env:"PICODICE_CHANNELS_WEBSOCKET_ALLOW_FROM"`
}

type GatewayConfig struct {
	Enabled bool   `json:"enabled" label:"Enabled" env:"PICODICE_GATEWAY_ENABLED"`
	Host    string `json:"host" label:"Host" env:"PICODICE_GATEWAY_HOST"`
	Port    int    `json:"port" label:"Port" env:"PICODICE_GATEWAY_PORT"`
}

type RateLimitsConfig struct {
	CommandsPerMinute int `json:"commands_per_minute" label:"Commands Per Minute" env:"PICODICE_RATE_LIMITS_COMMANDS_PER_MINUTE"` // 0 = unlimited
	Burst             int `json:"burst" label:"Burst" env:"PICODICE_RATE_LIMITS_BURST"`
}

type LogConfig struct {
	Level string `json:"level" label:"Level" env:"PICODICE_LOG_LEVEL"`
	File  string `json:"file" label:"File" env:"PICODICE_LOG_FILE"`
}

func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Prefix: "!",
			Admins: FlexibleStringSlice{},
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
			Telegram: TelegramConfig{
				Enabled:   false,
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
			Slack: SlackConfig{
				Enabled:   false,
				BotToken:  "",
				AppToken:  "",
				AllowFrom: FlexibleStringSlice{},
			},
			WebSocket: WebSocketConfig{
				Enabled:   false,
				Host:      "127.0.0.1",
				Port:      18793,
				Path:      "/ws",
				AllowFrom: FlexibleStringSlice{},
			},
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    18790,
		},
		RateLimits: RateLimitsConfig{
			CommandsPerMinute: 30,
			Burst:             5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none
// are given) into the process environment. Missing files are ignored and
// variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	existing := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// LoadConfig reads the JSON config at path on top of DefaultConfig, then
// applies PICODICE_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.Channels.Discord.Token == "" {
		if token := strings.TrimSpace(os.Getenv(EnvDiscordToken)); token != "" {
			cfg.Channels.Discord.Token = token
			cfg.Channels.Discord.Enabled = true
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail at runtime.
func (c *Config) Validate() error {
	p := []rune(c.Bot.Prefix)
	if len(p) == 0 || len(p) > 3 {
		return fmt.Errorf("bot.prefix must be 1-3 characters, got %q", c.Bot.Prefix)
	}
	if c.RateLimits.CommandsPerMinute < 0 {
		return fmt.Errorf("rate_limits.commands_per_minute must not be negative")
	}
	return nil
}

// SaveConfig writes cfg as indented JSON, creating parent directories.
func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
