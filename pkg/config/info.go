package config

// GetAllChannelNames returns all channel keys available in ChannelsConfig.
func GetAllChannelNames() []string {
	return []string{"discord", "telegram", "slack", "websocket"}
}

// GetEnabledChannels returns the channels switched on in the config. Slack
// counts only when both tokens are present, matching what the channel
// manager will actually start.
func GetEnabledChannels(c *Config) []string {
	var res []string
	if c == nil {
		return res
	}
	if c.Channels.Discord.Enabled && c.Channels.Discord.Token != "" {
		res = append(res, "discord")
	}
	if c.Channels.Telegram.Enabled && c.Channels.Telegram.Token != "" {
		res = append(res, "telegram")
	}
	if c.Channels.Slack.Enabled && c.Channels.Slack.BotToken != "" && c.Channels.Slack.AppToken != "" {
		res = append(res, "slack")
	}
	if c.Channels.WebSocket.Enabled {
		res = append(res, "websocket")
	}
	return res
}
