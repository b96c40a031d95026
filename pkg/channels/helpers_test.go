package channels

import (
	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
)

func discordConfigForTest() config.DiscordConfig {
	return config.DiscordConfig{Enabled: true, Token: "test-token"}
}

func busMessage(chatID, content string) bus.OutboundMessage {
	return bus.OutboundMessage{ChatID: chatID, Content: content}
}
