package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/utils"
)

const (
	sendTimeout = 10 * time.Second
	// Discord rejects messages over 2000 characters.
	discordMaxMessageLength = 2000
)

func init() {
	RegisterFactory("discord", func(cfg *config.Config, b *bus.MessageBus) (Channel, error) {
		return NewDiscordChannel(cfg.Channels.Discord, b)
	})
}

type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
}

func NewDiscordChannel(cfg config.DiscordConfig, bus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := applyDiscordProxy(session, cfg.Proxy); err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", bus, cfg.AllowFrom),
		session:     session,
	}, nil
}

// applyDiscordProxy routes both REST and gateway traffic through proxyAddr,
// or through the environment's proxy settings when proxyAddr is empty.
func applyDiscordProxy(session *discordgo.Session, proxyAddr string) error {
	proxy := http.ProxyFromEnvironment
	if proxyAddr != "" {
		u, err := url.Parse(proxyAddr)
		if err != nil {
			return fmt.Errorf("invalid discord proxy URL %q: %w", proxyAddr, err)
		}
		proxy = http.ProxyURL(u)
	}

	session.Client = &http.Client{
		Timeout:   20 * time.Second,
		Transport: &http.Transport{Proxy: proxy},
	}
	session.Dialer = &websocket.Dialer{
		Proxy:            proxy,
		HandshakeTimeout: 20 * time.Second,
	}
	return nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})

	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}

	return nil
}

func (c *DiscordChannel) MaxMessageLength() int { return discordMaxMessageLength }

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("channel ID is empty")
	}
	if msg.Content == "" {
		return nil
	}
	return c.sendChunk(ctx, msg.ChatID, msg.Content)
}

// SendDirect opens (or reuses) the DM channel with userID and posts content.
func (c *DiscordChannel) SendDirect(ctx context.Context, userID, content string) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open discord DM with %s: %w", userID, err)
	}
	return c.sendChunk(ctx, dm.ID, content)
}

func (c *DiscordChannel) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	if err := c.session.ChannelMessageDelete(chatID, messageID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx))
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if m.Content == "" {
		return
	}

	senderID := m.Author.ID
	compoundID := senderID + "|" + m.Author.Username
	if !c.IsAllowed(compoundID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": senderID,
		})
		return
	}

	isAdmin := false
	if m.GuildID != "" {
		perms, err := s.UserChannelPermissions(senderID, m.ChannelID)
		if err != nil {
			logger.WarnCF("discord", "Failed to resolve member permissions", map[string]any{
				"user_id": senderID,
				"error":   err.Error(),
			})
		}
		isAdmin = perms&discordgo.PermissionAdministrator != 0
	}

	displayName := discordDisplayName(m.Message)

	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_name": displayName,
		"sender_id":   senderID,
		"preview":     utils.Truncate(m.Content, 50),
	})

	metadata := map[string]string{
		"username":   m.Author.Username,
		"guild_id":   m.GuildID,
		"channel_id": m.ChannelID,
		"is_dm":      strconv.FormatBool(m.GuildID == ""),
		"is_admin":   strconv.FormatBool(isAdmin),
	}

	c.HandleMessage(compoundID, displayName, m.ChannelID, m.ID, m.Content, metadata)
}

// discordDisplayName prefers the server nickname, then the global display
// name, then the username.
func discordDisplayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
