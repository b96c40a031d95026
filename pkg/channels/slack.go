package channels

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/utils"
)

const slackMaxMessageLength = 4000

func init() {
	RegisterFactory("slack", func(cfg *config.Config, b *bus.MessageBus) (Channel, error) {
		return NewSlackChannel(cfg.Channels.Slack, b)
	})
}

// slackAPI is the subset of *slack.Client the channel uses.
type slackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	OpenConversationContext(ctx context.Context, params *slack.OpenConversationParameters) (*slack.Channel, bool, bool, error)
	DeleteMessageContext(ctx context.Context, channel, messageTimestamp string) (string, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

type slackUser struct {
	name    string
	handle  string
	isAdmin bool
}

// SlackChannel connects through Socket Mode, so no public endpoint is needed.
type SlackChannel struct {
	*BaseChannel
	api       slackAPI
	socket    *socketmode.Client
	botUserID string
	users     sync.Map // user ID -> slackUser
	cancel    context.CancelFunc
	mu        sync.Mutex
}

func NewSlackChannel(cfg config.SlackConfig, bus *bus.MessageBus) (*SlackChannel, error) {
	if cfg.BotToken == "" || cfg.AppToken == "" {
		return nil, fmt.Errorf("slack requires both bot_token and app_token")
	}
	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", bus, cfg.AllowFrom),
		api:         api,
		socket:      socketmode.New(api),
	}, nil
}

func (c *SlackChannel) Start(ctx context.Context) error {
	logger.InfoC("slack", "Starting Slack bot (socket mode)")

	auth, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test failed: %w", err)
	}
	c.botUserID = auth.UserID

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.consumeEvents(runCtx)
	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			logger.ErrorCF("slack", "Socket mode connection ended", map[string]any{
				"error": err.Error(),
			})
		}
		c.setRunning(false)
	}()

	c.setRunning(true)
	logger.InfoCF("slack", "Slack bot connected", map[string]any{
		"user_id": auth.UserID,
		"team":    auth.Team,
	})
	return nil
}

func (c *SlackChannel) Stop(ctx context.Context) error {
	logger.InfoC("slack", "Stopping Slack bot")
	c.setRunning(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return nil
}

func (c *SlackChannel) MaxMessageLength() int { return slackMaxMessageLength }

func (c *SlackChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("slack bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("channel ID is empty")
	}
	return c.post(ctx, msg.ChatID, msg.Content)
}

func (c *SlackChannel) SendDirect(ctx context.Context, userID, content string) error {
	if !c.IsRunning() {
		return fmt.Errorf("slack bot not running")
	}
	ch, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return fmt.Errorf("failed to open slack DM with %s: %w", userID, err)
	}
	return c.post(ctx, ch.ID, content)
}

func (c *SlackChannel) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	if _, _, err := c.api.DeleteMessageContext(ctx, chatID, messageID); err != nil {
		return fmt.Errorf("failed to delete slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) post(ctx context.Context, channelID, content string) error {
	if content == "" {
		return nil
	}
	if _, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(content, false)); err != nil {
		return fmt.Errorf("failed to send slack message: %w", err)
	}
	return nil
}

func (c *SlackChannel) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeConnected:
				logger.DebugC("slack", "Socket mode connected")
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					c.socket.Ack(*evt.Request)
				}
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || apiEvent.Type != slackevents.CallbackEvent {
					continue
				}
				if m, ok := apiEvent.InnerEvent.Data.(*slackevents.MessageEvent); ok {
					c.handleMessage(ctx, m)
				}
			}
		}
	}
}

func (c *SlackChannel) handleMessage(ctx context.Context, m *slackevents.MessageEvent) {
	if m.User == "" || m.BotID != "" || m.SubType != "" || m.Text == "" {
		return
	}
	if m.User == c.botUserID {
		return
	}

	user := c.lookupUser(ctx, m.User)
	compoundID := m.User + "|" + user.handle
	if !c.IsAllowed(compoundID) {
		logger.DebugCF("slack", "Message rejected by allowlist", map[string]any{
			"user_id": m.User,
		})
		return
	}

	logger.DebugCF("slack", "Received message", map[string]any{
		"sender_id": m.User,
		"preview":   utils.Truncate(m.Text, 50),
	})

	metadata := map[string]string{
		"is_dm":    strconv.FormatBool(m.ChannelType == "im"),
		"is_admin": strconv.FormatBool(user.isAdmin),
	}
	c.HandleMessage(compoundID, user.name, m.Channel, m.TimeStamp, m.Text, metadata)
}

// lookupUser returns the cached profile for id, fetching it on first use.
func (c *SlackChannel) lookupUser(ctx context.Context, id string) slackUser {
	if v, ok := c.users.Load(id); ok {
		return v.(slackUser)
	}
	info, err := c.api.GetUserInfoContext(ctx, id)
	if err != nil {
		logger.WarnCF("slack", "Failed to get user info", map[string]any{
			"user_id": id,
			"error":   err.Error(),
		})
		return slackUser{name: id}
	}
	u := slackUser{name: slackDisplayName(info), handle: info.Name, isAdmin: info.IsAdmin || info.IsOwner}
	c.users.Store(id, u)
	return u
}

func slackDisplayName(u *slack.User) string {
	switch {
	case u.Profile.DisplayName != "":
		return u.Profile.DisplayName
	case u.RealName != "":
		return u.RealName
	case u.Name != "":
		return u.Name
	}
	return u.ID
}
