package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/config"
	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/utils"
)

const telegramMaxMessageLength = 4096

func init() {
	RegisterFactory("telegram", func(cfg *config.Config, b *bus.MessageBus) (Channel, error) {
		return NewTelegramChannel(cfg.Channels.Telegram, b)
	})
}

type TelegramChannel struct {
	*BaseChannel
	bot *telego.Bot
	// usernames maps lower-cased usernames seen in chats to user IDs so
	// "@name" mentions can be messaged directly.
	usernames sync.Map
}

func NewTelegramChannel(cfg config.TelegramConfig, bus *bus.MessageBus) (*TelegramChannel, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", bus, cfg.AllowFrom),
		bot:         bot,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.InfoC("telegram", "Updates channel closed")
					c.setRunning(false)
					return
				}
				if update.Message != nil {
					c.handleMessage(ctx, update.Message)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	logger.InfoC("telegram", "Stopping Telegram bot...")
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) MaxMessageLength() int { return telegramMaxMessageLength }

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	if msg.Content == "" {
		return nil
	}
	return c.sendText(ctx, chatID, msg.Content)
}

// SendDirect messages a user privately. userID is a numeric Telegram user
// ID or a username the bot has seen before. Telegram only delivers the
// message if the user has started a conversation with the bot.
func (c *TelegramChannel) SendDirect(ctx context.Context, userID, content string) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}
	id, err := c.resolveUser(userID)
	if err != nil {
		return err
	}
	return c.sendText(ctx, id, content)
}

func (c *TelegramChannel) DeleteMessage(ctx context.Context, chatID, messageID string) error {
	cid, err := parseChatID(chatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}
	mid, err := strconv.Atoi(messageID)
	if err != nil {
		return fmt.Errorf("invalid message ID %q: %w", messageID, err)
	}
	if err := c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(cid),
		MessageID: mid,
	}); err != nil {
		return fmt.Errorf("failed to delete telegram message: %w", err)
	}
	return nil
}

func (c *TelegramChannel) sendText(ctx context.Context, chatID int64, content string) error {
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), content)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (c *TelegramChannel) resolveUser(user string) (int64, error) {
	if id, err := strconv.ParseInt(user, 10, 64); err == nil {
		return id, nil
	}
	if v, ok := c.usernames.Load(strings.ToLower(strings.TrimPrefix(user, "@"))); ok {
		return v.(int64), nil
	}
	return 0, fmt.Errorf("unknown telegram user %q", user)
}

func (c *TelegramChannel) rememberUser(u *telego.User) {
	if u != nil && u.Username != "" {
		c.usernames.Store(strings.ToLower(u.Username), u.ID)
	}
}

func (c *TelegramChannel) handleMessage(ctx context.Context, message *telego.Message) {
	user := message.From
	if user == nil || user.IsBot || message.Text == "" {
		return
	}

	userID := strconv.FormatInt(user.ID, 10)
	senderID := userID
	if user.Username != "" {
		senderID = userID + "|" + user.Username
	}

	if !c.IsAllowed(senderID) {
		logger.DebugCF("telegram", "Message rejected by allowlist", map[string]any{
			"user_id":  userID,
			"username": user.Username,
		})
		return
	}

	c.rememberUser(user)
	for _, e := range message.Entities {
		c.rememberUser(e.User)
	}

	isDM := message.Chat.Type == "private"
	isAdmin := false
	if !isDM {
		isAdmin = c.isChatAdmin(ctx, message.Chat.ID, user.ID)
	}

	content := expandTextMentions(message.Text, message.Entities)
	displayName := telegramDisplayName(user)

	logger.DebugCF("telegram", "Received message", map[string]any{
		"sender_name": displayName,
		"sender_id":   userID,
		"preview":     utils.Truncate(content, 50),
	})

	metadata := map[string]string{
		"username": user.Username,
		"is_dm":    strconv.FormatBool(isDM),
		"is_admin": strconv.FormatBool(isAdmin),
	}

	c.HandleMessage(senderID, displayName, strconv.FormatInt(message.Chat.ID, 10),
		strconv.Itoa(message.MessageID), content, metadata)
}

func (c *TelegramChannel) isChatAdmin(ctx context.Context, chatID, userID int64) bool {
	member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(chatID),
		UserID: userID,
	})
	if err != nil {
		logger.WarnCF("telegram", "Failed to get chat member", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		return false
	}
	switch member.MemberStatus() {
	case "creator", "administrator":
		return true
	}
	return false
}

// expandTextMentions replaces text_mention entities, which mention users
// that have no username, with <@id> tokens. Entity offsets are in UTF-16
// code units.
func expandTextMentions(text string, entities []telego.MessageEntity) string {
	var mentions []telego.MessageEntity
	for _, e := range entities {
		if e.Type == "text_mention" && e.User != nil {
			mentions = append(mentions, e)
		}
	}
	if len(mentions) == 0 {
		return text
	}
	sort.Slice(mentions, func(i, j int) bool { return mentions[i].Offset > mentions[j].Offset })

	units := utf16.Encode([]rune(text))
	for _, e := range mentions {
		if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
			continue
		}
		token := utf16.Encode([]rune(fmt.Sprintf("<@%d>", e.User.ID)))
		tail := append(token, units[e.Offset+e.Length:]...)
		units = append(units[:e.Offset], tail...)
	}
	return string(utf16.Decode(units))
}

func telegramDisplayName(u *telego.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

func parseChatID(chatIDStr string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(chatIDStr, "%d", &id)
	return id, err
}
