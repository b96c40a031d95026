package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/logger"
)

// Channel is a chat platform connection. Send posts msg publicly to
// msg.ChatID.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
	IsAllowed(senderID string) bool
}

// DirectSender is implemented by channels that can message a user privately.
type DirectSender interface {
	SendDirect(ctx context.Context, userID, content string) error
}

// MessageDeleter is implemented by channels that can remove a chat message.
type MessageDeleter interface {
	DeleteMessage(ctx context.Context, chatID, messageID string) error
}

// MessageLengthProvider reports the longest message a channel accepts, in
// runes.
type MessageLengthProvider interface {
	MaxMessageLength() int
}

type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowList []string
	running   atomic.Bool
}

func NewBaseChannel(name string, bus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       bus,
		allowList: allowList,
	}
}

func (c *BaseChannel) Name() string { return c.name }

func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

func (c *BaseChannel) setRunning(running bool) { c.running.Store(running) }

// IsAllowed reports whether senderID passes the allow list. An empty list
// allows everyone. Sender IDs may be compound "id|username" values and
// allow list entries may name a user as "@username".
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}

	id, user := splitSender(senderID)
	for _, allowed := range c.allowList {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if strings.HasPrefix(allowed, "@") {
			if user != "" && strings.EqualFold(allowed[1:], user) {
				return true
			}
			continue
		}
		allowedID, _ := splitSender(allowed)
		if allowedID == id || allowed == senderID {
			return true
		}
	}
	return false
}

func splitSender(s string) (id, user string) {
	id, user, _ = strings.Cut(s, "|")
	return id, user
}

// HandleMessage publishes an inbound message if the sender is allowed.
// senderID may be the compound "id|username" form so "@username" allow list
// entries can match; only the id part is published. A message ID is
// generated when the platform did not supply one.
func (c *BaseChannel) HandleMessage(senderID, senderName, chatID, messageID, content string, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		logger.DebugCF(c.name, "Message rejected by allowlist", map[string]any{
			"sender_id": senderID,
		})
		return
	}
	senderID, _ = splitSender(senderID)
	if c.bus == nil {
		return
	}
	if messageID == "" {
		messageID = uuid.NewString()
	}

	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		SenderID:   senderID,
		SenderName: senderName,
		ChatID:     chatID,
		MessageID:  messageID,
		Content:    content,
		Metadata:   metadata,
	})
}
