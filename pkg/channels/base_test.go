package channels

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picodice/pkg/bus"
)

func TestBaseChannelIsAllowed(t *testing.T) {
	tests := []struct {
		name      string
		allowList []string
		senderID  string
		want      bool
	}{
		{"empty allowlist allows all", nil, "anyone", true},
		{"compound sender matches numeric allowlist", []string{"123456"}, "123456|alice", true},
		{"compound sender matches username allowlist", []string{"@alice"}, "123456|alice", true},
		{"username match ignores case", []string{"@Alice"}, "123456|alice", true},
		{"numeric sender matches legacy compound allowlist", []string{"123456|alice"}, "123456", true},
		{"non matching sender is denied", []string{"123456"}, "654321|bob", false},
		{"username entry needs a username", []string{"@alice"}, "123456", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewBaseChannel("test", nil, tt.allowList)
			assert.Equal(t, tt.want, ch.IsAllowed(tt.senderID))
		})
	}
}

func TestBaseChannelHandleMessageAllowList(t *testing.T) {
	msgBus := bus.NewMessageBus()
	ch := NewBaseChannel("test", msgBus, []string{"allowed"})

	ch.HandleMessage("blocked", "Blocked", "chat-1", "m0", "denied", nil)

	deniedCtx, deniedCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer deniedCancel()
	_, ok := msgBus.ConsumeInbound(deniedCtx)
	require.False(t, ok, "denied sender must be dropped")

	ch.HandleMessage("allowed", "Alice", "chat-1", "m1", "!roll 1d6", map[string]string{"is_admin": "true"})

	allowedCtx, allowedCancel := context.WithTimeout(context.Background(), time.Second)
	defer allowedCancel()
	msg, ok := msgBus.ConsumeInbound(allowedCtx)
	require.True(t, ok)
	assert.Equal(t, bus.InboundMessage{
		Channel:    "test",
		SenderID:   "allowed",
		SenderName: "Alice",
		ChatID:     "chat-1",
		MessageID:  "m1",
		Content:    "!roll 1d6",
		Metadata:   map[string]string{"is_admin": "true"},
	}, msg)
	assert.True(t, msg.IsAdmin())
}

func TestBaseChannelHandleMessageCompoundSender(t *testing.T) {
	msgBus := bus.NewMessageBus()
	ch := NewBaseChannel("test", msgBus, []string{"@alice"})

	ch.HandleMessage("123456|alice", "Alice", "chat-1", "m1", "!roll 1d6", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "123456", msg.SenderID, "only the id part is published")
}

func TestBaseChannelHandleMessageGeneratesID(t *testing.T) {
	msgBus := bus.NewMessageBus()
	ch := NewBaseChannel("test", msgBus, nil)

	ch.HandleMessage("u1", "", "chat-1", "", "!history", nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := msgBus.ConsumeInbound(ctx)
	require.True(t, ok)
	_, err := uuid.Parse(msg.MessageID)
	assert.NoError(t, err)
}

func TestBaseChannelRunningState(t *testing.T) {
	ch := NewBaseChannel("test", nil, nil)
	assert.Equal(t, "test", ch.Name())
	assert.False(t, ch.IsRunning())
	ch.setRunning(true)
	assert.True(t, ch.IsRunning())
}
