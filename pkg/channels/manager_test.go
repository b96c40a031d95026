package channels

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picodice/pkg/bus"
	"github.com/sipeed/picodice/pkg/metrics"
)

type sent struct {
	kind   string // "chat", "dm" or "delete"
	target string
	text   string
}

type fakeChannel struct {
	*BaseChannel
	mu      sync.Mutex
	log     []sent
	maxLen  int
	sendErr error
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, nil, nil)}
}

func (f *fakeChannel) Start(context.Context) error { f.setRunning(true); return nil }
func (f *fakeChannel) Stop(context.Context) error  { f.setRunning(false); return nil }

func (f *fakeChannel) record(s sent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, s)
}

func (f *fakeChannel) entries() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.log...)
}

func (f *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.record(sent{kind: "chat", target: msg.ChatID, text: msg.Content})
	return nil
}

func (f *fakeChannel) MaxMessageLength() int { return f.maxLen }

// dmChannel adds direct messages and deletion to fakeChannel.
type dmChannel struct{ *fakeChannel }

func (d dmChannel) SendDirect(_ context.Context, userID, content string) error {
	d.record(sent{kind: "dm", target: userID, text: content})
	return nil
}

func (d dmChannel) DeleteMessage(_ context.Context, chatID, messageID string) error {
	d.record(sent{kind: "delete", target: chatID + "/" + messageID})
	return nil
}

func TestDeliver_Public(t *testing.T) {
	ch := newFakeChannel("test")
	err := deliver(context.Background(), ch, bus.OutboundMessage{ChatID: "c1", Content: "Alice: 4"})
	require.NoError(t, err)
	assert.Equal(t, []sent{{"chat", "c1", "Alice: 4"}}, ch.entries())
}

func TestDeliver_PrivateDirectMessagesAndDelete(t *testing.T) {
	ch := dmChannel{newFakeChannel("test")}
	err := deliver(context.Background(), ch, bus.OutboundMessage{
		ChatID:          "c1",
		Content:         "Alice: 17",
		Private:         true,
		Recipients:      []string{"u1", "u2"},
		DeleteMessageID: "m1",
	})
	require.NoError(t, err)
	assert.Equal(t, []sent{
		{"dm", "u1", "Alice: 17"},
		{"dm", "u2", "Alice: 17"},
		{"delete", "c1/m1", ""},
	}, ch.entries())
}

func TestDeliver_PrivateFallsBackToChat(t *testing.T) {
	ch := newFakeChannel("test")
	err := deliver(context.Background(), ch, bus.OutboundMessage{
		ChatID:          "c1",
		Content:         "Alice: 17",
		Private:         true,
		Recipients:      []string{"u1"},
		DeleteMessageID: "m1",
	})
	require.NoError(t, err)
	assert.Equal(t, []sent{{"chat", "c1", "Alice: 17"}}, ch.entries())
}

func TestDeliver_SplitsLongMessages(t *testing.T) {
	ch := newFakeChannel("test")
	ch.maxLen = 20
	content := strings.Repeat("1, 2, 3 | ", 6) + "4"

	require.NoError(t, deliver(context.Background(), ch, bus.OutboundMessage{ChatID: "c1", Content: content}))
	entries := ch.entries()
	require.Greater(t, len(entries), 1)
	for _, e := range entries {
		assert.LessOrEqual(t, len([]rune(e.text)), 20)
	}
}

func TestDeliver_SendError(t *testing.T) {
	ch := newFakeChannel("test")
	ch.sendErr = errors.New("offline")
	err := deliver(context.Background(), ch, bus.OutboundMessage{ChatID: "c1", Content: "x"})
	assert.EqualError(t, err, "offline")
}

func TestManager_RoutesOutbound(t *testing.T) {
	msgBus := bus.NewMessageBus()
	m := metrics.New(prometheus.NewRegistry())
	mgr, err := NewManager(nil, msgBus, m)
	require.NoError(t, err)

	ch := dmChannel{newFakeChannel("fake")}
	mgr.RegisterChannel("fake", ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, mgr.StartAll(ctx))
	assert.Equal(t, map[string]bool{"fake": true}, mgr.GetStatus())
	assert.Equal(t, []string{"fake"}, mgr.GetEnabledChannels())

	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "unknown", ChatID: "c0", Content: "dropped"})
	msgBus.PublishOutbound(bus.OutboundMessage{Channel: "fake", ChatID: "c1", Content: "Alice: 3"})

	require.Eventually(t, func() bool { return len(ch.entries()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, sent{"chat", "c1", "Alice: 3"}, ch.entries()[0])
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.MessagesTotal.WithLabelValues("fake", "outbound")) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, mgr.StopAll(context.Background()))
	assert.False(t, ch.IsRunning())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ChannelsRunning.WithLabelValues("fake")))

	assert.Equal(t, map[string]bool{"fake": false}, mgr.GetStatus())
}

func TestManager_StopWithoutStart(t *testing.T) {
	mgr, err := NewManager(nil, bus.NewMessageBus(), nil)
	require.NoError(t, err)
	assert.NoError(t, mgr.StopAll(context.Background()))
	assert.NoError(t, mgr.StartAll(context.Background()))
}
