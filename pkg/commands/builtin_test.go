package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picodice/pkg/dice"
	"github.com/sipeed/picodice/pkg/roller"
)

// fixedSource always rolls the highest face.
type fixedSource struct{}

func (fixedSource) IntN(n int) int { return n - 1 }

type harness struct {
	dispatcher *Dispatcher
	prefix     *Prefix
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	prefix := NewPrefix("!")
	r := roller.New(nil, nil, dice.NewEvaluator(dice.WithSource(fixedSource{})))
	defs := BuiltinDefinitions(Deps{Roller: r, Prefix: prefix})
	return &harness{
		dispatcher: NewDispatcher(NewRegistry(defs), prefix, opts...),
		prefix:     prefix,
	}
}

// dispatch sends text as user u1 on channel and returns the result and the
// replies it produced.
func (h *harness) dispatch(t *testing.T, channel, text string) (Result, []Reply) {
	t.Helper()
	req := Request{
		Channel:    channel,
		ChatID:     "c1",
		SenderID:   "u1",
		SenderName: "Alice",
		MessageID:  "m1",
		Text:       text,
		IsAdmin:    true,
	}
	replies := captureReplies(&req)
	res := h.dispatcher.Dispatch(context.Background(), req)
	require.True(t, res.Matched, "text %q", text)
	return res, *replies
}

// send dispatches text as Discord user u1 and expects it to succeed.
func (h *harness) send(t *testing.T, text string) []Reply {
	t.Helper()
	res, replies := h.dispatch(t, "discord", text)
	require.NoError(t, res.Err)
	return replies
}

func (h *harness) sendText(t *testing.T, text string) string {
	t.Helper()
	replies := h.send(t, text)
	require.Len(t, replies, 1)
	return replies[0].Text
}

func TestBuiltinDefinitions_Names(t *testing.T) {
	defs := BuiltinDefinitions(Deps{})
	names := map[string]bool{}
	for _, d := range defs {
		names[d.Name] = true
		assert.NotNil(t, d.Handler, d.Name)
	}
	for _, want := range []string{"roll", "alias", "history", "prefix", "help"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestRollCommand_Public(t *testing.T) {
	h := newHarness(t)

	replies := h.send(t, "!roll 2d6+2 1d4")
	require.Len(t, replies, 1)
	assert.Equal(t, Reply{Text: "Alice: 8, 8 | 4"}, replies[0])
}

func TestRollCommand_Private(t *testing.T) {
	h := newHarness(t)

	replies := h.send(t, "!roll 1d20 --private <@!42>")
	require.Len(t, replies, 1)
	assert.Equal(t, Reply{
		Text:            "Alice: 20",
		Private:         true,
		Recipients:      []string{"u1", "42"},
		DeleteMessageID: "m1",
	}, replies[0])
}

func TestRollCommand_BareNameMentions(t *testing.T) {
	h := newHarness(t)

	res, replies := h.dispatch(t, "discord", "!roll 1d20 --private @here")
	require.NoError(t, res.Err)
	require.Len(t, replies, 1)
	assert.Equal(t, Reply{
		Text: "Invalid dice format: @here. Please use the format XdY+Z, where X is the number of dice, Y is the number of sides, and Z is an optional modifier.",
	}, replies[0])

	res, replies = h.dispatch(t, "telegram", "!roll 1d20 --private @gm")
	require.NoError(t, res.Err)
	require.Len(t, replies, 1)
	assert.Equal(t, Reply{
		Text:            "Alice: 20",
		Private:         true,
		Recipients:      []string{"u1", "gm"},
		DeleteMessageID: "m1",
	}, replies[0])
}

func TestRollCommand_UserErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		text string
		want string
	}{
		{"!roll", "Please provide at least one dice expression or alias."},
		{"!roll --private", "Please provide at least one dice expression or alias."},
		{"!roll banana", "Invalid dice format: banana. Please use the format XdY+Z, where X is the number of dice, Y is the number of sides, and Z is an optional modifier."},
		{"!roll 101d6", "The maximum number of rolls is 100, and the maximum number of sides is 1000."},
		{"!roll 1d1001", "The maximum number of rolls is 100, and the maximum number of sides is 1000."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.sendText(t, tt.text), tt.text)
	}
	assert.Equal(t, "You have no previous rolls.", h.sendText(t, "!history"))
}

func TestAliasCommand(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "You have no saved aliases.", h.sendText(t, "!alias list"))
	assert.Equal(t, "Alias 'Stealth' saved.", h.sendText(t, "!alias SAVE Stealth 3d6+2 1d4"))
	assert.Equal(t, "Alias 'bad' saved.", h.sendText(t, "!alias save bad x"))
	assert.Equal(t, "Your aliases:\nstealth: 3d6+2 1d4\nbad: x", h.sendText(t, "!alias list"))

	assert.Equal(t, "Alice: 8, 8, 8 | 4", h.sendText(t, "!roll STEALTH"))
	assert.Equal(t, "Invalid dice format in alias 'bad': x. Please update your alias.", h.sendText(t, "!roll bad"))

	assert.Equal(t, "Alias 'bad' deleted.", h.sendText(t, "!alias delete BAD"))
	assert.Equal(t, "No alias named 'bad' found.", h.sendText(t, "!alias delete bad"))
}

func TestAliasCommand_InvalidAction(t *testing.T) {
	h := newHarness(t)

	for _, text := range []string{"!alias", "!alias rename a b"} {
		res, replies := h.dispatch(t, "discord", text)
		assert.ErrorIs(t, res.Err, ErrInvalidAction, text)
		assert.True(t, Reported(res.Err), text)
		assert.Equal(t, []Reply{{Text: "Invalid action. Please use 'save', 'list', or 'delete'."}}, replies, text)
	}
}

func TestAliasCommand_ScopedByChannel(t *testing.T) {
	h := newHarness(t)

	h.send(t, "!alias save secret 1d6")

	_, replies := h.dispatch(t, "websocket", "!alias list")
	assert.Equal(t, []Reply{{Text: "You have no saved aliases."}}, replies)
	_, replies = h.dispatch(t, "discord", "!alias list")
	assert.Equal(t, []Reply{{Text: "Your aliases:\nsecret: 1d6"}}, replies)
}

func TestAliasCommand_UsageMessages(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		text string
		want string
	}{
		{"!alias save", "Please provide an alias name and at least one dice expression."},
		{"!alias save stealth", "Please provide an alias name and at least one dice expression."},
		{"!alias delete", "Please provide an alias name to delete."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.sendText(t, tt.text), tt.text)
	}
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t)

	h.send(t, "!roll 1d6")
	h.send(t, "!roll 2d4 1d8+1")

	assert.Equal(t, "Roll history for Alice:\n1: 6\n2: 4, 4 | 9", h.sendText(t, "!history"))
}

func TestPrefixCommand(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "The command prefix should be no more than 3 characters.", h.sendText(t, "!prefix !!!!"))
	assert.Equal(t, "!", h.prefix.Get())

	assert.Equal(t, "Command prefix changed to '$'.", h.sendText(t, "!prefix $"))
	assert.Equal(t, "$", h.prefix.Get())
	assert.Equal(t, "Alice: 6", h.sendText(t, "$roll 1d6"))
}

func TestHelpCommand(t *testing.T) {
	h := newHarness(t)

	text := h.sendText(t, "!help")
	assert.Contains(t, text, "!roll - Rolls one or more sets of dice")
	assert.Contains(t, text, "Example: !alias save stealth 3d6+2")
	assert.Contains(t, text, "!help - Shows this message.")
}

func TestFormatHelpMessage_Empty(t *testing.T) {
	assert.Equal(t, "No commands available.", FormatHelpMessage("!", nil))
}
