package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sipeed/picodice/pkg/alias"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/roller"
)

// ErrInvalidAction is returned, after the usage reply, when the alias
// command gets no action or an unknown one.
var ErrInvalidAction = errors.New("invalid alias action")

const (
	msgInvalidAction   = "Invalid action. Please use 'save', 'list', or 'delete'."
	msgAliasSaveUsage  = "Please provide an alias name and at least one dice expression."
	msgAliasDeleteName = "Please provide an alias name to delete."
	msgPrefixTooLong   = "The command prefix should be no more than 3 characters."
	msgPrefixUsage     = "Please provide a new command prefix."
)

// Deps are the collaborators the builtin commands operate on.
type Deps struct {
	Roller  *roller.Roller
	Prefix  *Prefix
	Metrics *metrics.Metrics
}

// BuiltinDefinitions returns the dice bot's command set. The help command
// lists every definition returned here that is available on the caller's
// channel.
func BuiltinDefinitions(deps Deps) []Definition {
	if deps.Roller == nil {
		deps.Roller = roller.New(nil, nil, nil)
	}
	if deps.Prefix == nil {
		deps.Prefix = NewPrefix(DefaultPrefix)
	}

	defs := []Definition{
		{
			Name:        "roll",
			Description: "Rolls one or more sets of dice with optional modifiers or aliases, optionally privately.",
			Usage:       "roll 2d6+2 3d8-1 stealth --private @DM",
			Aliases:     []string{"r"},
			Handler:     rollHandler(deps),
		},
		{
			Name:        "alias",
			Description: "Create, list, or delete aliases for dice expressions.",
			Usage:       "alias save stealth 3d6+2; alias list; alias delete stealth",
			Handler:     aliasHandler(deps),
		},
		{
			Name:        "history",
			Description: "Displays the user's dice roll history.",
			Usage:       "history",
			Handler:     historyHandler(deps),
		},
		{
			Name:        "prefix",
			Description: "Change the bot's command prefix.",
			Usage:       "prefix $",
			AdminOnly:   true,
			Handler:     prefixHandler(deps),
		},
	}

	help := Definition{
		Name:        "help",
		Description: "Shows this message.",
		Usage:       "help",
	}
	reg := NewRegistry(append(defs, help))
	help.Handler = func(_ context.Context, req Request) error {
		return reply(req, FormatHelpMessage(deps.Prefix.Get(), reg.ForChannel(req.Channel)))
	}
	return append(defs, help)
}

func rollHandler(deps Deps) Handler {
	return func(_ context.Context, req Request) error {
		args := roller.Partition(req.Args, bareMentions(req.Channel))
		delivery := args.Delivery()
		delivery.Self = req.SenderID
		res, err := deps.Roller.Roll(req.Owner(), args.Tokens, delivery)
		if err != nil {
			deps.Metrics.ObserveRollError(roller.ErrorKind(err))
			if msg, ok := roller.Describe(err); ok {
				return reply(req, msg)
			}
			return err
		}
		deps.Metrics.ObserveRoll(res.Private, res.Batch.Count())

		out := Reply{Text: roller.FormatRoll(req.DisplayName(), res.Batch)}
		if res.Private {
			out.Private = true
			out.Recipients = res.Recipients
			if res.DeleteInvoking {
				out.DeleteMessageID = req.MessageID
			}
		}
		return respond(req, out)
	}
}

// bareMentions reports whether "@name" in roll arguments addresses a user on
// channel. Discord and Slack deliver real mentions as <@id> markup, so there
// a bare "@here" or "@someone" is not a recipient.
func bareMentions(channel string) bool {
	switch channel {
	case "discord", "slack":
		return false
	}
	return true
}

func aliasHandler(deps Deps) Handler {
	return func(_ context.Context, req Request) error {
		if len(req.Args) == 0 {
			return invalidAction(req)
		}
		action, rest := strings.ToLower(req.Args[0]), req.Args[1:]

		switch action {
		case "save":
			if len(rest) < 2 {
				return reply(req, msgAliasSaveUsage)
			}
			if err := deps.Roller.SaveAlias(req.Owner(), rest[0], rest[1:]); err != nil {
				if errors.Is(err, alias.ErrMissingArgument) {
					return reply(req, msgAliasSaveUsage)
				}
				return err
			}
			return reply(req, fmt.Sprintf("Alias '%s' saved.", rest[0]))
		case "list":
			return reply(req, roller.FormatAliases(deps.Roller.ListAliases(req.Owner())))
		case "delete":
			if len(rest) == 0 {
				return reply(req, msgAliasDeleteName)
			}
			if err := deps.Roller.DeleteAlias(req.Owner(), rest[0]); err != nil {
				if errors.Is(err, alias.ErrAliasNotFound) {
					return reply(req, fmt.Sprintf("No alias named '%s' found.", rest[0]))
				}
				return err
			}
			return reply(req, fmt.Sprintf("Alias '%s' deleted.", rest[0]))
		default:
			return invalidAction(req)
		}
	}
}

func invalidAction(req Request) error {
	if err := reply(req, msgInvalidAction); err != nil {
		return err
	}
	return ErrInvalidAction
}

func historyHandler(deps Deps) Handler {
	return func(_ context.Context, req Request) error {
		return reply(req, roller.FormatHistory(req.DisplayName(), deps.Roller.History(req.Owner())))
	}
}

func prefixHandler(deps Deps) Handler {
	return func(_ context.Context, req Request) error {
		if len(req.Args) == 0 {
			return reply(req, msgPrefixUsage)
		}
		next := req.Args[0]
		if err := deps.Prefix.Set(next); err != nil {
			if errors.Is(err, ErrPrefixTooLong) {
				return reply(req, msgPrefixTooLong)
			}
			return reply(req, msgPrefixUsage)
		}
		return reply(req, fmt.Sprintf("Command prefix changed to '%s'.", next))
	}
}

// FormatHelpMessage renders one line per command with its usage example.
func FormatHelpMessage(prefix string, defs []Definition) string {
	if len(defs) == 0 {
		return "No commands available."
	}

	lines := make([]string, 0, len(defs)+1)
	lines = append(lines, "Commands:")
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		line := fmt.Sprintf("%s%s - %s", prefix, def.Name, def.Description)
		if def.Usage != "" && def.Usage != def.Name {
			line += fmt.Sprintf(" Example: %s%s", prefix, def.Usage)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
