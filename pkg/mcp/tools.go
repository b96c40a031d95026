package mcp

import (
	"context"
	"fmt"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sipeed/picodice/pkg/logger"
	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/roller"
)

// RollInput is the roll tool's argument object.
type RollInput struct {
	User        string   `json:"user,omitempty" jsonschema:"owner whose aliases and history are used"`
	DisplayName string   `json:"display_name,omitempty" jsonschema:"name shown in the result text"`
	Expressions []string `json:"expressions" jsonschema:"dice expressions such as 2d6+1 or saved alias names"`
}

// RollOutput is the structured result of a roll.
type RollOutput struct {
	Text        string   `json:"text"`
	Expressions []string `json:"expressions"`
	Rolls       [][]int  `json:"rolls"`
	Totals      []int    `json:"totals"`
}

type AliasSaveInput struct {
	User        string   `json:"user,omitempty" jsonschema:"alias owner"`
	Name        string   `json:"name" jsonschema:"alias name, case-insensitive"`
	Expressions []string `json:"expressions" jsonschema:"dice expressions stored under the alias"`
}

type AliasNameInput struct {
	User string `json:"user,omitempty" jsonschema:"alias owner"`
	Name string `json:"name" jsonschema:"alias name, case-insensitive"`
}

type UserInput struct {
	User        string `json:"user,omitempty" jsonschema:"owner to look up"`
	DisplayName string `json:"display_name,omitempty" jsonschema:"name shown in the result text"`
}

// MessageOutput carries the same text the chat commands reply with.
type MessageOutput struct {
	Text string `json:"text"`
}

type AliasEntry struct {
	Name        string   `json:"name"`
	Expressions []string `json:"expressions"`
}

type AliasListOutput struct {
	Text    string       `json:"text"`
	Aliases []AliasEntry `json:"aliases"`
}

type HistoryEntry struct {
	Index    int     `json:"index"`
	Rolls    [][]int `json:"rolls"`
	RolledAt string  `json:"rolled_at"`
}

type HistoryOutput struct {
	Text    string         `json:"text"`
	Entries []HistoryEntry `json:"entries"`
}

func rollTool() *sdkmcp.Tool {
	return &sdkmcp.Tool{
		Name:        "roll",
		Description: "Rolls one or more sets of dice (XdY+Z) or saved aliases and records the result in the user's history",
	}
}

func aliasSaveTool() *sdkmcp.Tool {
	return &sdkmcp.Tool{
		Name:        "alias_save",
		Description: "Saves a named list of dice expressions for a user, replacing any alias with the same name",
	}
}

func aliasListTool() *sdkmcp.Tool {
	return &sdkmcp.Tool{
		Name:        "alias_list",
		Description: "Lists a user's saved aliases",
	}
}

func aliasDeleteTool() *sdkmcp.Tool {
	return &sdkmcp.Tool{
		Name:        "alias_delete",
		Description: "Deletes one of a user's aliases",
	}
}

func historyTool() *sdkmcp.Tool {
	return &sdkmcp.Tool{
		Name:        "history",
		Description: "Returns a user's roll history, oldest first",
	}
}

type tools struct {
	roller  *roller.Roller
	metrics *metrics.Metrics
}

func (t *tools) roll(_ context.Context, _ *sdkmcp.CallToolRequest, in RollInput) (*sdkmcp.CallToolResult, RollOutput, error) {
	owner := ownerOf(in.User)
	res, err := t.roller.Roll(owner, in.Expressions, roller.Delivery{})
	if err != nil {
		t.metrics.ObserveRollError(roller.ErrorKind(err))
		if msg, ok := roller.Describe(err); ok {
			return nil, RollOutput{}, &UserError{Message: msg}
		}
		logger.ErrorCF("mcp", "Roll failed", map[string]any{"user": owner, "error": err.Error()})
		return nil, RollOutput{}, fmt.Errorf("roll failed: %w", err)
	}
	t.metrics.ObserveRoll(false, res.Batch.Count())
	t.metrics.ObserveCommand("roll", "ok")

	out := RollOutput{
		Text:        roller.FormatRoll(displayNameOf(in.DisplayName, userOf(in.User)), res.Batch),
		Expressions: make([]string, len(res.Expressions)),
		Rolls:       make([][]int, len(res.Batch)),
		Totals:      make([]int, len(res.Batch)),
	}
	for i, expr := range res.Expressions {
		out.Expressions[i] = expr.String()
	}
	for i, set := range res.Batch {
		out.Rolls[i] = append([]int{}, set...)
		out.Totals[i] = set.Total()
	}
	return nil, out, nil
}

func (t *tools) aliasSave(_ context.Context, _ *sdkmcp.CallToolRequest, in AliasSaveInput) (*sdkmcp.CallToolResult, MessageOutput, error) {
	if in.Name == "" || len(in.Expressions) == 0 {
		return nil, MessageOutput{}, &UserError{Message: "Please provide an alias name and at least one dice expression."}
	}
	if err := t.roller.SaveAlias(ownerOf(in.User), in.Name, in.Expressions); err != nil {
		return nil, MessageOutput{}, fmt.Errorf("save alias: %w", err)
	}
	t.metrics.ObserveCommand("alias", "ok")
	return nil, MessageOutput{Text: fmt.Sprintf("Alias '%s' saved.", in.Name)}, nil
}

func (t *tools) aliasList(_ context.Context, _ *sdkmcp.CallToolRequest, in UserInput) (*sdkmcp.CallToolResult, AliasListOutput, error) {
	entries := t.roller.ListAliases(ownerOf(in.User))
	out := AliasListOutput{
		Text:    roller.FormatAliases(entries),
		Aliases: make([]AliasEntry, len(entries)),
	}
	for i, e := range entries {
		out.Aliases[i] = AliasEntry{Name: e.Name, Expressions: append([]string{}, e.Expressions...)}
	}
	t.metrics.ObserveCommand("alias", "ok")
	return nil, out, nil
}

func (t *tools) aliasDelete(_ context.Context, _ *sdkmcp.CallToolRequest, in AliasNameInput) (*sdkmcp.CallToolResult, MessageOutput, error) {
	if in.Name == "" {
		return nil, MessageOutput{}, &UserError{Message: "Please provide an alias name to delete."}
	}
	if err := t.roller.DeleteAlias(ownerOf(in.User), in.Name); err != nil {
		if isAliasNotFound(err) {
			return nil, MessageOutput{}, &UserError{Message: fmt.Sprintf("No alias named '%s' found.", in.Name)}
		}
		return nil, MessageOutput{}, fmt.Errorf("delete alias: %w", err)
	}
	t.metrics.ObserveCommand("alias", "ok")
	return nil, MessageOutput{Text: fmt.Sprintf("Alias '%s' deleted.", in.Name)}, nil
}

func (t *tools) history(_ context.Context, _ *sdkmcp.CallToolRequest, in UserInput) (*sdkmcp.CallToolResult, HistoryOutput, error) {
	owner := ownerOf(in.User)
	records := t.roller.History(owner)
	out := HistoryOutput{
		Text:    roller.FormatHistory(displayNameOf(in.DisplayName, userOf(in.User)), records),
		Entries: make([]HistoryEntry, len(records)),
	}
	for i, rec := range records {
		rolls := make([][]int, len(rec.Batch))
		for j, set := range rec.Batch {
			rolls[j] = append([]int{}, set...)
		}
		entry := HistoryEntry{Index: i + 1, Rolls: rolls}
		if !rec.RolledAt.IsZero() {
			entry.RolledAt = rec.RolledAt.UTC().Format(time.RFC3339)
		}
		out.Entries[i] = entry
	}
	t.metrics.ObserveCommand("history", "ok")
	return nil, out, nil
}
