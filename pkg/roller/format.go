package roller

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sipeed/picodice/pkg/alias"
	"github.com/sipeed/picodice/pkg/dice"
	"github.com/sipeed/picodice/pkg/history"
)

const (
	MsgNoTokens      = "Please provide at least one dice expression or alias."
	MsgLimitExceeded = "The maximum number of rolls is 100, and the maximum number of sides is 1000."
	MsgNoAliases     = "You have no saved aliases."
	MsgNoHistory     = "You have no previous rolls."
)

// Describe converts a roll error into the text shown to the user. It
// returns false for errors that are not input errors.
func Describe(err error) (string, bool) {
	var tokErr *TokenError
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &tokErr) && tokErr.Alias != "":
		return fmt.Sprintf("Invalid dice format in alias '%s': %s. Please update your alias.", tokErr.Alias, tokErr.Expression), true
	case errors.As(err, &tokErr):
		return fmt.Sprintf("Invalid dice format: %s. Please use the format XdY+Z, where X is the number of dice, Y is the number of sides, and Z is an optional modifier.", tokErr.Token), true
	case errors.Is(err, dice.ErrLimitExceeded):
		return MsgLimitExceeded, true
	case errors.Is(err, dice.ErrNoExpressions):
		return MsgNoTokens, true
	}
	return "", false
}

// FormatRoll renders a roll result attributed to displayName.
func FormatRoll(displayName string, batch dice.Batch) string {
	return fmt.Sprintf("%s: %s", displayName, batch.String())
}

// FormatAliases renders an alias listing, one alias per line.
func FormatAliases(entries []alias.Entry) string {
	if len(entries) == 0 {
		return MsgNoAliases
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = fmt.Sprintf("%s: %s", e.Name, strings.Join(e.Expressions, " "))
	}
	return "Your aliases:\n" + strings.Join(lines, "\n")
}

// FormatHistory renders an owner's roll history with 1-based indices.
func FormatHistory(displayName string, records []history.Record) string {
	if len(records) == 0 {
		return MsgNoHistory
	}
	lines := make([]string, len(records))
	for i, rec := range records {
		lines[i] = fmt.Sprintf("%d: %s", i+1, rec.Batch.String())
	}
	return fmt.Sprintf("Roll history for %s:\n%s", displayName, strings.Join(lines, "\n"))
}

// ErrorKind classifies a roll error for metrics labels.
func ErrorKind(err error) string {
	var tokErr *TokenError
	switch {
	case errors.As(err, &tokErr):
		return "invalid_format"
	case errors.Is(err, dice.ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, dice.ErrNoExpressions):
		return "no_expressions"
	}
	return "internal"
}
