package roller

import "strings"

// PrivateFlag requests that results be sent privately.
const PrivateFlag = "--private"

// Args is the result of splitting raw roll arguments into dice tokens and
// delivery options.
type Args struct {
	Tokens  []string
	Private bool
	// Mention is the identity of the first mentioned user, if any.
	Mention string
}

// Delivery returns the delivery options carried by the arguments.
func (a Args) Delivery() Delivery {
	return Delivery{Private: a.Private, ExtraRecipient: a.Mention}
}

// Partition separates the --private flag and the first user mention from
// the dice tokens in a single pass. Bare "@name" tokens count as mentions
// only when bareNames is set; on platforms that encode mentions as <@id>
// markup they stay dice tokens. The input slice is not modified.
func Partition(raw []string, bareNames bool) Args {
	out := Args{Tokens: make([]string, 0, len(raw))}
	mentionSeen := false
	for _, tok := range raw {
		if tok == PrivateFlag {
			out.Private = true
			continue
		}
		if !mentionSeen {
			if id, ok := ParseMention(tok, bareNames); ok {
				out.Mention = id
				mentionSeen = true
				continue
			}
		}
		out.Tokens = append(out.Tokens, tok)
	}
	return out
}

// ParseMention recognizes user mention tokens in the forms used by the
// supported platforms: <@id>, <@!id>, <@id|name> and, with bareNames,
// @name. Role and channel mentions are not user mentions.
func ParseMention(tok string, bareNames bool) (string, bool) {
	if strings.HasPrefix(tok, "<@") && strings.HasSuffix(tok, ">") {
		id := tok[2 : len(tok)-1]
		if strings.HasPrefix(id, "&") {
			return "", false
		}
		id = strings.TrimPrefix(id, "!")
		if i := strings.IndexByte(id, '|'); i >= 0 {
			id = id[:i]
		}
		if id == "" {
			return "", false
		}
		return id, true
	}
	if bareNames && len(tok) > 1 && tok[0] == '@' {
		return tok[1:], true
	}
	return "", false
}
