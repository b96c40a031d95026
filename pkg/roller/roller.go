// Package roller ties dice parsing, alias expansion, evaluation and history
// together for a single command invocation.
package roller

import (
	"fmt"

	"github.com/sipeed/picodice/pkg/alias"
	"github.com/sipeed/picodice/pkg/dice"
	"github.com/sipeed/picodice/pkg/history"
)

// TokenError reports the argument that failed to parse. Alias is set when
// the failing expression came from expanding a saved alias.
type TokenError struct {
	Token      string
	Alias      string
	Expression string
	Err        error
}

func (e *TokenError) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("alias %q expression %q: %v", e.Alias, e.Expression, e.Err)
	}
	return fmt.Sprintf("token %q: %v", e.Token, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// Delivery describes how the caller wants results delivered.
type Delivery struct {
	Private        bool
	ExtraRecipient string
	// Self is the platform address of the caller for private results.
	// It defaults to the owner.
	Self string
}

// Result is a successful roll plus the instructions for the sender.
type Result struct {
	Batch dice.Batch
	// Expressions are the flattened expressions that were rolled.
	Expressions []dice.Expression
	Private     bool
	// Recipients lists who must receive a private result, owner first.
	Recipients []string
	// DeleteInvoking asks the sender to remove the message that
	// triggered the roll.
	DeleteInvoking bool
}

// Roller is the command facade over the dice core and per-owner stores.
type Roller struct {
	aliases *alias.Store
	history *history.Store
	eval    *dice.Evaluator
}

func New(aliases *alias.Store, hist *history.Store, eval *dice.Evaluator) *Roller {
	if aliases == nil {
		aliases = alias.NewStore()
	}
	if hist == nil {
		hist = history.NewStore()
	}
	if eval == nil {
		eval = dice.NewEvaluator()
	}
	return &Roller{aliases: aliases, history: hist, eval: eval}
}

// Resolve expands tokens into expressions, substituting aliases in place.
// It stops at the first token that cannot be parsed.
func (r *Roller) Resolve(owner string, tokens []string) ([]dice.Expression, error) {
	exprs := make([]dice.Expression, 0, len(tokens))
	for _, tok := range tokens {
		if saved, ok := r.aliases.Lookup(owner, tok); ok {
			for _, raw := range saved {
				expr, err := dice.Parse(raw)
				if err != nil {
					return nil, &TokenError{Token: tok, Alias: tok, Expression: raw, Err: err}
				}
				exprs = append(exprs, expr)
			}
			continue
		}

		expr, err := dice.Parse(tok)
		if err != nil {
			return nil, &TokenError{Token: tok, Expression: tok, Err: err}
		}
		exprs = append(exprs, expr)
	}
	return exprs, nil
}

// Roll resolves tokens, evaluates them as one batch and records the batch
// in owner's history. Nothing is recorded when any step fails.
func (r *Roller) Roll(owner string, tokens []string, d Delivery) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, dice.ErrNoExpressions
	}

	exprs, err := r.Resolve(owner, tokens)
	if err != nil {
		return Result{}, err
	}

	batch, err := r.eval.Evaluate(exprs)
	if err != nil {
		return Result{}, err
	}

	r.history.Append(owner, batch)

	res := Result{Batch: batch, Expressions: exprs, Private: d.Private}
	if d.Private {
		self := d.Self
		if self == "" {
			self = owner
		}
		res.Recipients = []string{self}
		if d.ExtraRecipient != "" && d.ExtraRecipient != self {
			res.Recipients = append(res.Recipients, d.ExtraRecipient)
		}
		res.DeleteInvoking = true
	}
	return res, nil
}

func (r *Roller) SaveAlias(owner, name string, expressions []string) error {
	return r.aliases.Save(owner, name, expressions)
}

func (r *Roller) ListAliases(owner string) []alias.Entry {
	return r.aliases.List(owner)
}

func (r *Roller) DeleteAlias(owner, name string) error {
	return r.aliases.Delete(owner, name)
}

func (r *Roller) History(owner string) []history.Record {
	return r.history.All(owner)
}
