package dice

import (
	"fmt"
	"math"
)

// Evaluator rolls parsed expressions against a random Source.
type Evaluator struct {
	src Source
}

type EvaluatorOption func(*Evaluator)

// WithSource replaces the random source used for draws.
func WithSource(src Source) EvaluatorOption {
	return func(e *Evaluator) {
		if src != nil {
			e.src = src
		}
	}
}

func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{src: DefaultSource()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate rolls every expression and returns one RollSet per expression,
// in order.
//
// All expressions are validated before anything is drawn: if any of them
// asks for more than MaxRolls dice, a die larger than MaxSides, or a
// modifier that would overflow, the whole batch fails with ErrLimitExceeded
// and no values are returned.
func (e *Evaluator) Evaluate(exprs []Expression) (Batch, error) {
	if len(exprs) == 0 {
		return nil, ErrNoExpressions
	}

	for _, expr := range exprs {
		if err := checkLimits(expr); err != nil {
			return nil, err
		}
	}

	batch := make(Batch, 0, len(exprs))
	for _, expr := range exprs {
		set := make(RollSet, expr.Rolls)
		for i := range set {
			set[i] = e.src.IntN(expr.Sides) + 1 + expr.Modifier
		}
		batch = append(batch, set)
	}
	return batch, nil
}

func checkLimits(expr Expression) error {
	if expr.Rolls < 1 || expr.Rolls > MaxRolls {
		return fmt.Errorf("%w: %d dice requested, allowed 1-%d", ErrLimitExceeded, expr.Rolls, MaxRolls)
	}
	if expr.Sides < 1 || expr.Sides > MaxSides {
		return fmt.Errorf("%w: d%d requested, allowed d1-d%d", ErrLimitExceeded, expr.Sides, MaxSides)
	}
	if expr.Modifier > math.MaxInt-expr.Sides || expr.Modifier < math.MinInt+1 {
		return fmt.Errorf("%w: modifier %d out of range", ErrLimitExceeded, expr.Modifier)
	}
	return nil
}
