// Package dice parses dice notation and rolls the resulting expressions.
package dice

import (
	"errors"
	"strconv"
	"strings"
)

const (
	// MaxRolls is the largest number of dice a single expression may roll.
	MaxRolls = 100
	// MaxSides is the largest die an expression may roll.
	MaxSides = 1000
)

var (
	// ErrInvalidFormat indicates text that does not match XdY+Z notation.
	ErrInvalidFormat = errors.New("invalid dice format")

	// ErrLimitExceeded indicates an expression outside the roll or side limits.
	ErrLimitExceeded = errors.New("dice limit exceeded")

	// ErrNoExpressions indicates a roll request with nothing to roll.
	ErrNoExpressions = errors.New("at least one dice expression must be provided")
)

// Expression is a parsed request to roll Rolls dice of Sides faces,
// adding Modifier to every individual result.
type Expression struct {
	Rolls    int
	Sides    int
	Modifier int
}

// String renders the expression in canonical notation, e.g. "3d6+2".
func (e Expression) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(e.Rolls))
	b.WriteByte('d')
	b.WriteString(strconv.Itoa(e.Sides))
	if e.Modifier > 0 {
		b.WriteByte('+')
	}
	if e.Modifier != 0 {
		b.WriteString(strconv.Itoa(e.Modifier))
	}
	return b.String()
}

// RollSet holds the outcomes of one expression in draw order.
type RollSet []int

// Batch holds one RollSet per expression evaluated in a single roll.
type Batch []RollSet

// Total sums every value in the roll set.
func (s RollSet) Total() int {
	total := 0
	for _, v := range s {
		total += v
	}
	return total
}

func (s RollSet) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// String renders the batch as "a, b | c", one segment per roll set.
func (b Batch) String() string {
	parts := make([]string, len(b))
	for i, set := range b {
		parts[i] = set.String()
	}
	return strings.Join(parts, " | ")
}

// Clone returns a deep copy of the batch.
func (b Batch) Clone() Batch {
	if b == nil {
		return nil
	}
	out := make(Batch, len(b))
	for i, set := range b {
		out[i] = append(RollSet(nil), set...)
	}
	return out
}

// Count returns the number of dice rolled across the batch.
func (b Batch) Count() int {
	n := 0
	for _, set := range b {
		n += len(set)
	}
	return n
}
