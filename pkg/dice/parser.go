package dice

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errMissingDie   = errors.New("expected 'd'")
	errMissingSides = errors.New("expected number of sides")
	errOutOfRange   = errors.New("number out of range")
)

// Parse reads one dice expression of the form [X]dY[+Z|-Z].
//
// The count defaults to 1 and the modifier to 0. The die marker is
// case-insensitive and a modifier always carries an explicit sign. Parsing
// stops after the first complete expression: any text following it is
// ignored, so "3d6xyz" parses as 3d6 and "3d6+" as 3d6. Parse does not
// enforce the roll or side limits; Evaluator does.
func Parse(text string) (Expression, error) {
	p := &parser{src: strings.TrimSpace(text)}
	expr, err := p.expression()
	if err != nil {
		return Expression{}, fmt.Errorf("%w %q: %v", ErrInvalidFormat, text, err)
	}
	return expr, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) expression() (Expression, error) {
	expr := Expression{Rolls: 1}

	if lit := p.digits(); lit != "" {
		n, err := atoi(lit)
		if err != nil {
			return Expression{}, err
		}
		expr.Rolls = n
	}

	if !p.accept('d', 'D') {
		return Expression{}, errMissingDie
	}

	lit := p.digits()
	if lit == "" {
		return Expression{}, errMissingSides
	}
	n, err := atoi(lit)
	if err != nil {
		return Expression{}, err
	}
	expr.Sides = n

	mod, err := p.modifier()
	if err != nil {
		return Expression{}, err
	}
	expr.Modifier = mod

	return expr, nil
}

// modifier consumes a signed integer when one follows. A sign without
// digits is left unconsumed and treated as trailing text.
func (p *parser) modifier() (int, error) {
	if p.pos >= len(p.src) {
		return 0, nil
	}
	sign := p.src[p.pos]
	if sign != '+' && sign != '-' {
		return 0, nil
	}

	start := p.pos
	p.pos++
	lit := p.digits()
	if lit == "" {
		p.pos = start
		return 0, nil
	}

	n, err := atoi(string(sign) + lit)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (p *parser) digits() string {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) accept(chars ...byte) bool {
	if p.pos >= len(p.src) {
		return false
	}
	for _, c := range chars {
		if p.src[p.pos] == c {
			p.pos++
			return true
		}
	}
	return false
}

func atoi(lit string) (int, error) {
	n, err := strconv.Atoi(lit)
	if err != nil {
		return 0, errOutOfRange
	}
	return n, nil
}
