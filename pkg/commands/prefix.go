package commands

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	DefaultPrefix  = "!"
	MaxPrefixRunes = 3
)

var (
	ErrPrefixTooLong = errors.New("command prefix should be no more than 3 characters")
	ErrPrefixEmpty   = errors.New("command prefix must not be empty")
)

// Prefix is the process-wide command prefix. It can be changed at runtime
// and is safe for concurrent use.
type Prefix struct {
	mu    sync.RWMutex
	value string
}

func NewPrefix(initial string) *Prefix {
	p := &Prefix{value: DefaultPrefix}
	if err := p.Set(initial); err != nil {
		p.value = DefaultPrefix
	}
	return p
}

func (p *Prefix) Get() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set replaces the prefix. Prefixes longer than MaxPrefixRunes characters
// are rejected.
func (p *Prefix) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrPrefixEmpty
	}
	if utf8.RuneCountInString(value) > MaxPrefixRunes {
		return ErrPrefixTooLong
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = value
	return nil
}
