// Package alias keeps per-owner named shortcuts for dice expressions.
package alias

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrMissingArgument = errors.New("alias name and at least one expression are required")
	ErrAliasNotFound   = errors.New("alias not found")
)

// Entry is one saved alias. Expressions are the raw strings exactly as
// saved; they are parsed only when the alias is used.
type Entry struct {
	Name        string
	Expressions []string
}

type ownerAliases struct {
	order   []string
	entries map[string][]string
}

// Store holds aliases for every owner in memory.
type Store struct {
	mu     sync.RWMutex
	owners map[string]*ownerAliases
}

func NewStore() *Store {
	return &Store{owners: make(map[string]*ownerAliases)}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Save inserts or overwrites the alias name for owner. Overwriting keeps
// the alias in its original list position.
func (s *Store) Save(owner, name string, expressions []string) error {
	key := normalize(name)
	if key == "" || len(expressions) == 0 {
		return ErrMissingArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	oa, ok := s.owners[owner]
	if !ok {
		oa = &ownerAliases{entries: make(map[string][]string)}
		s.owners[owner] = oa
	}
	if _, exists := oa.entries[key]; !exists {
		oa.order = append(oa.order, key)
	}
	oa.entries[key] = append([]string(nil), expressions...)
	return nil
}

// List returns owner's aliases in the order they were first saved.
func (s *Store) List(owner string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	oa, ok := s.owners[owner]
	if !ok {
		return []Entry{}
	}
	out := make([]Entry, 0, len(oa.order))
	for _, key := range oa.order {
		out = append(out, Entry{
			Name:        key,
			Expressions: append([]string(nil), oa.entries[key]...),
		})
	}
	return out
}

// Delete removes the alias name for owner.
func (s *Store) Delete(owner, name string) error {
	key := normalize(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	oa, ok := s.owners[owner]
	if !ok {
		return ErrAliasNotFound
	}
	if _, exists := oa.entries[key]; !exists {
		return ErrAliasNotFound
	}
	delete(oa.entries, key)
	for i, k := range oa.order {
		if k == key {
			oa.order = append(oa.order[:i], oa.order[i+1:]...)
			break
		}
	}
	return nil
}

// Lookup resolves token against owner's aliases, ignoring case.
func (s *Store) Lookup(owner, token string) ([]string, bool) {
	key := normalize(token)
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	oa, ok := s.owners[owner]
	if !ok {
		return nil, false
	}
	exprs, ok := oa.entries[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), exprs...), true
}
