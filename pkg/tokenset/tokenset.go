// Package tokenset implements the Runtime Token Set: the one
// structure in this module whose contents legitimately change at runtime
// without a process restart.
package tokenset

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Token is one entry in the active trading universe.
type Token struct {
	Address common.Address
	Name string
	Symbol string
	Decimals uint8
	Verified bool
}

// Set holds an atomically-swapped snapshot of active tokens. Writers call
// Replace/Add/Remove under a write lock; readers call Snapshot and operate
// on the returned copy for the duration of their scan.
type Set struct {
	mu sync.RWMutex
	tokens []Token
}

func New() *Set {
	return &Set{}
}

// Replace atomically swaps the entire token list.
func (s *Set) Replace(tokens []Token) {
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	s.mu.Lock()
	s.tokens = cp
	s.mu.Unlock()
}

// Snapshot returns an immutable copy of the current token list.
func (s *Set) Snapshot() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]Token, len(s.tokens))
	copy(cp, s.tokens)
	return cp
}

// VerifiedPairs returns only the tokens marked verified, matching the
// original's get_token_pairs compatibility filter.
func (s *Set) VerifiedPairs() []Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Token
	for _, t := range s.tokens {
		if t.Verified {
			out = append(out, t)
		}
	}
	return out
}

// Add inserts a token, idempotent by address.
func (s *Set) Add(t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tokens {
		if existing.Address == t.Address {
			s.tokens[i] = t
			return
		}
	}
	s.tokens = append(s.tokens, t)
}

// Remove deletes a token by address; a no-op if the address isn't present.
func (s *Set) Remove(addr common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.tokens {
		if existing.Address == addr {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			return
		}
	}
}

// Has reports whether addr is currently tracked.
func (s *Set) Has(addr common.Address) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tokens {
		if t.Address == addr {
			return true
		}
	}
	return false
}

// Count returns the number of tracked tokens.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
