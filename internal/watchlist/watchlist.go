// Package watchlist holds the bounded, ordered set of tracked symbols.
package watchlist

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"quotewatch/internal/quote"
)

// Capacity is the maximum number of entries a Store holds.
const Capacity = 10

var (
	ErrCapacityExceeded = errors.New("watchlist is full")
	ErrDuplicateSymbol  = errors.New("symbol already in watchlist")
	ErrEmptySymbol      = errors.New("empty symbol")
)

// Entry is a watched symbol with the snapshot it was added with.
type Entry struct {
	Snapshot quote.Snapshot `json:"snapshot"`
	AddedAt  time.Time      `json:"added_at"`
}

// Symbol returns the entry's normalized symbol.
func (e Entry) Symbol() string { return e.Snapshot.Symbol }

// Store is an insertion-ordered collection of at most Capacity entries with
// unique symbols. It is not safe for concurrent use; it is owned by a single
// session and every mutation goes through Add, Remove or Reset.
type Store struct {
	entries []Entry
	now     func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{now: time.Now}
}

// Limit reports the capacity of the store.
func (s *Store) Limit() int { return Capacity }

// Len reports the number of entries.
func (s *Store) Len() int { return len(s.entries) }

// Add appends snap. It fails with ErrCapacityExceeded when the store is full
// and ErrDuplicateSymbol when the symbol is already present; the store is
// unchanged on failure.
func (s *Store) Add(snap quote.Snapshot) error {
	snap = snap.Clone()
	snap.Symbol = quote.NormalizeSymbol(snap.Symbol)
	if snap.Symbol == "" {
		return ErrEmptySymbol
	}
	if len(s.entries) >= Capacity {
		return fmt.Errorf("add %s: %w (max %d)", snap.Symbol, ErrCapacityExceeded, Capacity)
	}
	if s.Contains(snap.Symbol) {
		return fmt.Errorf("add %s: %w", snap.Symbol, ErrDuplicateSymbol)
	}
	s.entries = append(s.entries, Entry{Snapshot: snap, AddedAt: s.now().UTC()})
	return nil
}

// Remove drops symbol if present; removing an absent symbol is a no-op.
// It reports whether an entry was removed.
func (s *Store) Remove(symbol string) bool {
	symbol = quote.NormalizeSymbol(symbol)
	i := s.index(symbol)
	if i < 0 {
		return false
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return true
}

// Update replaces the snapshot of an existing entry, keeping its position
// and AddedAt. It reports false, and changes nothing, when the symbol is not
// watched.
func (s *Store) Update(snap quote.Snapshot) bool {
	i := s.index(quote.NormalizeSymbol(snap.Symbol))
	if i < 0 {
		return false
	}
	snap = snap.Clone()
	snap.Symbol = s.entries[i].Symbol()
	s.entries[i].Snapshot = snap
	return true
}

// Contains reports whether symbol is watched.
func (s *Store) Contains(symbol string) bool {
	return s.index(quote.NormalizeSymbol(symbol)) >= 0
}

// Symbols lists watched symbols in insertion order.
func (s *Store) Symbols() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Symbol()
	}
	return out
}

// Entries returns a copy of the entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Snapshot: e.Snapshot.Clone(), AddedAt: e.AddedAt}
	}
	return out
}

// Reset removes every entry.
func (s *Store) Reset() { s.entries = nil }

func (s *Store) index(symbol string) int {
	return slices.IndexFunc(s.entries, func(e Entry) bool { return e.Symbol() == symbol })
}
