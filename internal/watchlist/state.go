package watchlist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type state struct {
	Entries []Entry `json:"entries"`
}

// Save writes the entries as JSON.
func (s *Store) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(state{Entries: s.Entries()})
}

// Load replaces the store's entries with those read from r. Entries are
// replayed through the same checks as Add, so a hand-edited file cannot break
// the capacity or uniqueness rules; on error the store is unchanged.
func (s *Store) Load(r io.Reader) error {
	var st state
	if err := json.NewDecoder(r).Decode(&st); err != nil {
		return fmt.Errorf("decode watchlist: %w", err)
	}
	next := &Store{now: s.now}
	for _, e := range st.Entries {
		if err := next.Add(e.Snapshot); err != nil {
			return fmt.Errorf("load watchlist: %w", err)
		}
		if !e.AddedAt.IsZero() {
			next.entries[len(next.entries)-1].AddedAt = e.AddedAt
		}
	}
	s.entries = next.entries
	return nil
}

// LoadFile loads path into a new store. A missing file yields an empty store.
func LoadFile(path string) (*Store, error) {
	s := New()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := s.Load(f); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveFile writes the store to path atomically.
func (s *Store) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".watchlist-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := s.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
