package overlay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps every record in one JSON document,
// {"<symbol>_<date>": {"<field>": <number>}}, rewritten atomically on each
// change.
type FileBackend struct {
	path string

	mu   sync.Mutex
	data map[Key]Fields
}

// OpenFile loads the document at path. A missing file is an empty store.
func OpenFile(path string) (*FileBackend, error) {
	b := &FileBackend{path: path, data: map[Key]Fields{}}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return b, nil
	}
	if err != nil {
		return nil, err
	}
	var doc map[string]Fields
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("overlay file %s: %w", path, err)
	}
	for s, f := range doc {
		k, err := ParseKey(s)
		if err != nil {
			return nil, fmt.Errorf("overlay file %s: %w", path, err)
		}
		if b.data[k] == nil {
			b.data[k] = Fields{}
		}
		maps.Copy(b.data[k], f)
	}
	return b, nil
}

func (b *FileBackend) Name() string { return "file" }

func (b *FileBackend) Load(_ context.Context, key Key) (Fields, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return maps.Clone(b.data[key]), nil
}

func (b *FileBackend) SetField(_ context.Context, key Key, name string, value float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, had := b.data[key]
	next := maps.Clone(prev)
	if next == nil {
		next = Fields{}
	}
	next[name] = value
	b.data[key] = next
	if err := b.flush(); err != nil {
		if had {
			b.data[key] = prev
		} else {
			delete(b.data, key)
		}
		return err
	}
	return nil
}

func (b *FileBackend) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := b.data
	b.data = map[Key]Fields{}
	if err := b.flush(); err != nil {
		b.data = prev
		return err
	}
	return nil
}

// flush must be called with mu held.
func (b *FileBackend) flush() error {
	doc := make(map[string]Fields, len(b.data))
	for k, f := range b.data {
		doc[k.String()] = f
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".overlay-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}
