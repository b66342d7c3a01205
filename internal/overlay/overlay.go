// Package overlay persists user-entered figures keyed by (symbol, trade date)
// and lays them over freshly fetched data on every refresh.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"go.uber.org/zap"

	"quotewatch/internal/metrics"
	"quotewatch/internal/quote"
)

var (
	ErrEmptyField   = errors.New("empty field name")
	ErrInvalidValue = errors.New("field value must be a finite number")
)

// Fields maps a field name (e.g. "foreignInvestor") to a user-entered value.
type Fields map[string]float64

// Record is the set of fields known for one key. Overridden lists, sorted,
// the fields that came from the overlay rather than the canonical data.
type Record struct {
	Key        Key
	Fields     Fields
	Overridden []string
}

// Backend stores overlay fields. Load returns an empty Fields when nothing is
// stored for the key. Records never expire.
type Backend interface {
	Load(ctx context.Context, key Key) (Fields, error)
	SetField(ctx context.Context, key Key, name string, value float64) error
	Clear(ctx context.Context) error
}

// Store applies user overlays over canonical records. It is not safe for
// concurrent use; backends are.
type Store struct {
	b   Backend
	log *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore returns a Store over b.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{b: b, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetField upserts one field of the (symbol, date) record. Other fields of the
// record are left as they are.
func (s *Store) SetField(ctx context.Context, symbol, date, field string, value float64) error {
	key, err := NewKey(symbol, date)
	if err != nil {
		return err
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return ErrEmptyField
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%s: %w", field, ErrInvalidValue)
	}
	err = s.b.SetField(ctx, key, field, value)
	metrics.OverlayWrites.WithLabelValues(backendName(s.b), metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("set %s %s: %w", key, field, err)
	}
	s.log.Debug("overlay field set",
		zap.Stringer("key", key),
		zap.String("field", field),
		zap.Float64("value", value))
	return nil
}

// Get returns the overlay record for (symbol, date); every field in it is
// overridden.
func (s *Store) Get(ctx context.Context, symbol, date string) (Record, error) {
	key, err := NewKey(symbol, date)
	if err != nil {
		return Record{}, err
	}
	f, err := s.b.Load(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", key, err)
	}
	if f == nil {
		f = Fields{}
	}
	return Record{Key: key, Fields: f, Overridden: sortedNames(f)}, nil
}

// MergeInto returns a new record holding canonical's fields with the overlay
// for the same key laid on top. canonical is not modified and merging the
// result again yields the same record.
func (s *Store) MergeInto(ctx context.Context, canonical Record) (Record, error) {
	key, err := NewKey(canonical.Key.Symbol, canonical.Key.Date)
	if err != nil {
		return Record{}, err
	}
	ov, err := s.b.Load(ctx, key)
	if err != nil {
		return Record{}, fmt.Errorf("load %s: %w", key, err)
	}
	out := Record{Key: key, Fields: make(Fields, len(canonical.Fields)+len(ov))}
	maps.Copy(out.Fields, canonical.Fields)
	maps.Copy(out.Fields, ov)
	out.Overridden = sortedNames(ov)
	return out, nil
}

// Apply merges overlays into each snapshot's Extras, keyed by the snapshot's
// symbol and trade date. Snapshots without a usable trade date pass through.
// The input is not modified.
func (s *Store) Apply(ctx context.Context, snaps []quote.Snapshot) ([]quote.Snapshot, error) {
	out := make([]quote.Snapshot, len(snaps))
	for i, snap := range snaps {
		out[i] = snap.Clone()
		if _, err := NewKey(snap.Symbol, snap.TradeDate); err != nil {
			continue
		}
		rec, err := s.MergeInto(ctx, Record{
			Key:    Key{Symbol: snap.Symbol, Date: snap.TradeDate},
			Fields: Fields(snap.Extras),
		})
		if err != nil {
			return nil, err
		}
		if len(rec.Fields) > 0 {
			out[i].Extras = rec.Fields
		}
	}
	return out, nil
}

// Clear drops every overlay record.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.b.Clear(ctx); err != nil {
		return fmt.Errorf("clear overlays: %w", err)
	}
	s.log.Info("overlays cleared")
	return nil
}

func sortedNames(f Fields) []string {
	return slices.Sorted(maps.Keys(f))
}

func backendName(b Backend) string {
	if n, ok := b.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
