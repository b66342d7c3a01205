package watchlist

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quotewatch/internal/quote"
)

func snap(sym string) quote.Snapshot {
	return quote.Snapshot{Symbol: sym, Name: "name-" + sym, Last: "100.00"}
}

func TestAdd_KeepsInsertionOrder(t *testing.T) {
	s := New()

	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.Add(snap("2317")))
	require.NoError(t, s.Add(snap("0050")))

	require.Equal(t, []string{"2330", "2317", "0050"}, s.Symbols())
	require.Equal(t, 3, s.Len())
	require.Equal(t, Capacity, s.Limit())
}

func TestAdd_RejectsEleventh(t *testing.T) {
	// Arrange
	s := New()
	for i := 0; i < Capacity; i++ {
		require.NoError(t, s.Add(snap(fmt.Sprintf("S%02d", i))))
	}
	before := s.Symbols()

	// Act
	err := s.Add(snap("EXTRA"))

	// Assert
	require.ErrorIs(t, err, ErrCapacityExceeded)
	require.Equal(t, before, s.Symbols())
	require.False(t, s.Contains("EXTRA"))
}

func TestAdd_RejectsDuplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.Add(snap("2317")))

	err := s.Add(quote.Snapshot{Symbol: " 2330 ", Name: "other"})

	require.ErrorIs(t, err, ErrDuplicateSymbol)
	require.Equal(t, []string{"2330", "2317"}, s.Symbols())
	require.Equal(t, "name-2330", s.Entries()[0].Snapshot.Name)
}

func TestAdd_DuplicateCheckedAfterCapacity(t *testing.T) {
	s := New()
	for i := 0; i < Capacity; i++ {
		require.NoError(t, s.Add(snap(fmt.Sprintf("S%02d", i))))
	}

	require.ErrorIs(t, s.Add(snap("S00")), ErrCapacityExceeded)
}

func TestAdd_NormalizesSymbol(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(snap(" aapl ")))

	require.True(t, s.Contains("AAPL"))
	require.True(t, s.Contains("aapl"))
	require.Equal(t, []string{"AAPL"}, s.Symbols())
	require.ErrorIs(t, s.Add(snap("   ")), ErrEmptySymbol)
}

func TestRemove(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.Add(snap("2317")))
	require.NoError(t, s.Add(snap("0050")))

	require.True(t, s.Remove("2317"))
	require.False(t, s.Remove("2317"))
	require.False(t, s.Remove("9999"))

	require.Equal(t, []string{"2330", "0050"}, s.Symbols())

	// freed slot can be reused
	for i := s.Len(); i < Capacity; i++ {
		require.NoError(t, s.Add(snap(fmt.Sprintf("X%d", i))))
	}
	require.Equal(t, Capacity, s.Len())
}

func TestUpdate(t *testing.T) {
	added := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return added }
	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.Add(snap("2317")))

	require.True(t, s.Update(quote.Snapshot{Symbol: "2330", Last: "590.00"}))
	require.False(t, s.Update(quote.Snapshot{Symbol: "9999"}))

	e := s.Entries()
	require.Equal(t, []string{"2330", "2317"}, s.Symbols())
	require.Equal(t, "590.00", e[0].Snapshot.Last)
	require.Equal(t, added, e[0].AddedAt)
	require.Equal(t, 2, s.Len())
}

func TestEntries_ReturnsCopies(t *testing.T) {
	s := New()
	in := snap("2330")
	in.Extras = map[string]float64{"chips": 1}
	require.NoError(t, s.Add(in))

	in.Extras["chips"] = 99
	got := s.Entries()
	got[0].Snapshot.Extras["chips"] = 42
	got[0].Snapshot.Name = "changed"

	e := s.Entries()[0]
	require.Equal(t, 1.0, e.Snapshot.Extras["chips"])
	require.Equal(t, "name-2330", e.Snapshot.Name)
}

func TestReset(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(snap("2330")))
	s.Reset()
	require.Zero(t, s.Len())
	require.Empty(t, s.Symbols())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	added := time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return added }
	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.Add(snap("2317")))

	var buf bytes.Buffer
	require.NoError(t, s.Save(&buf))

	got := New()
	require.NoError(t, got.Load(&buf))
	require.Equal(t, s.Entries(), got.Entries())
	require.Equal(t, added, got.Entries()[0].AddedAt)
}

func TestLoad_EnforcesInvariants(t *testing.T) {
	s := New()
	require.NoError(t, s.Add(snap("KEEP")))

	doc := `{"entries":[{"snapshot":{"symbol":"2330"}},{"snapshot":{"symbol":"2330"}}]}`
	err := s.Load(strings.NewReader(doc))

	require.ErrorIs(t, err, ErrDuplicateSymbol)
	require.Equal(t, []string{"KEEP"}, s.Symbols())
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	var entries []string
	for i := 0; i <= Capacity; i++ {
		entries = append(entries, fmt.Sprintf(`{"snapshot":{"symbol":"S%02d"}}`, i))
	}
	doc := `{"entries":[` + strings.Join(entries, ",") + `]}`

	err := New().Load(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestFile_MissingIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "watchlist.json")

	s, err := LoadFile(path)
	require.NoError(t, err)
	require.Zero(t, s.Len())

	require.NoError(t, s.Add(snap("2330")))
	require.NoError(t, s.SaveFile(path))

	again, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"2330"}, again.Symbols())
}
