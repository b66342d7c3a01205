package overlay

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"quotewatch/internal/metrics"
	"quotewatch/internal/quote"
)

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overlay.json")
	b, err := OpenFile(path)
	require.NoError(t, err)
	return NewStore(b), path
}

func TestKey_RoundTrip(t *testing.T) {
	cases := []struct {
		symbol, date string
		want         string
	}{
		{"2330", "2024-01-02", "2330_2024-01-02"},
		{"2330", "20240102", "2330_2024-01-02"},
		{"brk_b", "2024-01-02", "BRK_B_2024-01-02"},
		{"A_B_C", " 2024-12-31 ", "A_B_C_2024-12-31"},
	}
	for _, tc := range cases {
		t.Run(tc.want, func(t *testing.T) {
			k, err := NewKey(tc.symbol, tc.date)
			require.NoError(t, err)
			require.Equal(t, tc.want, k.String())

			back, err := ParseKey(k.String())
			require.NoError(t, err)
			require.Equal(t, k, back)
		})
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "2330", "2330_", "_2024-01-02", "2330_tomorrow", "2330_2024-13-01"} {
		_, err := ParseKey(s)
		require.ErrorIs(t, err, ErrInvalidKey, s)
	}
}

func TestSetField_UpsertsSingleField(t *testing.T) {
	// Arrange
	s, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "foreignInvestor", 1200))
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "dealer", -35))

	// Act
	require.NoError(t, s.SetField(ctx, "2330", "20240102", "foreignInvestor", 1500))

	// Assert
	rec, err := s.Get(ctx, "2330", "2024-01-02")
	require.NoError(t, err)
	require.Equal(t, Fields{"foreignInvestor": 1500, "dealer": -35}, rec.Fields)
	require.Equal(t, []string{"dealer", "foreignInvestor"}, rec.Overridden)
}

func TestSetField_Validation(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.SetField(ctx, "2330", "2024-01-02", "  ", 1), ErrEmptyField)
	require.ErrorIs(t, s.SetField(ctx, "", "2024-01-02", "chips", 1), ErrEmptySymbol)
	require.ErrorIs(t, s.SetField(ctx, "2330", "01/02/2024", "chips", 1), ErrInvalidDate)
	require.ErrorIs(t, s.SetField(ctx, "2330", "2024-01-02", "chips", math.NaN()), ErrInvalidValue)
	require.ErrorIs(t, s.SetField(ctx, "2330", "2024-01-02", "chips", math.Inf(1)), ErrInvalidValue)

	rec, err := s.Get(ctx, "2330", "2024-01-02")
	require.NoError(t, err)
	require.Empty(t, rec.Fields)
}

func TestSetField_CountsWrites(t *testing.T) {
	s, _ := newFileStore(t)
	c := metrics.OverlayWrites.WithLabelValues("file", "success")
	before := testutil.ToFloat64(c)

	require.NoError(t, s.SetField(context.Background(), "2330", "2024-01-02", "chips", 3))

	require.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestMergeInto(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "innerVolume", 900))
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "chips", 7))

	canonical := Record{
		Key:    Key{Symbol: "2330", Date: "2024-01-02"},
		Fields: Fields{"innerVolume": 100, "outerVolume": 200},
	}

	got, err := s.MergeInto(ctx, canonical)
	require.NoError(t, err)
	require.Equal(t, Fields{"innerVolume": 900, "outerVolume": 200, "chips": 7}, got.Fields)
	require.Equal(t, []string{"chips", "innerVolume"}, got.Overridden)

	// canonical untouched
	require.Equal(t, Fields{"innerVolume": 100, "outerVolume": 200}, canonical.Fields)

	again, err := s.MergeInto(ctx, got)
	require.NoError(t, err)
	require.Equal(t, got, again)
}

func TestMergeInto_OtherDateUnaffected(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "chips", 7))

	got, err := s.MergeInto(ctx, Record{
		Key:    Key{Symbol: "2330", Date: "2024-01-03"},
		Fields: Fields{"chips": 1},
	})
	require.NoError(t, err)
	require.Equal(t, Fields{"chips": 1}, got.Fields)
	require.Empty(t, got.Overridden)
}

func TestApply(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "mainBuy", 12))

	in := []quote.Snapshot{
		{Symbol: "2330", TradeDate: "20240102", Last: "580.00"},
		{Symbol: "2317", TradeDate: "20240102"},
		{Symbol: "0050", TradeDate: "-"},
	}

	out, err := s.Apply(ctx, in)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, map[string]float64{"mainBuy": 12}, out[0].Extras)
	require.Equal(t, "580.00", out[0].Last)
	require.Nil(t, out[1].Extras)
	require.Nil(t, out[2].Extras)
	require.Nil(t, in[0].Extras)
}

func TestFileBackend_PersistsAcrossReopen(t *testing.T) {
	s, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "BRK_B", "2024-01-02", "chips", 1.5))
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "dealer", 2))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]float64
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, map[string]map[string]float64{
		"BRK_B_2024-01-02": {"chips": 1.5},
		"2330_2024-01-02":  {"dealer": 2},
	}, doc)

	b, err := OpenFile(path)
	require.NoError(t, err)
	rec, err := NewStore(b).Get(ctx, "brk_b", "20240102")
	require.NoError(t, err)
	require.Equal(t, Fields{"chips": 1.5}, rec.Fields)
}

func TestFileBackend_RejectsBadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodate":{"chips":1}}`), 0o644))

	_, err := OpenFile(path)
	require.ErrorIs(t, err, ErrInvalidKey)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = OpenFile(path)
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	s, path := newFileStore(t)
	ctx := context.Background()
	require.NoError(t, s.SetField(ctx, "2330", "2024-01-02", "chips", 1))

	require.NoError(t, s.Clear(ctx))

	rec, err := s.Get(ctx, "2330", "2024-01-02")
	require.NoError(t, err)
	require.Empty(t, rec.Fields)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(raw))
}
