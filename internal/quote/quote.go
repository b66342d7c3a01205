package quote

import (
	"context"
	"maps"
	"strings"
	"unicode"
)

// Snapshot is a point-in-time quote for one symbol.
// Numeric fields are kept as strings: the upstream sends "-" or empty values
// when there has been no trade, and consumers parse them tolerantly.
type Snapshot struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Last          string `json:"last"`
	Open          string `json:"open"`
	High          string `json:"high"`
	Low           string `json:"low"`
	PrevClose     string `json:"prev_close"`
	Volume        string `json:"volume"`
	LastTradeTime string `json:"last_trade_time"`
	TradeDate     string `json:"trade_date"`

	// Extras holds user-entered figures merged in from the overlay store.
	Extras map[string]float64 `json:"extras,omitempty"`
}

// Clone returns a copy that shares no mutable state with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Extras != nil {
		out.Extras = maps.Clone(s.Extras)
	}
	return out
}

// Fetcher resolves one symbol to one snapshot. Implementations never retry;
// failures are reported as *FetchError.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string) (Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, symbol string) (Snapshot, error)

func (f FetcherFunc) Fetch(ctx context.Context, symbol string) (Snapshot, error) {
	return f(ctx, symbol)
}

// NormalizeSymbol trims, drops inner whitespace and upper-cases a symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}
