package overlay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quotewatch/internal/quote"
)

var (
	ErrEmptySymbol = errors.New("empty symbol")
	ErrInvalidDate = errors.New("invalid trade date")
	ErrInvalidKey  = errors.New("invalid overlay key")
)

const dateLayout = "2006-01-02"

// Key identifies an overlay record: one symbol on one trade date.
type Key struct {
	Symbol string
	Date   string
}

// NewKey normalizes symbol and date into a Key. Dates are accepted as
// YYYY-MM-DD or YYYYMMDD.
func NewKey(symbol, date string) (Key, error) {
	symbol = quote.NormalizeSymbol(symbol)
	if symbol == "" {
		return Key{}, ErrEmptySymbol
	}
	d, err := NormalizeDate(date)
	if err != nil {
		return Key{}, err
	}
	return Key{Symbol: symbol, Date: d}, nil
}

// String renders the key as "<symbol>_<date>".
func (k Key) String() string { return k.Symbol + "_" + k.Date }

// ParseKey is the inverse of Key.String. It splits on the last underscore so
// symbols that themselves contain "_" survive a round trip.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	k, err := NewKey(s[:i], s[i+1:])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q: %w", ErrInvalidKey, s, err)
	}
	return k, nil
}

// NormalizeDate returns date as YYYY-MM-DD.
func NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	layout := dateLayout
	if len(date) == 8 && !strings.Contains(date, "-") {
		layout = "20060102"
	}
	t, err := time.Parse(layout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t.Format(dateLayout), nil
}
