package export

import (
	"strings"

	"github.com/shopspring/decimal"

	"quotewatch/internal/quote"
)

// Summary aggregates a set of snapshots. Only rows whose last price and
// volume both parse are counted, so the average and the total describe the
// same rows.
type Summary struct {
	Rows        int             `json:"rows"`
	Priced      int             `json:"priced"`
	AverageLast decimal.Decimal `json:"average_last"`
	TotalVolume int64           `json:"total_volume"`
}

// Summarize computes the Summary of snaps.
func Summarize(snaps []quote.Snapshot) Summary {
	s := Summary{Rows: len(snaps)}
	sum := decimal.Zero
	for _, snap := range snaps {
		last, okLast := parseNumber(snap.Last)
		vol, okVol := parseNumber(snap.Volume)
		if !okLast || !okVol {
			continue
		}
		s.Priced++
		sum = sum.Add(last)
		s.TotalVolume += vol.IntPart()
	}
	if s.Priced > 0 {
		s.AverageLast = sum.Div(decimal.NewFromInt(int64(s.Priced)))
	}
	return s
}

// parseNumber accepts plain decimal text, with or without grouping commas.
// Placeholders such as "-" or "" do not parse.
func parseNumber(raw string) (decimal.Decimal, bool) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
