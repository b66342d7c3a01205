// Package export renders a set of snapshots as a spreadsheet-friendly CSV
// report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"quotewatch/internal/metrics"
	"quotewatch/internal/quote"
)

const (
	DefaultTitle  = "Watchlist Realtime Report"
	DefaultLocale = "zh-TW"

	// bom lets spreadsheet applications detect UTF-8.
	bom = "\ufeff"

	timestampLayout = "2006-01-02 15:04:05"
)

// Columns is the fixed part of the header row.
var Columns = []string{
	"No.", "Symbol", "Name", "Last", "Change", "Change %",
	"Open", "High", "Low", "Prev Close", "Volume", "Last Trade", "Trade Date",
}

var hundred = decimal.NewFromInt(100)

// Exporter writes CSV reports.
type Exporter struct {
	title  string
	tag    language.Tag
	extras []string
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithTitle sets the first line of the report.
func WithTitle(title string) Option {
	return func(e *Exporter) {
		if title != "" {
			e.title = title
		}
	}
}

// WithLocale sets the BCP 47 locale used for digit grouping.
func WithLocale(locale string) Option {
	return func(e *Exporter) {
		if tag, err := language.Parse(locale); err == nil {
			e.tag = tag
		}
	}
}

// WithExtraFields appends one column per overlay field, in the given order.
func WithExtraFields(fields ...string) Option {
	return func(e *Exporter) { e.extras = append(e.extras, fields...) }
}

// WithClock sets the source of the Generated timestamp.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		if now != nil {
			e.now = now
		}
	}
}

// New returns an Exporter.
func New(opts ...Option) *Exporter {
	e := &Exporter{
		title: DefaultTitle,
		tag:   language.MustParse(DefaultLocale),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FileName is the conventional name of a report generated at t.
func FileName(t time.Time) string {
	return "watchlist_realtime_" + t.Format("2006-01-02") + ".csv"
}

// Export writes the report for snaps to w: a byte-order mark, a metadata
// block, a blank line, the header and one row per snapshot in input order.
// Apart from the Generated line the output depends only on snaps.
func (e *Exporter) Export(w io.Writer, snaps []quote.Snapshot) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}
	p := message.NewPrinter(e.tag)
	cw := csv.NewWriter(w)

	for _, line := range e.metadata(p, snaps) {
		if err := cw.Write([]string{line}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{""}); err != nil {
		return err
	}

	header := append(append([]string{}, Columns...), e.extras...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, snap := range snaps {
		if err := cw.Write(e.row(p, i, snap)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	metrics.ExportRows.Add(float64(len(snaps)))
	return nil
}

func (e *Exporter) metadata(p *message.Printer, snaps []quote.Snapshot) []string {
	lines := []string{
		e.title,
		"Generated: " + e.now().Format(timestampLayout),
		"Symbols: " + strconv.Itoa(len(snaps)),
	}
	s := Summarize(snaps)
	if s.Priced > 0 {
		lines = append(lines,
			"Priced: "+strconv.Itoa(s.Priced),
			"Average Last: "+formatPrice(p, s.AverageLast),
			p.Sprintf("Total Volume: %d", s.TotalVolume),
		)
	}
	return lines
}

func (e *Exporter) row(p *message.Printer, i int, s quote.Snapshot) []string {
	change, pct := Change(s.Last, s.PrevClose)
	out := []string{
		strconv.Itoa(i + 1),
		s.Symbol,
		s.Name,
		price(p, s.Last),
		change,
		pct,
		price(p, s.Open),
		price(p, s.High),
		price(p, s.Low),
		price(p, s.PrevClose),
		volume(p, s.Volume),
		s.LastTradeTime,
		tradeDate(s.TradeDate),
	}
	for _, f := range e.extras {
		v, ok := s.Extras[f]
		if !ok {
			out = append(out, "")
			continue
		}
		out = append(out, decimal.NewFromFloat(v).String())
	}
	return out
}

// Change derives the absolute and percentage change of last against
// prevClose, both to two decimals with a "+" on gains. A non-numeric operand
// gives "0.00"; a non-numeric or zero prevClose gives "0.00%".
func Change(last, prevClose string) (string, string) {
	l, okL := parseNumber(last)
	y, okY := parseNumber(prevClose)

	change := decimal.Zero
	if okL && okY {
		change = l.Sub(y)
	}
	pct := decimal.Zero
	if okY && !y.IsZero() {
		pct = change.Div(y).Mul(hundred)
	}
	return signed(change), signed(pct) + "%"
}

func signed(d decimal.Decimal) string {
	d = d.Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func price(p *message.Printer, raw string) string {
	d, ok := parseNumber(raw)
	if !ok {
		return raw
	}
	return formatPrice(p, d)
}

func formatPrice(p *message.Printer, d decimal.Decimal) string {
	return p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func volume(p *message.Printer, raw string) string {
	d, ok := parseNumber(raw)
	if !ok {
		return raw
	}
	return p.Sprintf("%d", d.IntPart())
}

func tradeDate(raw string) string {
	if len(raw) == 8 {
		if t, err := time.Parse("20060102", raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return raw
}
