package twse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"quotewatch/internal/quote"
)

// maxBody caps how much of a response is read. A single-symbol payload is a
// few hundred bytes.
const maxBody = 1 << 20

// Fetch resolves one symbol. It never retries.
func (c *Client) Fetch(ctx context.Context, symbol string) (quote.Snapshot, error) {
	symbol = quote.NormalizeSymbol(symbol)
	if symbol == "" {
		return quote.Snapshot{}, quote.Fail(symbol, quote.NotFound, errors.New("empty symbol"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(symbol), http.NoBody)
	if err != nil {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Transport, fmt.Errorf("creating request: %w", err))
	}
	req.Header = c.header.Clone()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Transport, fmt.Errorf("performing request: %w", err))
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return quote.Snapshot{}, quote.Fail(symbol, quote.RateLimited, fmt.Errorf("status %d", res.StatusCode))
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return quote.Snapshot{}, quote.Fail(symbol, quote.NotFound, fmt.Errorf("status %d", res.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Transport, fmt.Errorf("reading body: %w", err))
	}
	return parse(symbol, body)
}

func (c *Client) requestURL(symbol string) string {
	q := url.Values{}
	q.Set("ex_ch", fmt.Sprintf("%s_%s.tw", c.market, strings.ToLower(symbol)))
	upstream := c.endpoint + "?" + q.Encode()
	if c.proxy == "" {
		return upstream
	}
	return strings.ReplaceAll(c.proxy, "{url}", url.QueryEscape(upstream))
}

// parse maps a getStockInfo payload to a snapshot:
//
//	{"rtcode":"0000","msgArray":[{"c":"2330","n":"台積電","z":"580.00", ...}]}
func parse(symbol string, body []byte) (quote.Snapshot, error) {
	if !gjson.ValidBytes(body) {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Malformed, errors.New("invalid JSON"))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Malformed, fmt.Errorf("unexpected %s payload", doc.Type))
	}

	msgs := doc.Get("msgArray")
	if msgs.Exists() && !msgs.IsArray() {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Malformed, errors.New("msgArray is not an array"))
	}
	if rt := doc.Get("rtcode").String(); rt != "0000" {
		return quote.Snapshot{}, quote.Fail(symbol, quote.NotFound, fmt.Errorf("rtcode %q: %s", rt, doc.Get("rtmessage").String()))
	}
	items := msgs.Array()
	if len(items) == 0 {
		return quote.Snapshot{}, quote.Fail(symbol, quote.NotFound, nil)
	}

	m := items[0]
	if !m.IsObject() || strings.TrimSpace(m.Get("c").String()) == "" {
		return quote.Snapshot{}, quote.Fail(symbol, quote.Malformed, errors.New("entry without code"))
	}
	return quote.Snapshot{
		Symbol:        quote.NormalizeSymbol(m.Get("c").String()),
		Name:          strings.TrimSpace(m.Get("n").String()),
		Last:          field(m, "z"),
		Open:          field(m, "o"),
		High:          field(m, "h"),
		Low:           field(m, "l"),
		PrevClose:     field(m, "y"),
		Volume:        field(m, "v"),
		LastTradeTime: field(m, "t"),
		TradeDate:     field(m, "d"),
	}, nil
}

// field returns the raw text of a value; TWSE sends numbers as strings but
// the proxy occasionally re-encodes them as JSON numbers.
func field(m gjson.Result, key string) string {
	v := m.Get(key)
	if v.Type == gjson.Number {
		return v.Raw
	}
	return strings.TrimSpace(v.String())
}
