package twse

import (
	"net/http"
	"strings"
)

const (
	defaultEndpoint = "https://mis.twse.com.tw/stock/api/getStockInfo.jsp"
	defaultMarket   = "tse"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=twse_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches real-time quotes from the TWSE MIS endpoint.
type Client struct {
	// endpoint is the getStockInfo URL.
	endpoint string
	// market is the channel prefix, "tse" for listed or "otc" for OTC shares.
	market string
	// proxy, when set, is a URL template with a {url} placeholder that
	// receives the escaped upstream URL.
	proxy string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// Option is a configuration option for the TWSE client.
type Option func(*Client)

// WithEndpoint overrides the getStockInfo URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithMarket sets the market prefix used in the ex_ch parameter.
func WithMarket(market string) Option {
	return func(c *Client) {
		if m := strings.ToLower(strings.TrimSpace(market)); m != "" {
			c.market = m
		}
	}
}

// WithProxy routes requests through a URL template such as
// "https://api.allorigins.win/raw?url={url}".
func WithProxy(template string) Option {
	return func(c *Client) {
		c.proxy = template
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// New creates a TWSE client.
func New(options ...Option) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		market:     defaultMarket,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}
