package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultNSEBaseURL = "https://www.nseindia.com"
	DefaultTimeout    = 10 * time.Second

	quoteEquityPath = "/api/quote-equity"
)

// Headers sent with every exchange request. The exchange rejects requests that
// don't look like they come from a browser.
var Headers = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept-Language": "en-US,en;q=0.5",
	"Accept-Encoding": "gzip, deflate, br",
}

// NSEBackend talks to the exchange quote API through a long lived session
// whose cookie jar is populated by Warm.
type NSEBackend struct {
	baseURL string
	client  *http.Client
}

var _ LiveBackend = (*NSEBackend)(nil)

// NewNSEBackend builds a session against baseURL. A zero timeout falls back to
// DefaultTimeout.
func NewNSEBackend(baseURL string, timeout time.Duration) (*NSEBackend, error) {
	if baseURL == "" {
		baseURL = DefaultNSEBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	return &NSEBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}, nil
}

// Warm visits the exchange landing page so that the anti-scraping cookies are
// stored in the session jar.
func (n *NSEBackend) Warm(ctx context.Context) error {
	resp, err := n.get(ctx, n.baseURL+"/")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type quoteEquityResponse struct {
	PriceInfo *struct {
		LastPrice json.RawMessage `json:"lastPrice"`
	} `json:"priceInfo"`
}

// LastPrice fetches the quote for an already uppercased symbol. ErrNoPrice is
// returned when the response lacks priceInfo.lastPrice.
func (n *NSEBackend) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	resp, err := n.get(ctx, n.quoteURL(symbol))
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer body.Close()

	var quote quoteEquityResponse
	if err := json.NewDecoder(body).Decode(&quote); err != nil {
		return decimal.Decimal{}, fmt.Errorf("decoding quote for %s: %w", symbol, err)
	}
	if quote.PriceInfo == nil {
		return decimal.Decimal{}, ErrNoPrice
	}

	return parseLastPrice(quote.PriceInfo.LastPrice)
}

func (n *NSEBackend) quoteURL(symbol string) string {
	return n.baseURL + quoteEquityPath + "?symbol=" + url.QueryEscape(symbol)
}

func (n *NSEBackend) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// parseLastPrice accepts both JSON numbers and strings such as "2,345.678".
func parseLastPrice(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, ErrNoPrice
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, fmt.Errorf("parsing lastPrice %s: %w", raw, err)
		}
	}

	price, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing lastPrice %s: %w", raw, err)
	}
	return round(price), nil
}
