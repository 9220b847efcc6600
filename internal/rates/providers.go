package rates

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deusflow/autopost/internal/logger"
	"github.com/deusflow/autopost/internal/retry"
	"github.com/shopspring/decimal"
)

// client is the HTTP plumbing shared by the providers.
type client struct {
	HTTP      *http.Client
	UserAgent string
	Retry     retry.RetryConfig
}

func (c client) get(ctx context.Context, endpoint string, header http.Header) ([]byte, error) {
	var body []byte
	err := retry.WithRetry(ctx, c.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		if c.UserAgent != "" {
			req.Header.Set("User-Agent", c.UserAgent)
		}
		for k, v := range header {
			req.Header[k] = v
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				logger.Warn("Failed to close response body", "error", err)
			}
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("GET %s: status %d", endpoint, resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return err
	})
	return body, err
}

// Frankfurter reads ECB reference rates from the Frankfurter API.
type Frankfurter struct {
	client
	BaseURL string
}

func NewFrankfurter(httpClient *http.Client, userAgent string, rc retry.RetryConfig) *Frankfurter {
	return &Frankfurter{client: client{HTTP: httpClient, UserAgent: userAgent, Retry: rc}, BaseURL: "https://api.frankfurter.app"}
}

func (f *Frankfurter) Name() string { return "frankfurter" }

func (f *Frankfurter) Rates(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var firstErr error
	for _, pair := range []struct {
		from string
		dst  **decimal.Decimal
	}{
		{"USD", &snap.USDTRY},
		{"EUR", &snap.EURTRY},
		{"GBP", &snap.GBPTRY},
	} {
		v, err := f.pair(ctx, pair.from, "TRY")
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		*pair.dst = v
	}
	return snap, firstErr
}

func (f *Frankfurter) pair(ctx context.Context, from, to string) (*decimal.Decimal, error) {
	q := url.Values{"from": {from}, "to": {to}}
	body, err := f.get(ctx, f.BaseURL+"/latest?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Rates map[string]decimal.Decimal `json:"rates"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("frankfurter %s%s: %w", from, to, err)
	}
	v, ok := resp.Rates[to]
	if !ok || !v.IsPositive() {
		return nil, fmt.Errorf("frankfurter %s%s: no rate", from, to)
	}
	return &v, nil
}

// Stooq reads last quotes from the stooq.com CSV endpoint, including the
// gold ounce price.
type Stooq struct {
	client
	BaseURL string
}

func NewStooq(httpClient *http.Client, userAgent string, rc retry.RetryConfig) *Stooq {
	return &Stooq{client: client{HTTP: httpClient, UserAgent: userAgent, Retry: rc}, BaseURL: "https://stooq.com"}
}

func (s *Stooq) Name() string { return "stooq" }

func (s *Stooq) Rates(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var firstErr error
	for _, sym := range []struct {
		symbol string
		dst    **decimal.Decimal
	}{
		{"usdtry", &snap.USDTRY},
		{"eurtry", &snap.EURTRY},
		{"gbptry", &snap.GBPTRY},
		{"xauusd", &snap.XAUUSD},
	} {
		v, err := s.quote(ctx, sym.symbol)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		*sym.dst = v
	}
	return snap, firstErr
}

func (s *Stooq) quote(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	q := url.Values{"s": {symbol}, "f": {"sd2t2ohlc"}, "h": {""}, "e": {"csv"}}
	body, err := s.get(ctx, s.BaseURL+"/q/l/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return parseStooqClose(body, symbol)
}

// parseStooqClose reads the Close column of a one-row stooq CSV.
func parseStooqClose(body []byte, symbol string) (*decimal.Decimal, error) {
	records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq %s: %w", symbol, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("stooq %s: no data", symbol)
	}
	col := -1
	for i, h := range records[0] {
		if strings.EqualFold(strings.TrimSpace(h), "close") {
			col = i
		}
	}
	if col < 0 || col >= len(records[1]) {
		return nil, fmt.Errorf("stooq %s: no close column", symbol)
	}
	v, err := decimal.NewFromString(strings.TrimSpace(records[1][col]))
	if err != nil || !v.IsPositive() {
		return nil, fmt.Errorf("stooq %s: bad close %q", symbol, records[1][col])
	}
	return &v, nil
}

// GoldAPI reads the gold ounce price in USD from goldapi.io.
type GoldAPI struct {
	client
	BaseURL string
	Key     string
}

func NewGoldAPI(httpClient *http.Client, userAgent, key string, rc retry.RetryConfig) *GoldAPI {
	return &GoldAPI{client: client{HTTP: httpClient, UserAgent: userAgent, Retry: rc}, BaseURL: "https://www.goldapi.io", Key: key}
}

func (g *GoldAPI) Name() string { return "goldapi" }

func (g *GoldAPI) Rates(ctx context.Context) (Snapshot, error) {
	header := http.Header{"X-Access-Token": {g.Key}}
	body, err := g.get(ctx, g.BaseURL+"/api/XAU/USD", header)
	if err != nil {
		return Snapshot{}, err
	}
	var resp struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return Snapshot{}, fmt.Errorf("goldapi: %w", err)
	}
	if !resp.Price.IsPositive() {
		return Snapshot{}, fmt.Errorf("goldapi: no price")
	}
	return Snapshot{XAUUSD: &resp.Price}, nil
}
