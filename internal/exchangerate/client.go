package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"decoder-ledger/internal/observability/metrics"
)

var (
	// ErrUnavailable is returned when no rate could be obtained.
	ErrUnavailable = errors.New("exchangerate: rate unavailable")
	// ErrNotConfigured is returned when no feed URL was configured.
	ErrNotConfigured = errors.New("exchangerate: feed not configured")
)

const cacheKey = "rate"

// Rate is local currency units per foreign unit. Known is false when the
// feed could not be reached and no cached value exists.
type Rate struct {
	Value     decimal.Decimal `json:"value"`
	Known     bool            `json:"known"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	FetchedAt time.Time       `json:"fetched_at,omitempty"`
	Cached    bool            `json:"cached"`
}

type feedPayload struct {
	Rate     *json.Number `json:"rate"`
	Promedio *json.Number `json:"promedio"`
}

// Client fetches the exchange rate and keeps the last good value for a TTL.
type Client struct {
	http   *resty.Client
	url    string
	base   string
	quote  string
	cache  *cache.Cache
	logger *zap.Logger
	now    func() time.Time
}

// Option configures the client.
type Option func(*Client)

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCurrencies sets the foreign (base) and local (quote) currency codes.
func WithCurrencies(base, quote string) Option {
	return func(c *Client) {
		if base != "" {
			c.base = base
		}
		if quote != "" {
			c.quote = quote
		}
	}
}

// NewClient constructs a client. Requests are never retried.
func NewClient(url string, timeout, ttl time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetRetryCount(0).
			SetHeader("Accept", "application/json"),
		url:    url,
		base:   "USD",
		quote:  "VES",
		cache:  cache.New(ttl, 2*ttl),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rate returns the cached rate when fresh, otherwise queries the feed.
func (c *Client) Rate(ctx context.Context) (Rate, error) {
	if cached, ok := c.cache.Get(cacheKey); ok {
		rate := cached.(Rate)
		rate.Cached = true
		metrics.ObserveExchangeRate(metrics.ExchangeRateCached)
		return rate, nil
	}
	if c.url == "" {
		metrics.ObserveExchangeRate(metrics.ExchangeRateFailed)
		return c.unknown(), ErrNotConfigured
	}

	value, err := c.fetch(ctx)
	if err != nil {
		metrics.ObserveExchangeRate(metrics.ExchangeRateFailed)
		c.logger.Warn("exchange rate fetch failed", zap.String("url", c.url), zap.Error(err))
		return c.unknown(), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	rate := Rate{
		Value:     value,
		Known:     true,
		Base:      c.base,
		Quote:     c.quote,
		FetchedAt: c.now().UTC(),
	}
	c.cache.SetDefault(cacheKey, rate)
	metrics.ObserveExchangeRate(metrics.ExchangeRateFetched)
	return rate, nil
}

func (c *Client) fetch(ctx context.Context) (decimal.Decimal, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return decimal.Zero, err
	}
	if resp.IsError() {
		return decimal.Zero, fmt.Errorf("status %d", resp.StatusCode())
	}
	return parsePayload(resp.Body())
}

func parsePayload(body []byte) (decimal.Decimal, error) {
	var payload feedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode: %w", err)
	}
	raw := payload.Rate
	if raw == nil {
		raw = payload.Promedio
	}
	if raw == nil {
		return decimal.Zero, errors.New("missing rate field")
	}
	value, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode rate: %w", err)
	}
	if !value.IsPositive() {
		return decimal.Zero, errors.New("non-positive rate")
	}
	return value, nil
}

func (c *Client) unknown() Rate {
	return Rate{Base: c.base, Quote: c.quote, Value: decimal.Zero}
}
