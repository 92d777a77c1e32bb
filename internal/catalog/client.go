package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://fakestoreapi.com"
	DefaultTimeout = 10 * time.Second

	maxBodyBytes = 8 << 20
)

var (
	// ErrNetwork covers transport failures and non-2xx statuses, including
	// 404 for an unknown product.
	ErrNetwork = errors.New("catalog network error")
	// ErrDecode means the body did not parse into the expected product shape.
	ErrDecode = errors.New("catalog decode error")
)

// RetryConfig controls how many times a failed request is re-sent.
// Only transport failures, 5xx and 429 responses are retried.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NoRetry issues every request exactly once.
func NoRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 1}
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  200 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

type Client struct {
	BaseURL string
	Client  *http.Client
	Retry   RetryConfig
	Log     *zap.Logger
	Metrics *ClientMetrics
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: DefaultTimeout},
		Retry:   NoRetry(),
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	return c.getList(ctx, "list_products", "/products")
}

func (c *Client) GetProduct(ctx context.Context, id int) (Product, error) {
	var p Product
	check := func() error { return p.Validate() }
	if err := c.getJSON(ctx, "get_product", "/products/"+strconv.Itoa(id), &p, check); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (c *Client) ListProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return c.getList(ctx, "list_by_category", "/products/category/"+url.PathEscape(category))
}

func (c *Client) getList(ctx context.Context, op, path string) ([]Product, error) {
	var out []Product
	check := func() error {
		if out == nil {
			return errors.New("expected a product array, got null")
		}
		for i, p := range out {
			if err := p.Validate(); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		return nil
	}
	if err := c.getJSON(ctx, op, path, &out, check); err != nil {
		return nil, err
	}
	return out, nil
}

// getJSON performs the GET with the configured retry policy, decodes the
// body into dst and runs check against the decoded value.
func (c *Client) getJSON(ctx context.Context, op, path string, dst any, check func() error) error {
	attempts := c.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := c.Retry.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		body, retryable, err := c.fetch(ctx, path)
		c.Metrics.observeDuration(op, time.Since(start))

		if err == nil {
			if err := json.Unmarshal(body, dst); err != nil {
				c.Metrics.observeResult(op, "decode_error")
				return fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
			}
			if err := check(); err != nil {
				c.Metrics.observeResult(op, "decode_error")
				return fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
			}
			c.Metrics.observeResult(op, "ok")
			return nil
		}

		c.Metrics.observeResult(op, "network_error")
		lastErr = err
		if !retryable || attempt == attempts || ctx.Err() != nil {
			break
		}

		c.logger().Debug("catalog request failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := sleep(ctx, delay); err != nil {
			break
		}
		delay = c.nextDelay(delay)
	}

	c.logger().Warn("catalog request failed", zap.String("op", op), zap.String("path", path), zap.Error(lastErr))
	return lastErr
}

// fetch returns the response body of a 2xx GET. On failure it also reports
// whether sending the request again could succeed: transport errors, 5xx
// and 429 can, any other status cannot.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("%w: GET %s: status=%d", ErrNetwork, path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	return body, false, nil
}

func (c *Client) nextDelay(d time.Duration) time.Duration {
	factor := c.Retry.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	next := time.Duration(float64(d) * factor)
	if c.Retry.MaxDelay > 0 && next > c.Retry.MaxDelay {
		next = c.Retry.MaxDelay
	}
	return next
}

func (c *Client) httpClient() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *Client) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
