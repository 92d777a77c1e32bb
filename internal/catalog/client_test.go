package catalog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"Storefront/internal/catalog"
	"Storefront/pkg/kit"
)

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &catalog.Server{Store: catalog.NewStore(), Log: zap.NewNop()}
	ts := httptest.NewServer(catalog.NewHandler(s, kit.HTTPDeps{Log: zap.NewNop(), Service: "catalog"}))
	t.Cleanup(ts.Close)
	return ts
}

func newRawTS(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestClient_ListProducts(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL + "/")

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != len(catalog.FixtureProducts()) {
		t.Fatalf("len=%d", len(products))
	}
	if products[0].ID != 1 || products[0].Price != 109.95 || products[0].Rating.Count != 120 {
		t.Fatalf("first product=%+v", products[0])
	}
}

func TestClient_GetProduct(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL)

	p, err := c.GetProduct(context.Background(), 9)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != 9 || p.Category != "electronics" {
		t.Fatalf("product=%+v", p)
	}
}

func TestClient_GetProduct_NotFoundIsNetworkError(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL)

	_, err := c.GetProduct(context.Background(), 404)
	if !errors.Is(err, catalog.ErrNetwork) {
		t.Fatalf("err=%v, want ErrNetwork", err)
	}
}

func TestClient_ListProductsByCategory_EscapesPath(t *testing.T) {
	ts := newCatalogTS(t)
	c := catalog.NewClient(ts.URL)

	products, err := c.ListProductsByCategory(context.Background(), "men's clothing")
	if err != nil {
		t.Fatalf("list category: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("len=%d", len(products))
	}
	for _, p := range products {
		if p.Category != "men's clothing" {
			t.Fatalf("unexpected category %q", p.Category)
		}
	}

	empty, err := c.ListProductsByCategory(context.Background(), "a/b?c")
	if err != nil {
		t.Fatalf("list odd category: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("want empty non-nil slice, got %#v", empty)
	}
}

func TestClient_ServerErrorIsNetworkError(t *testing.T) {
	ts, hits := newRawTS(t, http.StatusInternalServerError, `{"error":"boom"}`)
	c := catalog.NewClient(ts.URL)

	_, err := c.ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrNetwork) {
		t.Fatalf("err=%v, want ErrNetwork", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d, want a single attempt", hits.Load())
	}

	// A retry from the caller re-issues the same request.
	_, err = c.ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrNetwork) {
		t.Fatalf("retry err=%v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits=%d", hits.Load())
	}
}

func TestClient_DecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		call func(*catalog.Client) error
	}{
		{"malformed json", `[{"id":1,`, func(c *catalog.Client) error {
			_, err := c.ListProducts(context.Background())
			return err
		}},
		{"null list", `null`, func(c *catalog.Client) error {
			_, err := c.ListProducts(context.Background())
			return err
		}},
		{"null category list", `null`, func(c *catalog.Client) error {
			_, err := c.ListProductsByCategory(context.Background(), "jewelery")
			return err
		}},
		{"object instead of array", `{"id":1}`, func(c *catalog.Client) error {
			_, err := c.ListProducts(context.Background())
			return err
		}},
		{"wrong field type", `[{"id":"one","price":1}]`, func(c *catalog.Client) error {
			_, err := c.ListProducts(context.Background())
			return err
		}},
		{"negative price", `[{"id":1,"price":-2}]`, func(c *catalog.Client) error {
			_, err := c.ListProducts(context.Background())
			return err
		}},
		{"empty body for single product", ``, func(c *catalog.Client) error {
			_, err := c.GetProduct(context.Background(), 999)
			return err
		}},
		{"null product", `null`, func(c *catalog.Client) error {
			_, err := c.GetProduct(context.Background(), 999)
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, _ := newRawTS(t, http.StatusOK, tc.body)
			err := tc.call(catalog.NewClient(ts.URL))
			if !errors.Is(err, catalog.ErrDecode) {
				t.Fatalf("err=%v, want ErrDecode", err)
			}
		})
	}
}

func TestClient_TransportFailureIsNetworkError(t *testing.T) {
	ts, _ := newRawTS(t, http.StatusOK, `[]`)
	url := ts.URL
	ts.Close()

	_, err := catalog.NewClient(url).ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrNetwork) {
		t.Fatalf("err=%v, want ErrNetwork", err)
	}
}

func TestClient_RetryStopsAtMaxAttempts(t *testing.T) {
	ts, hits := newRawTS(t, http.StatusBadGateway, ``)

	c := catalog.NewClient(ts.URL)
	c.Retry = catalog.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, BackoffFactor: 2, MaxDelay: 5 * time.Millisecond}

	_, err := c.ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrNetwork) {
		t.Fatalf("err=%v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d, want 3", hits.Load())
	}
}

func TestClient_RetryOnlyTransientStatuses(t *testing.T) {
	cases := []struct {
		status   int
		wantHits int32
	}{
		{http.StatusNotFound, 1},
		{http.StatusBadRequest, 1},
		{http.StatusForbidden, 1},
		{http.StatusTooManyRequests, 3},
		{http.StatusInternalServerError, 3},
		{http.StatusServiceUnavailable, 3},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			ts, hits := newRawTS(t, tc.status, ``)

			c := catalog.NewClient(ts.URL)
			c.Retry = catalog.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}

			_, err := c.GetProduct(context.Background(), 4242)
			if !errors.Is(err, catalog.ErrNetwork) {
				t.Fatalf("err=%v", err)
			}
			if hits.Load() != tc.wantHits {
				t.Fatalf("hits=%d, want %d", hits.Load(), tc.wantHits)
			}
		})
	}
}

func TestClient_RetryRecovers(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"id":3,"title":"x","price":1.5,"rating":{"rate":1,"count":2}}]`))
	}))
	t.Cleanup(ts.Close)

	c := catalog.NewClient(ts.URL)
	c.Retry = catalog.RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}

	products, err := c.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(products) != 1 || products[0].ID != 3 {
		t.Fatalf("products=%+v", products)
	}
}

func TestClient_DecodeErrorIsNotRetried(t *testing.T) {
	ts, hits := newRawTS(t, http.StatusOK, `not json`)

	c := catalog.NewClient(ts.URL)
	c.Retry = catalog.RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond}

	_, err := c.ListProducts(context.Background())
	if !errors.Is(err, catalog.ErrDecode) {
		t.Fatalf("err=%v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d", hits.Load())
	}
}

func TestClient_CanceledContext(t *testing.T) {
	ts := newCatalogTS(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := catalog.NewClient(ts.URL).ListProducts(ctx)
	if !errors.Is(err, catalog.ErrNetwork) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestClient_Metrics(t *testing.T) {
	ts := newCatalogTS(t)

	reg := prometheus.NewRegistry()
	c := catalog.NewClient(ts.URL)
	c.Metrics = catalog.NewClientMetrics(reg)

	if _, err := c.ListProducts(context.Background()); err != nil {
		t.Fatalf("list: %v", err)
	}
	_, _ = c.GetProduct(context.Background(), 404)

	if got := testutil.ToFloat64(c.Metrics.Requests.WithLabelValues("list_products", "ok")); got != 1 {
		t.Fatalf("ok=%v", got)
	}
	if got := testutil.ToFloat64(c.Metrics.Requests.WithLabelValues("get_product", "network_error")); got != 1 {
		t.Fatalf("network_error=%v", got)
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := catalog.NewClient("")
	if c.BaseURL != catalog.DefaultBaseURL {
		t.Fatalf("base=%q", c.BaseURL)
	}
	if c.Retry.MaxAttempts != 1 {
		t.Fatalf("attempts=%d", c.Retry.MaxAttempts)
	}
	if c.Client.Timeout != catalog.DefaultTimeout {
		t.Fatalf("timeout=%v", c.Client.Timeout)
	}
}
