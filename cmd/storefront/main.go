package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/shop"
	"Storefront/internal/storage"
	"Storefront/pkg/config"
	"Storefront/pkg/kit"
)

func main() {
	service := "storefront"
	cfg := config.Load()

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client := catalog.NewClient(cfg.CatalogURL)
	client.Client.Timeout = cfg.CatalogTimeout
	client.Log = log.Named("catalog")
	client.Metrics = catalog.NewClientMetrics(reg)
	if cfg.CatalogRetries > 1 {
		client.Retry = catalog.DefaultRetryConfig()
		client.Retry.MaxAttempts = cfg.CatalogRetries
	}

	st, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal("storage init failed", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeStorage()

	store := cart.NewStore(st, cart.Options{
		Coalesce:    cfg.CartCoalesce,
		SaveTimeout: 5 * time.Second,
		Log:         log.Named("cart"),
		Metrics:     cart.NewMetrics(reg),
	})

	go func() {
		// Load logs the outcome itself; the error only says why the stored
		// cart was not used.
		_ = store.Load(ctx)
	}()

	s := &shop.Server{
		Catalog: client,
		Cart:    store,
		Storage: st,
		Log:     log,
		Limiter: kit.NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute),
	}
	h := shop.NewHandler(s, kit.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: true,
		MetricsToken:   cfg.MetricsToken,
	})

	log.Info("starting",
		zap.String("env", cfg.AppEnv),
		zap.String("catalog_url", client.BaseURL),
		zap.String("storage", cfg.StorageDriver),
	)

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}

	// Let queued cart saves reach storage before the process exits.
	fctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Close(fctx); err != nil {
		log.Warn("cart flush incomplete", zap.Error(err))
	}
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, func(), error) {
	noop := func() {}

	switch cfg.StorageDriver {
	case "memory":
		return storage.NewMemStore(), noop, nil
	case "file":
		fs, err := storage.NewFileStore(cfg.StorageDir)
		if err != nil {
			return nil, noop, err
		}
		return fs, noop, nil
	case "postgres", "mysql":
		if cfg.DatabaseURL == "" {
			return nil, noop, fmt.Errorf("DATABASE_URL is required for %s storage", cfg.StorageDriver)
		}

		dialect := storage.Postgres
		if cfg.StorageDriver == "mysql" {
			dialect = storage.MySQL
		}

		octx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		db, err := storage.OpenSQL(octx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}

		ss := storage.NewSQLStore(db, dialect)
		if err := ss.Init(octx); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		return ss, func() { _ = db.Close() }, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
