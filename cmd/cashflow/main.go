package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"cashflow/internal/amqp"
	"cashflow/internal/cache"
	"cashflow/internal/config"
	"cashflow/internal/core"
	apphttp "cashflow/internal/http"
	"cashflow/internal/ledger"
	"cashflow/internal/log"
	"cashflow/internal/metrics"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}),
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err, log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := ledger.New(storeOptions(cfg, logger)...)

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
		defer m.ObserveStore(store)()
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	detector := security.NewDetector()
	summaries := cache.NewLRUCache[core.Summary](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(time.Minute, logger)
	cacheManager.Register(summaries)

	opts := apphttp.Options{
		Logger:       logger,
		Metrics:      m,
		Limiter:      limiter,
		Detector:     detector,
		SummaryCache: summaries,
	}

	var publisher *amqp.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPRoutingKey, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		publisher = amqp.NewPublisher(client, cfg.AMQPRoutingKey, amqp.PublisherOptions{Logger: logger})
		defer store.Subscribe(publisher.Enqueue)()
		opts.ReadyChecks = append(opts.ReadyChecks, apphttp.ReadyCheck{Name: "amqp", Check: client.Ping})
		logger.Info("Change feed enabled", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
	} else {
		logger.Info("Change feed disabled - no AMQP_URL provided")
	}

	if m != nil {
		registerMetrics(m, limiter, detector, summaries, publisher)
	}

	srv := apphttp.NewServer(cfg.Addr(), store, opts)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cashflow server", "port", cfg.Port, "id_scheme", cfg.IDScheme, "seeded", cfg.SeedData)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error { return cacheManager.Run(gctx) })
	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}

	return g.Wait()
}

func storeOptions(cfg *config.Config, logger *log.Logger) []ledger.Option {
	opts := []ledger.Option{ledger.WithLogger(logger)}
	if cfg.IDScheme == "sequence" {
		opts = append(opts, ledger.WithIDGenerator(ledger.NewSequenceGenerator("", 0)))
	}
	if !cfg.SeedData {
		opts = append(opts, ledger.Empty())
	}
	return opts
}

func registerMetrics(m *metrics.Metrics, limiter *ratelimit.Limiter, detector *security.Detector, summaries *cache.LRUCache[core.Summary], publisher *amqp.Publisher) {
	m.CounterFunc("rate_limit", "rejected_total", "Mutating requests rejected by the rate limiter.", func() float64 {
		return float64(limiter.GetMetrics().TotalHits)
	})
	m.GaugeFunc("rate_limit", "clients", "Clients currently tracked by the rate limiter.", func() float64 {
		return float64(limiter.GetMetrics().ClientCount)
	})
	m.CounterFunc("security", "suspicious_requests_total", "Requests matching a probing pattern.", func() float64 {
		return float64(detector.SuspiciousRequests())
	})
	m.GaugeFunc("cache", "summary_entries", "Summaries currently cached.", func() float64 {
		return float64(summaries.Size())
	})
	if publisher == nil {
		return
	}
	m.CounterFunc("amqp", "published_total", "Change messages published.", func() float64 {
		return float64(publisher.Stats().Published)
	})
	m.CounterFunc("amqp", "failed_total", "Change messages that could not be published.", func() float64 {
		return float64(publisher.Stats().Failed)
	})
	m.CounterFunc("amqp", "dropped_total", "Change messages dropped because the buffer was full.", func() float64 {
		return float64(publisher.Stats().Dropped)
	})
	m.GaugeFunc("amqp", "pending_messages", "Change messages waiting to be published.", func() float64 {
		return float64(publisher.Stats().Pending)
	})
}
