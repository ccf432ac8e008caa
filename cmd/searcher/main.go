package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gerdreiss/seroost/internal/analytics"
	"github.com/gerdreiss/seroost/internal/indexer/segment"
	"github.com/gerdreiss/seroost/internal/searcher/cache"
	"github.com/gerdreiss/seroost/internal/searcher/executor"
	"github.com/gerdreiss/seroost/internal/searcher/handler"
	"github.com/gerdreiss/seroost/internal/searcher/reload"
	"github.com/gerdreiss/seroost/pkg/config"
	"github.com/gerdreiss/seroost/pkg/health"
	"github.com/gerdreiss/seroost/pkg/kafka"
	"github.com/gerdreiss/seroost/pkg/logger"
	"github.com/gerdreiss/seroost/pkg/metrics"
	"github.com/gerdreiss/seroost/pkg/middleware"
	pkgredis "github.com/gerdreiss/seroost/pkg/redis"
	"github.com/gerdreiss/seroost/web"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	indexPath := flag.String("index", "", "index file to serve (overrides indexer.indexPath)")
	port := flag.Int("port", 0, "listen port (overrides server.port)")
	flag.Parse()

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *indexPath != "" {
		cfg.Indexer.IndexPath = *indexPath
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting query server", "port", cfg.Server.Port, "index", cfg.Indexer.IndexPath)

	model, err := segment.Load(cfg.Indexer.IndexPath)
	if err != nil {
		slog.Error("failed to load index", "path", cfg.Indexer.IndexPath, "error", err)
		os.Exit(1)
	}
	exec := executor.New(model)
	slog.Info("index loaded", "documents", model.Len(), "terms", model.Vocabulary(), "fingerprint", model.Fingerprint())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		m.IndexDocuments.Set(float64(model.Len()))
		m.IndexTerms.Set(float64(model.Vocabulary()))
		shutdown := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdown(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("model", func(ctx context.Context) health.ComponentHealth {
		if cur := exec.Model(); cur != nil {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents", cur.Len())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no model loaded"}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 10000, 100, 5*time.Second)
		collector.Start(ctx)
		defer collector.Close()
	}

	reloadOpts := []reload.Option{
		reload.WithMetrics(m),
		reload.WithListener(func(ev analytics.ReloadEvent) {
			aggregator.RecordReload(ev)
			if collector != nil {
				collector.TrackReload(ev)
			}
		}),
	}
	if queryCache != nil {
		reloadOpts = append(reloadOpts, reload.WithCache(queryCache))
	}
	reloader := reload.New(cfg.Indexer.IndexPath, exec, reloadOpts...)
	go reloader.WatchSignals(ctx)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, reloader.HandleIndexComplete())
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("index.complete consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for index.complete events", "topic", cfg.Kafka.Topics.IndexComplete)
	}

	h := handler.New(exec, handler.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MaxResults:    cfg.Search.MaxResults,
		Timeout:       cfg.Search.Timeout,
		MaxQueryBytes: cfg.Server.MaxQueryBytes,
	}, handler.Deps{
		Cache:      queryCache,
		Collector:  collector,
		Aggregator: aggregator,
		Reloader:   reloader,
		Metrics:    m,
		Assets:     web.Assets(),
	})
	mux := h.Routes(checker, analytics.NewHandler(aggregator).Stats)

	var limiter *middleware.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		go limiter.Cleanup(ctx, 5*time.Minute)
	}
	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.CORSOrigins...)),
		middleware.RateLimit(limiter),
	}
	if m != nil {
		mws = append(mws, middleware.Metrics(m))
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("query server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	// in-flight requests finish before the deferred closers run
	<-shutdownDone
	slog.Info("query server stopped")
}
