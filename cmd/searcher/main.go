package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/collector"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/triesearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	m := metrics.New(nil)

	engine, err := indexer.NewEngine(cfg.Indexer, indexer.Options{
		PostingsCacheSize: cfg.Search.PostingsCacheSize,
		ReadOnly:          true,
		Metrics:           m,
	})
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	slog.Info("index opened", "generations", engine.Stats().Generations)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.StartRefreshLoop(ctx, cfg.Search.RefreshInterval)

	// Searchers read announcements without a consumer group so that every
	// replica refreshes.
	var invalidator consumer.Invalidator
	if queryCache != nil {
		invalidator = queryCache
	}
	announcements := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete, "",
		consumer.HandleIndexComplete(engine, invalidator))
	go func() {
		if err := announcements.Start(ctx); err != nil {
			slog.Error("index-complete consumer error", "error", err)
		}
	}()
	defer announcements.Close()

	var scorer ranker.Factory = ranker.Null
	if cfg.Search.Ranked {
		scorer = ranker.TFIDF
	}
	coll := collector.New(collector.Config{
		Workers:  cfg.Search.Workers,
		Scorer:   scorer,
		Obsolete: engine.Status(),
		Metrics:  m,
	})

	monitor := health.NewMonitor("searcher", cfg.Search.Timeout)
	monitor.Watch("index", func(ctx context.Context) health.Result {
		stats := engine.Stats()
		if stats.Generations == 0 {
			return health.Result{Status: health.StatusDegraded, Detail: "no generations loaded"}
		}
		return health.Result{
			Status: health.StatusServing,
			Detail: fmt.Sprintf("%d generations, %d documents", stats.Generations, stats.Docs-stats.ObsoleteDocs),
		}
	})
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	monitor.Watch("redis", health.PingCheck(redisPing, true))

	h := handler.New(handler.Config{
		Executor:     executor.New(engine, coll, m),
		Parser:       parser.New(engine.Analyzer(), cfg.Search.DefaultField, cfg.Search.DefaultSimilarity),
		Cache:        queryCache,
		Stats:        engine,
		Metrics:      m,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	})

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", monitor.LiveHandler())
	mux.HandleFunc("GET /health/ready", monitor.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Search.Timeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
