// Command ingestion accepts document changes over HTTP and publishes them to
// the document-ingest topic for the indexer.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/resilience"
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
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	monitor := health.NewMonitor("ingestion", 0)

	var status publisher.StatusRecorder
	var pgPing func(context.Context) error
	if cfg.Postgres.Host != "" {
		pg, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		status, pgPing = pg, pg.Ping
	}
	monitor.Watch("postgres", health.PingCheck(pgPing, true))

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	breaker := resilience.NewCircuitBreaker("kafka-"+cfg.Kafka.Topics.DocumentIngest, resilience.BreakerConfig{})
	monitor.Watch("kafka", func(ctx context.Context) health.Result {
		if state := breaker.State(); state != resilience.StateClosed {
			return health.Result{Status: health.StatusUnavailable, Detail: "circuit " + state.String()}
		}
		return health.Result{Status: health.StatusServing}
	})

	h := handler.New(publisher.New(producer, status, breaker))
	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /health/live", monitor.LiveHandler())
	mux.HandleFunc("GET /health/ready", monitor.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	var chain http.Handler = mux
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
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
