package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/triesearch/pkg/postgres"
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
	slog.Info("starting indexer service",
		"data_dir", cfg.Indexer.DataDir,
		"encoding", cfg.Indexer.Encoding,
	)

	m := metrics.New(nil)

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
	defer producer.Close()

	engine, err := indexer.NewEngine(cfg.Indexer, indexer.Options{
		PostingsCacheSize: cfg.Search.PostingsCacheSize,
		Metrics:           m,
		OnFlush:           consumer.PublishFlushes(producer),
		OnDelete:          consumer.PublishDeletes(producer),
	})
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var status consumer.StatusRecorder
	if cfg.Postgres.Host != "" {
		pg, err := postgres.Connect(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, document status tracking disabled", "error", err)
		} else {
			defer pg.Close()
			status = pg
		}
	}

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	engine.StartFlushLoop(ctx)

	ingest := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		cfg.Kafka.ConsumerGroup,
		consumer.HandleMessage(engine, status),
	)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
		"generations", engine.Stats().Generations,
	)

	if err := ingest.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}
	if err := ingest.Close(); err != nil {
		slog.Error("closing consumer", "error", err)
	}

	slog.Info("flushing buffered documents before shutdown")
	if err := engine.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}

	slog.Info("indexer service stopped")
}
