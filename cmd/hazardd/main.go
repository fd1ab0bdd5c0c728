package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/hazard-proximity-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hazard-proximity-service/internal/adapter/kafka"
	"github.com/couchcryptid/hazard-proximity-service/internal/app"
	"github.com/couchcryptid/hazard-proximity-service/internal/config"
	"github.com/couchcryptid/hazard-proximity-service/internal/observability"
	"github.com/couchcryptid/hazard-proximity-service/internal/pipeline"
)

func main() {
	_ = godotenv.Load() // optional .env

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := app.NewCatalog(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to build catalog", "error", err)
		os.Exit(1)
	}
	warnings := app.NewWarningService(cfg, cat, metrics, logger)
	geocoder := app.NewGeocoder(cfg, metrics, logger)

	// A failed initial load leaves /readyz failing until POST /v1/reload succeeds.
	if err := cat.Load(ctx); err != nil {
		logger.Error("initial hazard load failed", "error", err)
	}

	readiness := httpadapter.Readiness{cat}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(warnings, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		readiness = append(readiness, p)
		logger.Info("kafka pipeline enabled",
			"brokers", cfg.KafkaBrokers,
			"source_topic", cfg.KafkaSourceTopic,
			"sink_topic", cfg.KafkaSinkTopic,
		)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Dependencies{
		Warnings: warnings,
		Catalog:  cat,
		Geocoder: geocoder,
		Ready:    readiness,
	}, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start alert pipeline.
	if p != nil {
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
