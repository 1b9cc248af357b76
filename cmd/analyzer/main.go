package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amillerrr/video2music/internal/analyzer"
	"github.com/amillerrr/video2music/internal/catalog"
	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/logger"
	"github.com/amillerrr/video2music/internal/observability"
	"github.com/amillerrr/video2music/internal/pipeline"
	"github.com/amillerrr/video2music/internal/storage"
)

const (
	ServiceName           = "video2music-analyzer"
	AWSConfigTimeout      = 10 * time.Second
	ShutdownTimeout       = 30 * time.Second
	TracerShutdownTimeout = 5 * time.Second
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadAnalyzer()
	if err != nil {
		log.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	log = logger.New(cfg.Observability.LogLevel)
	slog.SetDefault(log)

	shutdownTracer, err := observability.InitTracer(context.Background(), ServiceName, cfg)
	if err != nil {
		log.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), TracerShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(ctx); err != nil {
			log.Error("Failed to shutdown tracer", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewRequestRepositoryFromConfig(awsCfg, cfg.AWS.DynamoDBTable)
	if err != nil {
		log.Error("Failed to initialize request repository", "error", err)
		os.Exit(1)
	}

	// One catalog client per process so its access token is reused.
	catalogClient := catalog.New(catalog.ConfigFrom(cfg), nil, log)
	if !catalogClient.Configured() {
		log.Warn("Catalog credentials not configured, recommendations will use the fallback library")
	}

	graph := pipeline.NewGraph(catalogClient, log)
	handler := analyzer.NewHandler(graph, repo, cfg.Analysis.FunctionToken, log)
	server := analyzer.NewServer(cfg.Analyzer.Port, handler, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel = context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	log.Info("Server shutdown complete")
}
