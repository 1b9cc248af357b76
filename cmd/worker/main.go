package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/health"
	"github.com/amillerrr/video2music/internal/logger"
	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/observability"
	"github.com/amillerrr/video2music/internal/orchestrator"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/internal/worker"
)

const (
	ServiceName           = "video2music-worker"
	AWSConfigTimeout      = 10 * time.Second
	ShutdownTimeout       = 5 * time.Second
	TracerShutdownTimeout = 5 * time.Second
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadWorker()
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

	sqsClient := sqs.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	repo := storage.NewRequestRepository(dynamoClient, cfg.AWS.DynamoDBTable)
	orch := orchestrator.FromConfig(cfg, repo, log)

	healthConfig := health.DefaultConfig(ServiceName, log)
	healthConfig.Version = cfg.App.Version
	healthConfig.Mode = string(orch.Mode())
	healthConfig.
		Register("sqs", health.SQSProbe(sqsClient, cfg.AWS.SQSQueueURL)).
		Register("dynamodb", health.DynamoDBProbe(dynamoClient, cfg.AWS.DynamoDBTable))
	checker := health.NewChecker(healthConfig)

	w := worker.New(&worker.Config{
		SQSClient:     sqsClient,
		QueueURL:      cfg.AWS.SQSQueueURL,
		Processor:     orch,
		MaxConcurrent: cfg.Worker.MaxConcurrentJobs,
		Logger:        log,
	})

	metricsServer := newMetricsServer(cfg.Worker.MetricsPort, checker)
	go func() {
		log.Info("Starting metrics server", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server error", "error", err)
		}
	}()

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Worker started", "mode", orch.Mode())
	w.Run(runCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown metrics server", "error", err)
	}

	log.Info("Worker shutdown complete")
}

func newMetricsServer(port int, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /health", checker.Handler())
	mux.HandleFunc("GET /health/deep", checker.DeepHandler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
