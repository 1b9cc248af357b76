package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/amillerrr/video2music/internal/api"
	"github.com/amillerrr/video2music/internal/auth"
	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/health"
	"github.com/amillerrr/video2music/internal/logger"
	"github.com/amillerrr/video2music/internal/observability"
	"github.com/amillerrr/video2music/internal/orchestrator"
	"github.com/amillerrr/video2music/internal/storage"
)

const (
	ServiceName           = "video2music-api"
	ShutdownTimeout       = 30 * time.Second
	TracerShutdownTimeout = 5 * time.Second
	AWSConfigTimeout      = 10 * time.Second
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadAPI()
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

	// Initialize AWS clients
	ctx, cancel := context.WithTimeout(context.Background(), AWSConfigTimeout)
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg)
	cancel()
	if err != nil {
		log.Error("Failed to load AWS config", "error", err)
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	repo := storage.NewRequestRepository(dynamoClient, cfg.AWS.DynamoDBTable)
	videos := storage.NewVideoStore(s3Client, storage.VideoStoreConfig{
		Bucket:        cfg.AWS.VideoBucket,
		Region:        cfg.AWS.Region,
		PublicBaseURL: cfg.AWS.PublicBaseURL,
		PresignTTL:    cfg.AWS.PresignTTL,
	})

	healthConfig := health.DefaultConfig(ServiceName, log)
	healthConfig.Version = cfg.App.Version
	healthConfig.Mode = string(orchestrator.ModeFor(cfg))
	healthConfig.
		Register("s3", health.S3Probe(s3Client, cfg.AWS.VideoBucket)).
		Register("dynamodb", health.DynamoDBProbe(dynamoClient, cfg.AWS.DynamoDBTable))

	// Processing runs in this process unless it is handed to the worker.
	var dispatcher orchestrator.Dispatcher
	if cfg.API.QueueDispatch {
		sqsClient := sqs.NewFromConfig(awsCfg)
		dispatcher = orchestrator.NewQueueDispatcher(sqsClient, cfg.AWS.SQSQueueURL, repo, log)
		healthConfig.Register("sqs", health.SQSProbe(sqsClient, cfg.AWS.SQSQueueURL))
		log.Info("Dispatching jobs through SQS", "queueURL", cfg.AWS.SQSQueueURL)
	} else {
		orch := orchestrator.FromConfig(cfg, repo, log)
		dispatcher = orchestrator.NewInlineDispatcher(orch)
		log.Info("Processing jobs inline", "mode", orch.Mode())
	}

	jwtSecret, err := cfg.GetJWTSecret()
	if err != nil {
		log.Error("Failed to get JWT secret", "error", err)
		os.Exit(1)
	}
	verifier, err := auth.NewVerifier(jwtSecret)
	if err != nil {
		log.Error("Failed to create token verifier", "error", err)
		os.Exit(1)
	}

	rateLimiterConfig := auth.DefaultRateLimiterConfig()
	rateLimiterConfig.TrustedProxyHops = cfg.API.TrustedProxyHops

	server, err := api.NewServer(&api.ServerConfig{
		Config:        cfg,
		Logger:        log,
		Store:         repo,
		Videos:        videos,
		Dispatcher:    dispatcher,
		Verifier:      verifier,
		RateLimiter:   auth.NewRateLimiter(rateLimiterConfig),
		HealthChecker: health.NewChecker(healthConfig),
	})
	if err != nil {
		log.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

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
