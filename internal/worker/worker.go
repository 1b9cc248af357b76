// Package worker consumes queued analysis jobs and runs them through the
// orchestrator.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video2music/pkg/models"
)

// SQS configuration constants
const (
	SQSMaxMessages       = 1
	SQSWaitTimeSeconds   = 20
	SQSVisibilityTimeout = 900 // 15 minutes
	RetryBackoffPeriod   = 5 * time.Second
	DefaultMaxConcurrent = 1
)

var tracer = otel.Tracer("video2music-worker")

// SQSAPI is the queue surface the worker needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Processor runs one processing attempt. *orchestrator.Orchestrator
// satisfies it.
type Processor interface {
	Process(ctx context.Context, job models.AnalysisJob) error
}

// Worker polls the job queue.
type Worker struct {
	sqs           SQSAPI
	queueURL      string
	processor     Processor
	maxConcurrent int
	backoff       time.Duration
	log           *slog.Logger
}

// Config holds worker dependencies.
type Config struct {
	SQSClient     SQSAPI
	QueueURL      string
	Processor     Processor
	MaxConcurrent int
	Logger        *slog.Logger
}

// New creates a new Worker with the given configuration.
func New(cfg *Config) *Worker {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Worker{
		sqs:           cfg.SQSClient,
		queueURL:      cfg.QueueURL,
		processor:     cfg.Processor,
		maxConcurrent: maxConcurrent,
		backoff:       RetryBackoffPeriod,
		log:           cfg.Logger,
	}
}

// Run polls until ctx is cancelled, then waits for in-flight jobs.
func (w *Worker) Run(ctx context.Context) {
	w.log.InfoContext(ctx, "Starting queue polling",
		"queueURL", w.queueURL,
		"maxConcurrent", w.maxConcurrent,
	)

	sem := make(chan struct{}, w.maxConcurrent)
	var wg sync.WaitGroup
	defer func() {
		w.log.Info("Waiting for in-progress jobs to complete...")
		wg.Wait()
		w.log.Info("All jobs completed, shutting down")
	}()

messageLoop:
	for {
		if ctx.Err() != nil {
			return
		}

		result, err := w.sqs.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.queueURL),
			MaxNumberOfMessages: SQSMaxMessages,
			WaitTimeSeconds:     SQSWaitTimeSeconds,
			VisibilityTimeout:   SQSVisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.ErrorContext(ctx, "Failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}

		for _, msg := range result.Messages {
			select {
			case sem <- struct{}{}:
				wg.Add(1)
				go func(msg types.Message) {
					defer wg.Done()
					defer func() { <-sem }()
					w.handle(ctx, msg)
				}(msg)
			case <-ctx.Done():
				w.log.InfoContext(ctx, "Context cancelled, stopping message processing")
				break messageLoop
			}
		}
	}
}

// handle runs one attempt and always deletes the message afterwards: the
// outcome is already recorded in the lifecycle store and redelivery would
// be an unsupported retry.
func (w *Worker) handle(ctx context.Context, msg types.Message) {
	messageID := safeStringDeref(msg.MessageId)

	if err := w.processMessage(ctx, msg); err != nil {
		w.log.ErrorContext(ctx, "Failed to process message",
			"error", err,
			"messageId", messageID,
		)
	}

	_, err := w.sqs.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		w.log.ErrorContext(ctx, "Failed to delete message", "error", err, "messageId", messageID)
	}
}

func safeStringDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (w *Worker) processMessage(ctx context.Context, msg types.Message) error {
	ctx, span := tracer.Start(ctx, "process-message")
	defer span.End()

	if msg.Body == nil {
		return fmt.Errorf("%w: empty message body", models.ErrJobParseFailed)
	}

	var job models.AnalysisJob
	if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
		return fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}

	span.SetAttributes(
		attribute.String("request.id", job.RequestID),
		attribute.String("job.id", job.JobID),
	)
	w.log.InfoContext(ctx, "Processing job", "requestId", job.RequestID, "jobId", job.JobID)

	if err := w.processor.Process(ctx, job); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
