package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/pkg/models"
)

// DispatchFailedMessage is recorded on a request whose job could not be handed off.
const DispatchFailedMessage = "Failed to start processing pipeline"

// Dispatcher starts processing for a newly created request. Errors are
// returned for logging only; the request row already reflects them.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.AnalysisJob) error
}

// InlineDispatcher runs the attempt in the caller's goroutine.
type InlineDispatcher struct {
	orch *Orchestrator
}

// NewInlineDispatcher creates a dispatcher that calls o.Process directly.
func NewInlineDispatcher(o *Orchestrator) *InlineDispatcher {
	return &InlineDispatcher{orch: o}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, job models.AnalysisJob) error {
	return d.orch.Process(ctx, job)
}

// SQSAPI is the subset of the SQS client used to publish jobs.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// QueueDispatcher publishes jobs to SQS for the worker.
type QueueDispatcher struct {
	client   SQSAPI
	queueURL string
	store    Store
	log      *slog.Logger
}

// NewQueueDispatcher creates a dispatcher that publishes to queueURL.
func NewQueueDispatcher(client SQSAPI, queueURL string, store Store, log *slog.Logger) *QueueDispatcher {
	return &QueueDispatcher{client: client, queueURL: queueURL, store: store, log: log}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, job models.AnalysisJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return d.failed(ctx, job, fmt.Errorf("failed to marshal job: %w", err))
	}

	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"RequestId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.RequestID),
			},
		},
	})
	if err != nil {
		return d.failed(ctx, job, fmt.Errorf("failed to queue job: %w", err))
	}

	d.log.InfoContext(ctx, "Job queued", "requestId", job.RequestID, "jobId", job.JobID)
	return nil
}

func (d *QueueDispatcher) failed(ctx context.Context, job models.AnalysisJob, cause error) error {
	metrics.DispatchFailures.Inc()
	ctx = context.WithoutCancel(ctx)

	if err := d.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status:       models.StatusFailed,
		ErrorMessage: DispatchFailedMessage,
	}); err != nil {
		d.log.ErrorContext(ctx, "Failed to mark request as failed",
			"requestId", job.RequestID,
			"error", err,
		)
	}
	if job.JobID != "" {
		if err := d.store.UpdateJob(ctx, job.RequestID, job.JobID, storage.JobUpdate{
			Status:       models.JobFailed,
			ErrorMessage: DispatchFailedMessage,
		}); err != nil {
			d.log.WarnContext(ctx, "Failed to mark job as failed", "jobId", job.JobID, "error", err)
		}
	}
	return cause
}
