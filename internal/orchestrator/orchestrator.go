// Package orchestrator drives one processing attempt for a request, either by
// delegating to the remote analysis function or by producing a deterministic
// simulated result, and records every status change in the lifecycle store.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/simulation"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/pkg/models"
)

var tracer = otel.Tracer("video2music-orchestrator")

// Mode selects how a request is analysed.
type Mode string

const (
	ModeRemote     Mode = "remote"
	ModeSimulation Mode = "simulation"
)

// ModeFor picks remote analysis only when AI credentials are present and a
// function URL is configured.
func ModeFor(cfg *config.Config) Mode {
	if cfg.RemoteAnalysisEnabled() {
		return ModeRemote
	}
	return ModeSimulation
}

// Store is the subset of the lifecycle store the orchestrator writes to.
type Store interface {
	UpdateRequestStatus(ctx context.Context, requestID string, u storage.StatusUpdate) error
	UpdateJob(ctx context.Context, requestID, jobID string, u storage.JobUpdate) error
}

// Config holds orchestrator dependencies.
type Config struct {
	Store           Store
	Invoker         Invoker
	Mode            Mode
	SimulationDelay time.Duration
	Logger          *slog.Logger
}

// Orchestrator runs processing attempts. It holds no per-request state.
type Orchestrator struct {
	store   Store
	invoker Invoker
	mode    Mode
	delay   time.Duration
	log     *slog.Logger
}

// New creates an Orchestrator. Remote mode without an Invoker falls back to
// simulation.
func New(cfg Config) *Orchestrator {
	mode := cfg.Mode
	if mode == ModeRemote && cfg.Invoker == nil {
		mode = ModeSimulation
	}
	if mode == "" {
		mode = ModeSimulation
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:   cfg.Store,
		invoker: cfg.Invoker,
		mode:    mode,
		delay:   cfg.SimulationDelay,
		log:     log,
	}
}

// FromConfig builds the Orchestrator a service runs with. Remote mode posts
// to the configured analysis function.
func FromConfig(cfg *config.Config, store Store, log *slog.Logger) *Orchestrator {
	oc := Config{
		Store:           store,
		Mode:            ModeFor(cfg),
		SimulationDelay: cfg.Analysis.SimulationDelay,
		Logger:          log,
	}
	if oc.Mode == ModeRemote {
		oc.Invoker = NewHTTPInvoker(cfg.Analysis.FunctionURL, cfg.Analysis.FunctionToken, cfg.Analysis.Timeout, nil)
	}
	return New(oc)
}

// Mode reports the analysis mode in effect.
func (o *Orchestrator) Mode() Mode {
	return o.mode
}

// Process runs one attempt for job. Failures are recorded on the request and
// the job before being returned; callers only need to log the error.
func (o *Orchestrator) Process(ctx context.Context, job models.AnalysisJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrJobParseFailed, err)
	}

	ctx, span := tracer.Start(ctx, "process-request")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", job.RequestID),
		attribute.String("job.id", job.JobID),
		attribute.String("analysis.mode", string(o.mode)),
	)

	metrics.ActivePipelines.Inc()
	defer metrics.ActivePipelines.Dec()
	start := time.Now()

	o.log.InfoContext(ctx, "Processing request",
		"requestId", job.RequestID,
		"jobId", job.JobID,
		"mode", o.mode,
	)

	o.updateJob(ctx, job, storage.JobUpdate{Status: models.JobRunning})

	var err error
	switch o.mode {
	case ModeRemote:
		err = o.processRemote(ctx, job)
	default:
		err = o.processSimulation(ctx, job)
	}

	metrics.PipelineDuration.WithLabelValues(string(o.mode)).Observe(time.Since(start).Seconds())
	metrics.RecordRun(string(o.mode), err)

	if err != nil {
		span.RecordError(err)
		return err
	}

	o.updateJob(ctx, job, storage.JobUpdate{Status: models.JobCompleted})
	o.log.InfoContext(ctx, "Request processed",
		"requestId", job.RequestID,
		"mode", o.mode,
		"durationSeconds", time.Since(start).Seconds(),
	)
	return nil
}

func (o *Orchestrator) processRemote(ctx context.Context, job models.AnalysisJob) error {
	resp, err := o.invoker.Invoke(ctx, job)
	if err != nil {
		o.fail(ctx, job, err.Error())
		return err
	}

	if resp.Error != "" {
		err := &RemoteError{Message: resp.Error}
		o.fail(ctx, job, err.Error())
		return err
	}

	if !resp.Success {
		o.log.WarnContext(ctx, "Unrecognized analysis function response",
			"requestId", job.RequestID,
		)
	}
	return nil
}

func (o *Orchestrator) processSimulation(ctx context.Context, job models.AnalysisJob) error {
	if err := o.pause(ctx); err != nil {
		o.fail(ctx, job, err.Error())
		return err
	}

	if err := o.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status: models.StatusProcessing,
	}); err != nil {
		o.fail(ctx, job, err.Error())
		return err
	}

	if err := o.pause(ctx); err != nil {
		o.fail(ctx, job, err.Error())
		return err
	}

	result := simulation.Generate(job.RequestID, job.VideoURL)

	if err := o.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status: models.StatusCompleted,
		Result: result,
	}); err != nil {
		o.fail(ctx, job, err.Error())
		return err
	}
	return nil
}

// pause waits for the configured simulation delay or until ctx is done.
func (o *Orchestrator) pause(ctx context.Context) error {
	if o.delay <= 0 {
		return nil
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", models.ErrContextCanceled, ctx.Err())
	}
}

// fail records message on the request and the job. It uses a context detached
// from cancellation so a shutdown does not leave the request stuck.
func (o *Orchestrator) fail(ctx context.Context, job models.AnalysisJob, message string) {
	ctx = context.WithoutCancel(ctx)

	err := o.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status:       models.StatusFailed,
		ErrorMessage: message,
	})
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, models.ErrInvalidTransition) {
			// The remote side may already have recorded the failure.
			level = slog.LevelWarn
		}
		o.log.Log(ctx, level, "Failed to mark request as failed",
			"requestId", job.RequestID,
			"error", err,
		)
	}

	o.updateJob(ctx, job, storage.JobUpdate{Status: models.JobFailed, ErrorMessage: message})
}

func (o *Orchestrator) updateJob(ctx context.Context, job models.AnalysisJob, u storage.JobUpdate) {
	if job.JobID == "" {
		return
	}
	if err := o.store.UpdateJob(ctx, job.RequestID, job.JobID, u); err != nil {
		o.log.WarnContext(ctx, "Failed to update job status",
			"requestId", job.RequestID,
			"jobId", job.JobID,
			"status", u.Status,
			"error", err,
		)
	}
}
