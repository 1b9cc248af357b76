// Package analyzer exposes the analysis graph as the HTTP function the
// orchestrator delegates to. It owns the request's status from
// processing to its terminal state.
package analyzer

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/amillerrr/video2music/internal/pipeline"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/pkg/models"
)

var tracer = otel.Tracer("video2music-analyzer")

const (
	maxRequestBodySize = 1 << 20
	missingFieldsMsg   = "Missing request_id or video_url"
)

// Runner runs the analysis graph. *pipeline.Graph satisfies it.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*models.ProcessingResult, error)
}

// Store is the subset of the lifecycle store the function writes to.
type Store interface {
	UpdateRequestStatus(ctx context.Context, requestID string, u storage.StatusUpdate) error
}

// Response is the success body returned to the orchestrator.
type Response struct {
	Success              bool    `json:"success"`
	RequestID            string  `json:"request_id"`
	ProcessingDuration   float64 `json:"processing_duration"`
	RecommendationsCount int     `json:"recommendations_count"`
}

// Handler serves POST / for the analysis function.
type Handler struct {
	runner Runner
	store  Store
	token  string
	log    *slog.Logger
}

// NewHandler creates a Handler. An empty token disables bearer checks.
func NewHandler(runner Runner, store Store, token string, log *slog.Logger) *Handler {
	return &Handler{runner: runner, store: store, token: token, log: log}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "analysis-function")
	defer span.End()

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		h.writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !h.authorized(r) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		h.writeError(ctx, w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var job models.AnalysisJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := job.Validate(); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, missingFieldsMsg)
		return
	}

	span.SetAttributes(attribute.String("request.id", job.RequestID))

	resp, err := h.process(ctx, job)
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, resp)
}

func (h *Handler) process(ctx context.Context, job models.AnalysisJob) (*Response, error) {
	h.log.InfoContext(ctx, "Starting analysis", "requestId", job.RequestID)

	if err := h.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status: models.StatusProcessing,
	}); err != nil {
		h.log.ErrorContext(ctx, "Failed to mark request as processing",
			"requestId", job.RequestID,
			"error", err,
		)
		return nil, err
	}

	result, err := h.runner.Run(ctx, pipeline.Input{
		RequestID:   job.RequestID,
		VideoURL:    job.VideoURL,
		Description: job.Description,
		YearStart:   job.MusicYearStart,
		YearEnd:     job.MusicYearEnd,
	})
	if err != nil {
		h.log.ErrorContext(ctx, "Analysis failed", "requestId", job.RequestID, "error", err)
		if updErr := h.store.UpdateRequestStatus(context.WithoutCancel(ctx), job.RequestID, storage.StatusUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
		}); updErr != nil {
			h.log.ErrorContext(ctx, "Failed to mark request as failed",
				"requestId", job.RequestID,
				"error", updErr,
			)
		}
		return nil, err
	}

	if err := h.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{
		Status: models.StatusCompleted,
		Result: result,
	}); err != nil {
		h.log.ErrorContext(ctx, "Failed to store analysis result",
			"requestId", job.RequestID,
			"error", err,
		)
		return nil, err
	}

	h.log.InfoContext(ctx, "Analysis stored",
		"requestId", job.RequestID,
		"durationSeconds", result.ProcessingDuration,
	)
	return &Response{
		Success:              true,
		RequestID:            job.RequestID,
		ProcessingDuration:   result.ProcessingDuration,
		RecommendationsCount: len(result.Recommendations),
	}, nil
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}
