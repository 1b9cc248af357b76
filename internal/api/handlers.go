package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/amillerrr/video2music/internal/auth"
	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/internal/orchestrator"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/pkg/models"
)

var tracer = otel.Tracer("video2music-api")

const (
	MaxFilenameLength = 255
	// multipart parts beyond this are spooled to disk
	multipartMemory = 32 << 20
	// room for the non-file form fields and multipart framing
	formOverhead = 1 << 20
)

// AllowedExtensions lists accepted video extensions in display order.
var AllowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm"}

// RequestStore is the lifecycle store surface used by the API.
type RequestStore interface {
	CreateRequest(ctx context.Context, in storage.NewRequest) (*models.ProcessingRequest, error)
	CreateJob(ctx context.Context, in storage.NewJob) (*models.ProcessingJob, error)
	GetRequest(ctx context.Context, requestID, userID string) (*models.ProcessingRequest, error)
	ListRequests(ctx context.Context, userID string) ([]models.ProcessingRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, u storage.StatusUpdate) error
}

// VideoStore stores uploaded videos and returns their URL.
type VideoStore interface {
	PutVideo(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Handlers contains all HTTP handlers for the API.
type Handlers struct {
	cfg        *config.Config
	log        *slog.Logger
	store      RequestStore
	videos     VideoStore
	dispatcher orchestrator.Dispatcher
	now        func() time.Time
}

// HandlersConfig holds dependencies for handlers.
type HandlersConfig struct {
	Config     *config.Config
	Logger     *slog.Logger
	Store      RequestStore
	Videos     VideoStore
	Dispatcher orchestrator.Dispatcher
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *HandlersConfig) *Handlers {
	return &Handlers{
		cfg:        cfg.Config,
		log:        cfg.Logger,
		store:      cfg.Store,
		videos:     cfg.Videos,
		dispatcher: cfg.Dispatcher,
		now:        time.Now,
	}
}

func (h *Handlers) writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.ErrorContext(ctx, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	h.writeJSON(ctx, w, status, map[string]string{"error": message})
}

// InfoResponse describes the service on GET /.
type InfoResponse struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      string `json:"status"`
	Mode        string `json:"mode"`
	Description string `json:"description"`
}

// InfoHandler reports service identity.
func (h *Handlers) InfoHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, InfoResponse{
		Name:        h.cfg.App.Name,
		Version:     h.cfg.App.Version,
		Status:      "running",
		Mode:        string(orchestrator.ModeFor(h.cfg)),
		Description: "Upload a video and receive music recommendations that fit its scene and mood",
	})
}

// validationError is a 400 whose message is shown to the caller verbatim.
type validationError struct {
	reason  string
	message string
}

func (e *validationError) Error() string { return e.message }

func invalid(reason, format string, args ...any) *validationError {
	return &validationError{reason: reason, message: fmt.Sprintf(format, args...)}
}

// yearRange parses the optional year fields. Order of checks: start, end,
// then start <= end.
func (h *Handlers) yearRange(r *http.Request) (int, int, error) {
	maxYear := h.now().Year()

	start, ok := parseYear(r.FormValue("music_year_start"), models.DefaultYearStart, maxYear)
	if !ok {
		return 0, 0, invalid("year_range", "Invalid start year. Must be between %d and %d", models.MinYear, maxYear)
	}
	end, ok := parseYear(r.FormValue("music_year_end"), models.DefaultYearEnd, maxYear)
	if !ok {
		return 0, 0, invalid("year_range", "Invalid end year. Must be between %d and %d", models.MinYear, maxYear)
	}
	if start > end {
		return 0, 0, invalid("year_range", "Start year cannot be greater than end year")
	}
	return start, end, nil
}

func parseYear(raw string, def, maxYear int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, true
	}
	y, err := strconv.Atoi(raw)
	if err != nil || y < models.MinYear || y > maxYear {
		return 0, false
	}
	return y, true
}

func (h *Handlers) validateFile(filename string, size int64) error {
	if filename == "" {
		return invalid("no_file", "No file provided")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !isAllowedExtension(ext) {
		return invalid("file_type", "File type not supported: %s. Allowed: %s", ext, strings.Join(AllowedExtensions, ", "))
	}
	if len(filename) > MaxFilenameLength {
		return invalid("filename", "Filename too long. Maximum length: %d", MaxFilenameLength)
	}
	if size > h.cfg.API.MaxUploadBytes {
		return h.tooLarge()
	}
	return nil
}

func (h *Handlers) tooLarge() error {
	return invalid("file_size", "File too large. Maximum size: %dMB", h.cfg.API.MaxUploadBytes/(1<<20))
}

func isAllowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (h *Handlers) rejectUpload(ctx context.Context, w http.ResponseWriter, span trace.Span, err error) {
	var verr *validationError
	if !errors.As(err, &verr) {
		verr = invalid("malformed", "Invalid upload")
	}
	span.SetAttributes(attribute.String("upload.rejected", verr.reason))
	metrics.UploadsRejected.WithLabelValues(verr.reason).Inc()
	h.writeError(ctx, w, http.StatusBadRequest, verr.message)
}

// CreateRequestHandler accepts a video upload and starts its analysis.
func (h *Handlers) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	ctx, span := tracer.Start(r.Context(), "create-request-handler",
		trace.WithAttributes(
			attribute.String("handler", "create-request"),
			attribute.String("user.id", userID),
		))
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.API.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		span.RecordError(err)
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			h.rejectUpload(ctx, w, span, h.tooLarge())
			return
		case errors.Is(err, http.ErrNotMultipart):
			h.rejectUpload(ctx, w, span, invalid("no_file", "No file provided"))
			return
		}
		h.rejectUpload(ctx, w, span, invalid("malformed", "Invalid multipart form"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	yearStart, yearEnd, err := h.yearRange(r)
	if err != nil {
		h.rejectUpload(ctx, w, span, err)
		return
	}

	file, header, err := r.FormFile("video_file")
	if err != nil {
		h.rejectUpload(ctx, w, span, invalid("no_file", "No file provided"))
		return
	}
	defer file.Close()

	if err := h.validateFile(header.Filename, header.Size); err != nil {
		h.rejectUpload(ctx, w, span, err)
		return
	}

	fileID := uuid.New().String()
	key := storage.VideoKey(userID, fileID, header.Filename)
	span.SetAttributes(
		attribute.String("video.key", key),
		attribute.Int64("video.size_bytes", header.Size),
	)

	videoURL, err := h.videos.PutVideo(ctx, key, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to upload video", "error", err, "key", key, "userId", userID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to upload video")
		return
	}

	req, err := h.store.CreateRequest(ctx, storage.NewRequest{
		UserID:         userID,
		VideoFilename:  header.Filename,
		VideoURL:       videoURL,
		Description:    strings.TrimSpace(r.FormValue("description")),
		MusicYearStart: yearStart,
		MusicYearEnd:   yearEnd,
	})
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to create request", "error", err, "userId", userID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to create processing request")
		return
	}
	span.SetAttributes(attribute.String("request.id", req.ID))

	job, err := h.store.CreateJob(ctx, storage.NewJob{
		RequestID:     req.ID,
		VideoFilename: req.VideoFilename,
	})
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to create processing job", "error", err, "requestId", req.ID)
		if updErr := h.store.UpdateRequestStatus(ctx, req.ID, storage.StatusUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: orchestrator.DispatchFailedMessage,
		}); updErr != nil {
			h.log.ErrorContext(ctx, "Failed to mark request as failed", "error", updErr, "requestId", req.ID)
		}
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to create processing job")
		return
	}

	metrics.UploadsCompleted.Inc()
	h.log.InfoContext(ctx, "Processing request created",
		"requestId", req.ID,
		"jobId", job.ID,
		"userId", userID,
		"filename", header.Filename,
	)

	// The request is persisted; processing continues even if the client goes away.
	dispatchCtx := context.WithoutCancel(ctx)
	if err := h.dispatcher.Dispatch(dispatchCtx, models.JobFor(req, job.ID)); err != nil {
		h.log.WarnContext(ctx, "Processing attempt did not succeed", "error", err, "requestId", req.ID)
	}

	if current, err := h.store.GetRequest(dispatchCtx, req.ID, userID); err == nil {
		req = current
	}
	h.writeJSON(ctx, w, http.StatusOK, req)
}

// ListRequestsHandler returns the caller's requests, newest first.
func (h *Handlers) ListRequestsHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	ctx, span := tracer.Start(r.Context(), "list-requests-handler")
	defer span.End()

	requests, err := h.store.ListRequests(ctx, userID)
	if err != nil {
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to list requests", "error", err, "userId", userID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to list requests")
		return
	}
	if requests == nil {
		requests = []models.ProcessingRequest{}
	}
	h.writeJSON(ctx, w, http.StatusOK, requests)
}

// GetRequestHandler returns one of the caller's requests.
func (h *Handlers) GetRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	requestID := r.PathValue("id")
	ctx, span := tracer.Start(r.Context(), "get-request-handler",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	req, ok := h.lookup(ctx, w, requestID, userID)
	if !ok {
		return
	}
	h.writeJSON(ctx, w, http.StatusOK, req)
}

// CancelRequestHandler cancels a pending or failed request.
func (h *Handlers) CancelRequestHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	requestID := r.PathValue("id")
	ctx, span := tracer.Start(r.Context(), "cancel-request-handler",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer span.End()

	req, ok := h.lookup(ctx, w, requestID, userID)
	if !ok {
		return
	}
	if !req.Status.Cancellable() {
		h.writeError(ctx, w, http.StatusBadRequest, cancelRefusal(req.Status))
		return
	}

	err := h.store.UpdateRequestStatus(ctx, requestID, storage.StatusUpdate{Status: models.StatusCancelled})
	switch {
	case errors.Is(err, models.ErrInvalidTransition):
		// the pipeline moved the request on between our read and write
		h.writeError(ctx, w, http.StatusBadRequest, cancelRefusal(models.StatusProcessing))
		return
	case err != nil:
		span.RecordError(err)
		h.log.ErrorContext(ctx, "Failed to cancel request", "error", err, "requestId", requestID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to cancel request")
		return
	}

	h.log.InfoContext(ctx, "Request cancelled", "requestId", requestID, "userId", userID)
	h.writeJSON(ctx, w, http.StatusOK, map[string]string{"message": "Request cancelled successfully"})
}

func cancelRefusal(status models.RequestStatus) string {
	if status == models.StatusCancelled {
		return "Request is already cancelled"
	}
	return "Cannot delete request that is processing or completed"
}

func userIDFrom(ctx context.Context) string {
	if claims, ok := auth.GetClaimsFromContext(ctx); ok {
		return claims.UserID()
	}
	return ""
}

func (h *Handlers) lookup(ctx context.Context, w http.ResponseWriter, requestID, userID string) (*models.ProcessingRequest, bool) {
	req, err := h.store.GetRequest(ctx, requestID, userID)
	switch {
	case errors.Is(err, models.ErrRequestNotFound):
		h.writeError(ctx, w, http.StatusNotFound, "Processing request not found")
		return nil, false
	case err != nil:
		h.log.ErrorContext(ctx, "Failed to get request", "error", err, "requestId", requestID)
		h.writeError(ctx, w, http.StatusInternalServerError, "Failed to get request")
		return nil, false
	}
	return req, true
}
