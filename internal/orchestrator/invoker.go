package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/amillerrr/video2music/pkg/models"
)

const maxResponseBytes = 1 << 20

// Invoker calls the remote analysis function.
type Invoker interface {
	Invoke(ctx context.Context, job models.AnalysisJob) (*InvokeResponse, error)
}

// InvokeResponse is the analysis function's reply. Exactly one of Success or
// Error is expected to be set.
type InvokeResponse struct {
	Success              bool    `json:"success"`
	RequestID            string  `json:"request_id,omitempty"`
	ProcessingDuration   float64 `json:"processing_duration,omitempty"`
	RecommendationsCount int     `json:"recommendations_count,omitempty"`
	Error                string  `json:"error,omitempty"`
}

// RemoteError is a failure reported by the analysis function itself.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "analysis function error: " + e.Message
}

// UpstreamError is a response the invoker could not interpret.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return "analysis function unreachable: " + e.Body
	}
	return fmt.Sprintf("analysis function returned %d: %s", e.StatusCode, e.Body)
}

// HTTPInvoker posts jobs to the analysis function over HTTP.
type HTTPInvoker struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPInvoker creates an invoker for url. A nil client gets a traced
// client with the given timeout.
func NewHTTPInvoker(url, token string, timeout time.Duration, client *http.Client) *HTTPInvoker {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		}
	}
	return &HTTPInvoker{url: url, token: token, client: client}
}

// Invoke sends the job and decodes the reply. A reply carrying "error" is
// returned as a response, not an error, so the caller can record the
// message verbatim.
func (i *HTTPInvoker) Invoke(ctx context.Context, job models.AnalysisJob) (*InvokeResponse, error) {
	ctx, span := tracer.Start(ctx, "invoke-analysis")
	defer span.End()

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.token != "" {
		req.Header.Set("Authorization", "Bearer "+i.token)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: err.Error()}
	}

	var out InvokeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: preview(body)}
	}
	if out.Error != "" {
		return &out, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: preview(body)}
	}
	return &out, nil
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
