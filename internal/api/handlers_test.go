package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amillerrr/video2music/internal/auth"
	"github.com/amillerrr/video2music/internal/config"
	"github.com/amillerrr/video2music/internal/storage"
	"github.com/amillerrr/video2music/pkg/models"
)

// memStore is an in-memory RequestStore that enforces the transition table.
type memStore struct {
	mu       sync.Mutex
	requests map[string]*models.ProcessingRequest
	jobs     []storage.NewJob
	seq      int
	err      error
}

func newMemStore() *memStore {
	return &memStore{requests: map[string]*models.ProcessingRequest{}}
}

func (s *memStore) CreateRequest(_ context.Context, in storage.NewRequest) (*models.ProcessingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.seq++
	req := &models.ProcessingRequest{
		ID:             fmt.Sprintf("req-%d", s.seq),
		UserID:         in.UserID,
		VideoFilename:  in.VideoFilename,
		VideoURL:       in.VideoURL,
		Description:    in.Description,
		MusicYearStart: in.MusicYearStart,
		MusicYearEnd:   in.MusicYearEnd,
		Status:         models.StatusPending,
	}
	s.requests[req.ID] = req
	copied := *req
	return &copied, nil
}

func (s *memStore) CreateJob(_ context.Context, in storage.NewJob) (*models.ProcessingJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, in)
	return &models.ProcessingJob{ID: fmt.Sprintf("job-%d", len(s.jobs)), RequestID: in.RequestID, Status: models.JobQueued}, nil
}

func (s *memStore) GetRequest(_ context.Context, id, userID string) (*models.ProcessingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok || req.UserID != userID {
		return nil, models.ErrRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (s *memStore) ListRequests(_ context.Context, userID string) ([]models.ProcessingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProcessingRequest
	for _, req := range s.requests {
		if req.UserID == userID {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (s *memStore) UpdateRequestStatus(_ context.Context, id string, u storage.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return models.ErrRequestNotFound
	}
	if !req.Status.CanTransitionTo(u.Status) {
		return models.ErrInvalidTransition
	}
	req.Status = u.Status
	req.ErrorMessage = u.ErrorMessage
	return nil
}

func (s *memStore) seed(id, userID string, status models.RequestStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[id] = &models.ProcessingRequest{ID: id, UserID: userID, Status: status}
}

func (s *memStore) status(id string) models.RequestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Status
}

type fakeVideos struct {
	keys []string
	body []byte
	err  error
}

func (f *fakeVideos) PutVideo(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	f.body, _ = io.ReadAll(body)
	return "https://videos.example.com/" + key, nil
}

// fakeDispatcher completes pending requests the way an inline simulation run would.
type fakeDispatcher struct {
	store *memStore
	jobs  []models.AnalysisJob
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, job models.AnalysisJob) error {
	d.jobs = append(d.jobs, job)
	if d.err != nil {
		return d.err
	}
	d.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{Status: models.StatusProcessing})
	return d.store.UpdateRequestStatus(ctx, job.RequestID, storage.StatusUpdate{Status: models.StatusCompleted})
}

var testSecret = []byte("api-test-secret-that-is-long-enough")

type testEnv struct {
	store      *memStore
	videos     *fakeVideos
	dispatcher *fakeDispatcher
	handler    http.Handler
	verifier   *auth.Verifier
}

func testConfig() *config.Config {
	return &config.Config{
		App:  config.AppConfig{Name: "Video to Music API", Version: "1.0.0"},
		API:  config.APIConfig{MaxUploadBytes: 1 << 20},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	verifier, err := auth.NewVerifier(testSecret)
	if err != nil {
		t.Fatal(err)
	}
	rl := auth.NewRateLimiter(auth.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	env := &testEnv{
		store:      store,
		videos:     &fakeVideos{},
		dispatcher: &fakeDispatcher{store: store},
		verifier:   verifier,
	}
	env.handler = NewRouter(&ServerConfig{
		Config:      testConfig(),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:       store,
		Videos:      env.videos,
		Dispatcher:  env.dispatcher,
		Verifier:    verifier,
		RateLimiter: rl,
	})
	return env
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.verifier.IssueToken(userID, userID+"@example.com", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return token
}

func (e *testEnv) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func uploadRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("video_file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/requests", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestCreateRequest_Success(t *testing.T) {
	env := newTestEnv(t)
	req := uploadRequest(t, map[string]string{
		"description":      "  sunset at the beach  ",
		"music_year_start": "1990",
		"music_year_end":   "1999",
	}, "beach.MP4", []byte("fake video bytes"))

	rr := env.do(req, env.token(t, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got models.ProcessingRequest
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "user-1" || got.Description != "sunset at the beach" {
		t.Errorf("request = %+v", got)
	}
	if got.MusicYearStart != 1990 || got.MusicYearEnd != 1999 {
		t.Errorf("years = %d-%d, want 1990-1999", got.MusicYearStart, got.MusicYearEnd)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %q, want the post-dispatch status completed", got.Status)
	}

	if len(env.videos.keys) != 1 || !strings.HasPrefix(env.videos.keys[0], "videos/user-1/") ||
		!strings.HasSuffix(env.videos.keys[0], "_beach.MP4") {
		t.Errorf("stored keys = %v", env.videos.keys)
	}
	if string(env.videos.body) != "fake video bytes" {
		t.Errorf("stored body = %q", env.videos.body)
	}

	if len(env.dispatcher.jobs) != 1 {
		t.Fatalf("dispatched %d jobs, want 1", len(env.dispatcher.jobs))
	}
	job := env.dispatcher.jobs[0]
	if job.RequestID != got.ID || job.JobID != "job-1" || job.VideoURL != got.VideoURL || job.MusicYearStart != 1990 {
		t.Errorf("dispatched job = %+v", job)
	}
}

func TestCreateRequest_DefaultYears(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(uploadRequest(t, nil, "clip.webm", []byte("x")), env.token(t, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	job := env.dispatcher.jobs[0]
	if job.MusicYearStart != models.DefaultYearStart || job.MusicYearEnd != models.DefaultYearEnd {
		t.Errorf("years = %d-%d, want defaults", job.MusicYearStart, job.MusicYearEnd)
	}
}

func TestCreateRequest_DispatchFailureStillReturnsRequest(t *testing.T) {
	env := newTestEnv(t)
	env.dispatcher.err = errors.New("queue unavailable")

	rr := env.do(uploadRequest(t, nil, "clip.mp4", []byte("x")), env.token(t, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	maxYear := time.Now().Year()

	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		content  []byte
		wantMsg  string
	}{
		{
			name:     "start after end",
			fields:   map[string]string{"music_year_start": "1990", "music_year_end": "1980"},
			filename: "a.mp4",
			wantMsg:  "Start year cannot be greater than end year",
		},
		{
			name:     "start too early",
			fields:   map[string]string{"music_year_start": "1949"},
			filename: "a.mp4",
			wantMsg:  fmt.Sprintf("Invalid start year. Must be between 1950 and %d", maxYear),
		},
		{
			name:     "end in the future",
			fields:   map[string]string{"music_year_end": fmt.Sprint(maxYear + 1)},
			filename: "a.mp4",
			wantMsg:  fmt.Sprintf("Invalid end year. Must be between 1950 and %d", maxYear),
		},
		{
			name:     "year not a number",
			fields:   map[string]string{"music_year_start": "nineties"},
			filename: "a.mp4",
			wantMsg:  fmt.Sprintf("Invalid start year. Must be between 1950 and %d", maxYear),
		},
		{
			name:    "year checked before file",
			fields:  map[string]string{"music_year_start": "2000", "music_year_end": "1999"},
			wantMsg: "Start year cannot be greater than end year",
		},
		{
			name:    "no file",
			wantMsg: "No file provided",
		},
		{
			name:     "unsupported type",
			filename: "notes.txt",
			wantMsg:  "File type not supported: .txt. Allowed: .mp4, .mov, .avi, .mkv, .webm",
		},
		{
			name:     "too large",
			filename: "big.mov",
			content:  bytes.Repeat([]byte("a"), 1<<20+1),
			wantMsg:  "File too large. Maximum size: 1MB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			content := tt.content
			if content == nil {
				content = []byte("x")
			}

			rr := env.do(uploadRequest(t, tt.fields, tt.filename, content), env.token(t, "user-1"))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if got := decodeError(t, rr); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
			if len(env.videos.keys) != 0 || len(env.dispatcher.jobs) != 0 {
				t.Error("rejected upload was stored or dispatched")
			}
		})
	}
}

func TestCreateRequest_StorageFailures(t *testing.T) {
	t.Run("upload", func(t *testing.T) {
		env := newTestEnv(t)
		env.videos.err = errors.New("s3 down")
		rr := env.do(uploadRequest(t, nil, "a.mp4", []byte("x")), env.token(t, "user-1"))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
	})

	t.Run("persistence", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.err = errors.New("dynamodb down")
		rr := env.do(uploadRequest(t, nil, "a.mp4", []byte("x")), env.token(t, "user-1"))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rr.Code)
		}
		if len(env.dispatcher.jobs) != 0 {
			t.Error("dispatched a request that was never stored")
		}
	})
}

func TestRequests_RequireAuth(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/requests"},
		{http.MethodGet, "/requests"},
		{http.MethodGet, "/requests/req-1"},
		{http.MethodDelete, "/requests/req-1"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(tt.method, tt.path, nil), "")
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestGetRequest(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed("req-a", "owner", models.StatusPending)

	tests := []struct {
		name   string
		user   string
		id     string
		status int
	}{
		{"owner", "owner", "req-a", http.StatusOK},
		{"someone else", "intruder", "req-a", http.StatusNotFound},
		{"missing", "owner", "req-missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(httptest.NewRequest(http.MethodGet, "/requests/"+tt.id, nil), env.token(t, tt.user))
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if tt.status == http.StatusNotFound {
				if got := decodeError(t, rr); got != "Processing request not found" {
					t.Errorf("error = %q, want %q", got, "Processing request not found")
				}
			}
		})
	}
}

func TestListRequests(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed("req-a", "owner", models.StatusPending)
	env.store.seed("req-b", "other", models.StatusPending)

	rr := env.do(httptest.NewRequest(http.MethodGet, "/requests", nil), env.token(t, "owner"))
	var got []models.ProcessingRequest
	json.NewDecoder(rr.Body).Decode(&got)
	if len(got) != 1 || got[0].ID != "req-a" {
		t.Errorf("listed %+v, want only req-a", got)
	}

	rr = env.do(httptest.NewRequest(http.MethodGet, "/requests", nil), env.token(t, "newcomer"))
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty list body = %q, want []", rr.Body.String())
	}
}

func TestCancelRequest(t *testing.T) {
	tests := []struct {
		name       string
		status     models.RequestStatus
		wantCode   int
		wantStatus models.RequestStatus
		wantMsg    string
	}{
		{"pending", models.StatusPending, http.StatusOK, models.StatusCancelled, ""},
		{"failed", models.StatusFailed, http.StatusOK, models.StatusCancelled, ""},
		{"processing", models.StatusProcessing, http.StatusBadRequest, models.StatusProcessing, "Cannot delete request that is processing or completed"},
		{"completed", models.StatusCompleted, http.StatusBadRequest, models.StatusCompleted, "Cannot delete request that is processing or completed"},
		{"cancelled", models.StatusCancelled, http.StatusBadRequest, models.StatusCancelled, "Request is already cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.store.seed("req-a", "owner", tt.status)

			rr := env.do(httptest.NewRequest(http.MethodDelete, "/requests/req-a", nil), env.token(t, "owner"))

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			if got := env.store.status("req-a"); got != tt.wantStatus {
				t.Errorf("stored status = %q, want %q", got, tt.wantStatus)
			}
			if tt.wantMsg != "" {
				if got := decodeError(t, rr); got != tt.wantMsg {
					t.Errorf("error = %q, want %q", got, tt.wantMsg)
				}
			} else if !strings.Contains(rr.Body.String(), "Request cancelled successfully") {
				t.Errorf("body = %s", rr.Body.String())
			}
		})
	}
}

func TestCancelRequest_NotOwned(t *testing.T) {
	env := newTestEnv(t)
	env.store.seed("req-a", "owner", models.StatusPending)

	rr := env.do(httptest.NewRequest(http.MethodDelete, "/requests/req-a", nil), env.token(t, "intruder"))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if got := decodeError(t, rr); got != "Processing request not found" {
		t.Errorf("error = %q", got)
	}
	if env.store.status("req-a") != models.StatusPending {
		t.Error("request owned by someone else was cancelled")
	}
}

func TestInfoHandler(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(httptest.NewRequest(http.MethodGet, "/", nil), "")

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var info InfoResponse
	json.NewDecoder(rr.Body).Decode(&info)
	if info.Name != "Video to Music API" || info.Status != "running" || info.Mode != "simulation" {
		t.Errorf("info = %+v", info)
	}

	if rr := env.do(httptest.NewRequest(http.MethodGet, "/nope", nil), ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rr.Code)
	}
}

func TestYearRange(t *testing.T) {
	h := NewHandlers(&HandlersConfig{Config: testConfig()})
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		start, end string
		wantStart  int
		wantEnd    int
		wantErr    string
	}{
		{"", "", 1980, 2024, ""},
		{"1950", "2025", 1950, 2025, ""},
		{" 1999 ", "1999", 1999, 1999, ""},
		{"2026", "", 0, 0, "Invalid start year. Must be between 1950 and 2025"},
		{"1970", "1949", 0, 0, "Invalid end year. Must be between 1950 and 2025"},
		{"2010", "2000", 0, 0, "Start year cannot be greater than end year"},
	}

	for _, tt := range tests {
		t.Run(tt.start+"-"+tt.end, func(t *testing.T) {
			form := url.Values{"music_year_start": {tt.start}, "music_year_end": {tt.end}}
			req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			start, end, err := h.yearRange(req)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("range = %d-%d, want %d-%d", start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}
