package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockS3Client struct {
	err    error
	bucket string
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.bucket = aws.ToString(params.Bucket)
	if m.err != nil {
		return nil, m.err
	}
	return &s3.HeadBucketOutput{}, nil
}

type mockSQSClient struct {
	err error
}

func (m *mockSQSClient) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.GetQueueAttributesOutput{}, nil
}

type mockDynamoDBClient struct {
	err   error
	table string
}

func (m *mockDynamoDBClient) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	m.table = aws.ToString(params.TableName)
	if m.err != nil {
		return nil, m.err
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testConfig() *Config {
	return &Config{
		ServiceName:    "test-service",
		Logger:         testLogger(),
		CacheTTL:       time.Second,
		CheckTimeout:   time.Second,
		DeepCheckLimit: time.Millisecond,
	}
}

func TestChecker_Check_Shallow(t *testing.T) {
	config := DefaultConfig("test-service", testLogger())
	config.Version = "1.2.0"
	config.Mode = "simulation"
	config.Register("s3", S3Probe(&mockS3Client{err: errors.New("never called")}, "bucket"))
	checker := NewChecker(config)

	status := checker.Check(context.Background(), false)

	if status.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", status.Status)
	}
	if status.Service != "test-service" || status.Version != "1.2.0" || status.Mode != "simulation" {
		t.Errorf("identity = %+v", status)
	}
	if len(status.Checks) != 0 {
		t.Errorf("shallow check ran %d probes", len(status.Checks))
	}
}

func TestChecker_Check_Deep(t *testing.T) {
	tests := []struct {
		name       string
		s3Err      error
		sqsErr     error
		dynamoErr  error
		wantStatus string
		unhealthy  string
	}{
		{"all healthy", nil, nil, nil, StatusHealthy, ""},
		{"s3 down", errors.New("s3 error"), nil, nil, StatusDegraded, "s3"},
		{"table missing", nil, nil, errors.New("ResourceNotFoundException"), StatusDegraded, "dynamodb"},
		{"queue down", nil, errors.New("queue error"), nil, StatusDegraded, "sqs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s3c := &mockS3Client{err: tt.s3Err}
			ddb := &mockDynamoDBClient{err: tt.dynamoErr}
			config := testConfig().
				Register("s3", S3Probe(s3c, "videos")).
				Register("sqs", SQSProbe(&mockSQSClient{err: tt.sqsErr}, "https://sqs.test")).
				Register("dynamodb", DynamoDBProbe(ddb, "requests"))
			checker := NewChecker(config)

			status := checker.Check(context.Background(), true)

			if status.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != 3 {
				t.Fatalf("Checks = %d entries, want 3", len(status.Checks))
			}
			for name, check := range status.Checks {
				want := StatusHealthy
				if name == tt.unhealthy {
					want = StatusUnhealthy
				}
				if check.Status != want {
					t.Errorf("%s = %s, want %s", name, check.Status, want)
				}
			}
			if s3c.bucket != "videos" || ddb.table != "requests" {
				t.Errorf("probed bucket %q table %q", s3c.bucket, ddb.table)
			}
		})
	}
}

func TestConfig_RegisterIgnoresNil(t *testing.T) {
	config := testConfig().Register("sqs", nil)
	if len(config.Probes) != 0 {
		t.Errorf("Probes = %d, want 0", len(config.Probes))
	}
}

func TestChecker_Check_Caching(t *testing.T) {
	config := testConfig()
	config.CacheTTL = time.Minute
	checker := NewChecker(config)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	first := checker.Check(context.Background(), false)
	now = now.Add(30 * time.Second)
	cached := checker.Check(context.Background(), false)
	if cached.Timestamp != first.Timestamp {
		t.Error("check inside TTL should return the cached result")
	}

	now = now.Add(time.Minute)
	fresh := checker.Check(context.Background(), false)
	if fresh.Timestamp == first.Timestamp {
		t.Error("check after TTL should refresh")
	}
}

func TestChecker_ShallowCheckKeepsDeepResult(t *testing.T) {
	config := testConfig().Register("s3", S3Probe(&mockS3Client{err: errors.New("s3 error")}, "videos"))
	config.CacheTTL = time.Minute
	checker := NewChecker(config)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	checker.Check(context.Background(), true)
	now = now.Add(time.Second)
	shallow := checker.Check(context.Background(), false)
	if shallow.Status != StatusHealthy || len(shallow.Checks) != 0 {
		t.Errorf("shallow = %+v, want healthy with no probe results", shallow)
	}

	deep, ok := checker.LastDeep()
	if !ok {
		t.Fatal("LastDeep() found no result after a shallow check")
	}
	if deep.Status != StatusDegraded || deep.Checks["s3"].Error != "s3 error" {
		t.Errorf("LastDeep() = %+v, want the degraded probe result", deep)
	}

	now = now.Add(time.Second)
	again := checker.Check(context.Background(), false)
	if again.Timestamp != shallow.Timestamp {
		t.Error("deep check replaced the shallow cache")
	}
}

func TestChecker_CachedResultIsNotShared(t *testing.T) {
	config := testConfig()
	config.CacheTTL = time.Hour
	checker := NewChecker(config)

	a := checker.Check(context.Background(), false)
	a.Checks["injected"] = ComponentCheck{Status: "info"}

	b := checker.Check(context.Background(), false)
	if _, ok := b.Checks["injected"]; ok {
		t.Error("mutating a returned status leaked into the cache")
	}
}

func TestChecker_CanPerformDeepCheck(t *testing.T) {
	config := testConfig()
	config.DeepCheckLimit = 10 * time.Second
	checker := NewChecker(config)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }

	if !checker.CanPerformDeepCheck() {
		t.Error("CanPerformDeepCheck() = false initially")
	}
	checker.RecordDeepCheck()
	if checker.CanPerformDeepCheck() {
		t.Error("CanPerformDeepCheck() = true immediately after recording")
	}
	now = now.Add(11 * time.Second)
	if !checker.CanPerformDeepCheck() {
		t.Error("CanPerformDeepCheck() = false after limit passed")
	}
}

func TestChecker_Handler(t *testing.T) {
	checker := NewChecker(DefaultConfig("test-service", testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Handler returned %d, want %d", rr.Code, http.StatusOK)
	}
	var status Status
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.Status != StatusHealthy {
		t.Errorf("Status = %s, want healthy", status.Status)
	}
}

func TestChecker_DeepHandler_Unhealthy(t *testing.T) {
	config := testConfig().Register("s3", S3Probe(&mockS3Client{err: errors.New("s3 error")}, "videos"))
	checker := NewChecker(config)

	req := httptest.NewRequest(http.MethodGet, "/health/deep", nil)
	rr := httptest.NewRecorder()
	checker.DeepHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("DeepHandler returned %d, want 503", rr.Code)
	}
	var status Status
	json.NewDecoder(rr.Body).Decode(&status)
	if status.Checks["s3"].Error != "s3 error" {
		t.Errorf("s3 error = %q", status.Checks["s3"].Error)
	}
}

func TestChecker_DeepHandler_RateLimited(t *testing.T) {
	config := testConfig()
	config.DeepCheckLimit = time.Hour
	checker := NewChecker(config)
	checker.RecordDeepCheck()

	req := httptest.NewRequest(http.MethodGet, "/health/deep", nil)
	rr := httptest.NewRecorder()
	checker.DeepHandler().ServeHTTP(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("DeepHandler returned %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	if rr.Header().Get("Retry-After") != "10" {
		t.Errorf("Retry-After = %s, want 10", rr.Header().Get("Retry-After"))
	}
}

func TestChecker_DeepHandler_RateLimitedServesLastDeep(t *testing.T) {
	config := testConfig().Register("s3", S3Probe(&mockS3Client{err: errors.New("s3 error")}, "videos"))
	config.DeepCheckLimit = time.Hour
	checker := NewChecker(config)

	first := httptest.NewRecorder()
	checker.DeepHandler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health/deep", nil))
	checker.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := httptest.NewRecorder()
	checker.DeepHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/deep", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("DeepHandler returned %d, want %d", rr.Code, http.StatusTooManyRequests)
	}
	var status Status
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if status.Checks["s3"].Error != "s3 error" {
		t.Errorf("checks = %+v, want the cached deep probe results", status.Checks)
	}
	if _, ok := status.Checks["rate_limited"]; !ok {
		t.Error("rate limited response missing rate_limited marker")
	}
}
