// Package health serves liveness and dependency health for each service.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	DefaultCacheTTL       = 10 * time.Second
	DefaultCheckTimeout   = 5 * time.Second
	DefaultDeepCheckLimit = 10 * time.Second
)

// Component statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status represents the health check response.
type Status struct {
	Status    string                    `json:"status"`
	Service   string                    `json:"service"`
	Version   string                    `json:"version,omitempty"`
	Mode      string                    `json:"mode,omitempty"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks,omitempty"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// S3Client defines the S3 operations needed for health checks.
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// SQSClient defines the SQS operations needed for health checks.
type SQSClient interface {
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// DynamoDBClient defines the DynamoDB operations needed for health checks.
type DynamoDBClient interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// S3Probe verifies the video bucket is reachable.
func S3Probe(client S3Client, bucket string) Probe {
	return func(ctx context.Context) error {
		_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
		return err
	}
}

// SQSProbe verifies the job queue is reachable.
func SQSProbe(client SQSClient, queueURL string) Probe {
	return func(ctx context.Context) error {
		_, err := client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl: aws.String(queueURL),
			AttributeNames: []types.QueueAttributeName{
				types.QueueAttributeNameApproximateNumberOfMessages,
			},
		})
		return err
	}
}

// DynamoDBProbe verifies the lifecycle table exists.
func DynamoDBProbe(client DynamoDBClient, table string) Probe {
	return func(ctx context.Context) error {
		_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
		return err
	}
}

// Config holds health checker configuration.
type Config struct {
	ServiceName    string
	Version        string
	Mode           string
	Probes         map[string]Probe
	Logger         *slog.Logger
	CacheTTL       time.Duration
	CheckTimeout   time.Duration
	DeepCheckLimit time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig(serviceName string, logger *slog.Logger) *Config {
	return &Config{
		ServiceName:    serviceName,
		Probes:         map[string]Probe{},
		Logger:         logger,
		CacheTTL:       DefaultCacheTTL,
		CheckTimeout:   DefaultCheckTimeout,
		DeepCheckLimit: DefaultDeepCheckLimit,
	}
}

// Register adds a named dependency probe. A nil probe is ignored so callers
// can register optional dependencies unconditionally.
func (c *Config) Register(name string, p Probe) *Config {
	if p == nil {
		return c
	}
	if c.Probes == nil {
		c.Probes = map[string]Probe{}
	}
	c.Probes[name] = p
	return c
}

// Checker provides health check functionality.
type Checker struct {
	config *Config
	now    func() time.Time

	mu            sync.RWMutex
	shallow       cachedStatus
	deep          cachedStatus
	lastDeepCheck time.Time
}

// Shallow and deep results are cached separately so a shallow check never
// evicts the last probe results.
type cachedStatus struct {
	status *Status
	at     time.Time
}

// NewChecker creates a new health checker with the given configuration.
func NewChecker(config *Config) *Checker {
	return &Checker{config: config, now: time.Now}
}

// Check reports service health. Only a deep check runs the probes; a
// shallow check may return the cached result.
func (c *Checker) Check(ctx context.Context, deep bool) *Status {
	if !deep {
		c.mu.RLock()
		if c.shallow.status != nil && c.now().Sub(c.shallow.at) < c.config.CacheTTL {
			status := c.shallow.status.clone()
			c.mu.RUnlock()
			return status
		}
		c.mu.RUnlock()
	}

	status := &Status{
		Status:    StatusHealthy,
		Service:   c.config.ServiceName,
		Version:   c.config.Version,
		Mode:      c.config.Mode,
		Timestamp: c.now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	if deep {
		results := c.runProbes(ctx)
		for name, check := range results {
			status.Checks[name] = check
			if check.Status != StatusHealthy {
				status.Status = StatusDegraded
			}
		}
	}

	c.mu.Lock()
	entry := cachedStatus{status: status, at: c.now()}
	if deep {
		c.deep = entry
	} else {
		c.shallow = entry
	}
	c.mu.Unlock()

	return status.clone()
}

// LastDeep returns the most recent deep check result, if any.
func (c *Checker) LastDeep() (*Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.deep.status == nil {
		return nil, false
	}
	return c.deep.status.clone(), true
}

func (c *Checker) runProbes(ctx context.Context) map[string]ComponentCheck {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]ComponentCheck, len(c.config.Probes))
	)
	for name, probe := range c.config.Probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := c.probe(ctx, probe)
			mu.Lock()
			results[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (c *Checker) probe(ctx context.Context, p Probe) ComponentCheck {
	ctx, cancel := context.WithTimeout(ctx, c.config.CheckTimeout)
	defer cancel()

	start := time.Now()
	err := p(ctx)
	latency := time.Since(start).String()
	if err != nil {
		return ComponentCheck{Status: StatusUnhealthy, Latency: latency, Error: err.Error()}
	}
	return ComponentCheck{Status: StatusHealthy, Latency: latency}
}

// CanPerformDeepCheck returns true if enough time has passed since the last deep check.
func (c *Checker) CanPerformDeepCheck() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now().Sub(c.lastDeepCheck) >= c.config.DeepCheckLimit
}

// RecordDeepCheck records the time of a deep health check.
func (c *Checker) RecordDeepCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDeepCheck = c.now()
}

// Handler returns an HTTP handler for basic health checks.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.Check(r.Context(), false)
		c.writeResponse(w, statusCode(status), status)
	}
}

// DeepHandler returns an HTTP handler for deep health checks.
func (c *Checker) DeepHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.CanPerformDeepCheck() {
			status, ok := c.LastDeep()
			if !ok {
				status = c.Check(r.Context(), false)
			}
			status.Checks["rate_limited"] = ComponentCheck{
				Status: "info",
				Error:  "Deep health check rate limited, returning cached result",
			}
			w.Header().Set("Retry-After", "10")
			c.writeResponse(w, http.StatusTooManyRequests, status)
			return
		}

		c.RecordDeepCheck()
		status := c.Check(r.Context(), true)
		c.writeResponse(w, statusCode(status), status)
	}
}

func statusCode(s *Status) int {
	if s.Status != StatusHealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func (c *Checker) writeResponse(w http.ResponseWriter, code int, status *Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil && c.config.Logger != nil {
		c.config.Logger.Error("Failed to encode health check response", "error", err)
	}
}

func (s *Status) clone() *Status {
	out := *s
	out.Checks = maps.Clone(s.Checks)
	if out.Checks == nil {
		out.Checks = map[string]ComponentCheck{}
	}
	return &out
}
