package models

// JobStatus represents the status of a processing job record.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// DefaultMaxRetries is recorded on every job; no automatic retry consumes it.
const DefaultMaxRetries = 3

// ProcessingJob correlates one request with a scheduling attempt.
type ProcessingJob struct {
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	ID            string    `dynamodbav:"job_id" json:"id"`
	RequestID     string    `dynamodbav:"request_id" json:"request_id"`
	VideoFilename string    `dynamodbav:"video_filename" json:"video_filename"`
	Status        JobStatus `dynamodbav:"status" json:"status"`
	Priority      int       `dynamodbav:"priority" json:"priority"`
	RetryCount    int       `dynamodbav:"retry_count" json:"retry_count"`
	MaxRetries    int       `dynamodbav:"max_retries" json:"max_retries"`
	ScheduledAt   string    `dynamodbav:"scheduled_at" json:"scheduled_at"`
	StartedAt     string    `dynamodbav:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt   string    `dynamodbav:"completed_at,omitempty" json:"completed_at,omitempty"`
	ErrorMessage  string    `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`
}
