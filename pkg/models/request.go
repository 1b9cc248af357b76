package models

import "unicode/utf8"

// RequestStatus represents the lifecycle status of a processing request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusFailed     RequestStatus = "failed"
	StatusCancelled  RequestStatus = "cancelled"
)

// Default music year range applied when the caller omits one.
const (
	DefaultYearStart = 1980
	DefaultYearEnd   = 2024
	MinYear          = 1950
)

var transitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusProcessing, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusFailed:     {StatusCancelled},
}

// IsValid returns true if the status is a valid RequestStatus.
func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no pipeline transition leaves s.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether the owner may cancel a request in status s.
func (s RequestStatus) Cancellable() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// ProcessingRequest is one user's video submission and its analysis lifecycle.
type ProcessingRequest struct {
	// Keys
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty" json:"-"`

	// Attributes
	ID             string            `dynamodbav:"request_id" json:"id"`
	UserID         string            `dynamodbav:"user_id" json:"user_id"`
	VideoFilename  string            `dynamodbav:"video_filename" json:"video_filename"`
	VideoURL       string            `dynamodbav:"video_url,omitempty" json:"video_url,omitempty"`
	Status         RequestStatus     `dynamodbav:"status" json:"status"`
	Description    string            `dynamodbav:"description,omitempty" json:"description,omitempty"`
	MusicYearStart int               `dynamodbav:"music_year_start" json:"music_year_start"`
	MusicYearEnd   int               `dynamodbav:"music_year_end" json:"music_year_end"`
	Result         *ProcessingResult `dynamodbav:"result,omitempty" json:"result,omitempty"`
	ErrorMessage   string            `dynamodbav:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt      string            `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt      string            `dynamodbav:"updated_at" json:"updated_at"`
	CompletedAt    string            `dynamodbav:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// AnalysisJob is the payload handed to the orchestrator, either inline or through SQS.
type AnalysisJob struct {
	RequestID      string `json:"request_id"`
	JobID          string `json:"job_id,omitempty"`
	VideoURL       string `json:"video_url"`
	Description    string `json:"description,omitempty"`
	MusicYearStart int    `json:"music_year_start,omitempty"`
	MusicYearEnd   int    `json:"music_year_end,omitempty"`
}

// Validate checks if the analysis job has all required fields.
func (j *AnalysisJob) Validate() error {
	if j.RequestID == "" {
		return ErrMissingRequestID
	}
	if j.VideoURL == "" {
		return ErrMissingVideoURL
	}
	return nil
}

// JobFor builds the analysis payload for a stored request.
func JobFor(req *ProcessingRequest, jobID string) AnalysisJob {
	return AnalysisJob{
		RequestID:      req.ID,
		JobID:          jobID,
		VideoURL:       req.VideoURL,
		Description:    req.Description,
		MusicYearStart: req.MusicYearStart,
		MusicYearEnd:   req.MusicYearEnd,
	}
}

// ShortID returns the trailing n characters of id, or id itself when shorter.
func ShortID(id string, n int) string {
	if utf8.RuneCountInString(id) <= n {
		return id
	}
	runes := []rune(id)
	return string(runes[len(runes)-n:])
}
