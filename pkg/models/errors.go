package models

import "errors"

// Sentinel errors for request operations.
var (
	// Job validation errors
	ErrMissingRequestID = errors.New("request_id is required")
	ErrMissingVideoURL  = errors.New("video_url is required")

	// Processing errors
	ErrJobParseFailed  = errors.New("failed to parse job")
	ErrAnalysisFailed  = errors.New("analysis failed")
	ErrContextCanceled = errors.New("context canceled")

	// Storage errors
	ErrRequestNotFound   = errors.New("processing request not found")
	ErrJobNotFound       = errors.New("processing job not found")
	ErrInvalidStatus     = errors.New("invalid request status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUploadFailed      = errors.New("failed to upload video")

	// Validation errors for uploads
	ErrNoFile           = errors.New("no file provided")
	ErrInvalidFileType  = errors.New("invalid file type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrInvalidYearRange = errors.New("invalid music year range")
)
