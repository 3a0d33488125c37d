package jobclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadFailed wraps any transport or non-2xx failure of POST /upload.
	ErrUploadFailed = errors.New("upload failed")
	// ErrPollFailed wraps a failed GET /status. Callers polling on a timer
	// treat it as transient.
	ErrPollFailed = errors.New("status poll failed")
	// ErrResultsUnavailable wraps a failed or undecodable GET /results.
	ErrResultsUnavailable = errors.New("results unavailable")
	// ErrDownloadFailed wraps a failed GET /results/download.
	ErrDownloadFailed = errors.New("download failed")
)

// ValidationError is returned when a file is rejected before any request is made.
type ValidationError struct {
	Filename string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// PollError reports a job the backend marked as failed (status "error").
// Error returns the backend message as is.
type PollError struct {
	Message string
}

func (e *PollError) Error() string {
	if e.Message == "" {
		return "analysis failed"
	}
	return e.Message
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
