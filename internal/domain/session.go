// Package domain holds analysis session entities and the result payload.
// It has no dependencies on other packages.
package domain

import (
	"errors"
	"time"
)

// ErrAnalysisNotFound is returned when a history record does not exist.
var ErrAnalysisNotFound = errors.New("analysis not found")

// Phase is the lifecycle phase of an analysis session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseUploading Phase = "uploading"
	PhasePolling   Phase = "polling"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Busy reports whether a run is in flight (an upload or poll is outstanding).
func (p Phase) Busy() bool {
	return p == PhaseUploading || p == PhasePolling
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// SessionSnapshot is an immutable copy of a session's observable fields.
type SessionSnapshot struct {
	RunID       string    `json:"run_id,omitempty"`
	Phase       Phase     `json:"phase"`
	Filename    string    `json:"filename,omitempty"`
	Progress    int       `json:"progress"`
	CurrentStep string    `json:"current_step,omitempty"`
	Error       string    `json:"error,omitempty"`
	HasResult   bool      `json:"has_result"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	Err error `json:"-"`
}

// AnalysisRecord is a persisted summary of one finished run.
type AnalysisRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Phase      Phase     `json:"phase"` // completed or failed
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Result     []byte    `json:"-"` // raw result JSON; empty for failed runs
}

// Duration returns how long the run took.
func (r *AnalysisRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
