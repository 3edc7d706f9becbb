package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a conversion job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusDone        JobStatus = "done"
	JobStatusError       JobStatus = "error"
)

// stage orders the non-error states; a job may only move to a higher stage.
var stage = map[JobStatus]int{
	JobStatusQueued:      0,
	JobStatusDownloading: 1,
	JobStatusProcessing:  2,
	JobStatusDone:        3,
}

// IsTerminal reports whether no further transitions can occur.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransition reports whether moving from s to next is allowed.
// Staying in the same non-terminal state is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusError {
		return true
	}
	from, ok := stage[s]
	if !ok {
		return false
	}
	to, ok := stage[next]
	if !ok {
		return false
	}
	return to >= from
}

// Format is the requested output kind.
type Format string

const (
	FormatAudio Format = "audio"
	FormatVideo Format = "video"
)

// ParseFormat accepts "audio"/"video" and the container aliases "mp3"/"mp4".
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio", "mp3":
		return FormatAudio, true
	case "video", "mp4":
		return FormatVideo, true
	default:
		return "", false
	}
}

// Extension returns the container extension produced for the format, without a dot.
func (f Format) Extension() string {
	if f == FormatAudio {
		return "mp3"
	}
	return "mp4"
}

// Job is one tracked conversion request. Clients poll GET /api/v1/jobs/{id}
// or watch /api/v1/jobs/{id}/events until status is done or error.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	URL         string     `json:"url"`
	Format      Format     `json:"format"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Speed       *float64   `json:"speed,omitempty"` // bytes per second
	ETA         *int       `json:"eta,omitempty"`   // seconds
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty"`
	File        string     `json:"-"`
	Owner       string     `json:"-"`
	CreatedAt   time.Time  `json:"created"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Transition moves the job to next, stamping completion time for terminal states.
func (j *Job) Transition(next JobStatus, now time.Time) error {
	if j.Status == next && !next.IsTerminal() {
		return nil
	}
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("invalid job status transition: %s -> %s", j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	if next.IsTerminal() {
		j.CompletedAt = &now
	}
	return nil
}

// Clone returns a deep copy safe to hand to readers.
func (j Job) Clone() Job {
	out := j
	if j.Speed != nil {
		v := *j.Speed
		out.Speed = &v
	}
	if j.ETA != nil {
		v := *j.ETA
		out.ETA = &v
	}
	if j.CompletedAt != nil {
		v := *j.CompletedAt
		out.CompletedAt = &v
	}
	return out
}
