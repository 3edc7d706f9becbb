package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Mode selects the admission policy.
type Mode string

const (
	ModeUnbounded Mode = "unbounded"
	ModeExclusive Mode = "exclusive"
)

// Admission decides whether a new job may start and tracks who may cancel it.
// Implementations must be safe for concurrent use.
type Admission interface {
	// Acquire admits jobID for owner or returns ErrBusy.
	Acquire(jobID uuid.UUID, owner string, cancel context.CancelFunc) error
	// Release frees the slot held by jobID. Releasing a job that no longer
	// holds the slot is a no-op.
	Release(jobID uuid.UUID)
	// Cancel cancels the active job if owner holds it and frees the slot.
	// onCancel, when non-nil, runs while the slot is still held.
	Cancel(owner string, onCancel func(jobID uuid.UUID)) (uuid.UUID, error)
	// Active reports the job currently holding the slot, if any.
	Active() (Slot, bool)
}

// Slot is the exclusive-mode "current job" record.
type Slot struct {
	JobID uuid.UUID
	Owner string
}

// NewAdmission returns the policy for mode. Unknown modes fall back to unbounded.
func NewAdmission(mode Mode) Admission {
	if mode == ModeExclusive {
		return NewExclusive()
	}
	return Unbounded{}
}

// Unbounded admits every request.
type Unbounded struct{}

func (Unbounded) Acquire(uuid.UUID, string, context.CancelFunc) error { return nil }
func (Unbounded) Release(uuid.UUID)                                   {}
func (Unbounded) Cancel(string, func(uuid.UUID)) (uuid.UUID, error)  { return uuid.Nil, ErrNoActiveJob }
func (Unbounded) Active() (Slot, bool)                                { return Slot{}, false }

// Exclusive allows at most one active job system-wide.
type Exclusive struct {
	mu     sync.Mutex
	slot   *Slot
	cancel context.CancelFunc
}

// NewExclusive creates an empty single-slot admission.
func NewExclusive() *Exclusive {
	return &Exclusive{}
}

func (e *Exclusive) Acquire(jobID uuid.UUID, owner string, cancel context.CancelFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot != nil {
		return ErrBusy
	}
	e.slot = &Slot{JobID: jobID, Owner: owner}
	e.cancel = cancel
	return nil
}

func (e *Exclusive) Release(jobID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot == nil || e.slot.JobID != jobID {
		return
	}
	e.slot = nil
	e.cancel = nil
}

func (e *Exclusive) Cancel(owner string, onCancel func(jobID uuid.UUID)) (uuid.UUID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot == nil {
		return uuid.Nil, ErrNoActiveJob
	}
	if e.slot.Owner != owner {
		return uuid.Nil, ErrNotOwner
	}

	id := e.slot.JobID
	if e.cancel != nil {
		e.cancel()
	}
	if onCancel != nil {
		onCancel(id)
	}
	e.slot = nil
	e.cancel = nil
	return id, nil
}

func (e *Exclusive) Active() (Slot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.slot == nil {
		return Slot{}, false
	}
	return *e.slot, true
}
