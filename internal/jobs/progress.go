package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// reporterBuffer bounds how far the fetch engine can run ahead of the store.
const reporterBuffer = 64

// Percent computes floor(downloaded*100/total) clamped to [0,100]. The exact
// total is preferred over the estimate. ok is false when no total is known.
func Percent(ev models.ProgressEvent) (pct int, ok bool) {
	total := ev.Total
	if total <= 0 {
		total = ev.TotalEstimate
	}
	if total <= 0 {
		return 0, false
	}
	p := ev.Downloaded * 100 / total
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return int(p), true
}

// ApplyProgress folds one fetcher event into job. Percent never decreases and
// telemetry keeps its last known value. A finished event moves the job to
// processing; the execution task sets done later.
func ApplyProgress(job *models.Job, ev models.ProgressEvent, now time.Time) error {
	switch ev.Phase {
	case models.PhaseDownloading:
		// A second stream (video then audio) reports downloading again after
		// finished; processing already covers it.
		if job.Status == models.JobStatusProcessing {
			return nil
		}
		if err := job.Transition(models.JobStatusDownloading, now); err != nil {
			return err
		}
		if pct, ok := Percent(ev); ok && pct > job.Progress {
			job.Progress = pct
		}
		if ev.Speed != nil {
			v := *ev.Speed
			job.Speed = &v
		}
		if ev.ETA != nil {
			v := *ev.ETA
			job.ETA = &v
		}
	case models.PhaseFinished:
		if err := job.Transition(models.JobStatusProcessing, now); err != nil {
			return err
		}
		job.Progress = 100
	default:
		return nil
	}
	job.UpdatedAt = now
	return nil
}

// reporter moves events off the fetch engine's callback stack onto its own
// goroutine, where they are applied to the store and published to watchers.
type reporter struct {
	ctx     context.Context
	jobID   uuid.UUID
	store   *Store
	publish func(models.Job)
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	closed bool
	events chan models.ProgressEvent
	done   chan struct{}
}

func newReporter(ctx context.Context, jobID uuid.UUID, store *Store, publish func(models.Job), logger *slog.Logger, now func() time.Time) *reporter {
	r := &reporter{
		ctx:     ctx,
		jobID:   jobID,
		store:   store,
		publish: publish,
		logger:  logger,
		now:     now,
		events:  make(chan models.ProgressEvent, reporterBuffer),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Report is the models.ProgressFunc handed to the fetcher. Events that arrive
// after close or after cancellation are dropped.
func (r *reporter) Report(ev models.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	select {
	case r.events <- ev:
	case <-r.ctx.Done():
	}
}

// close stops intake and waits until every queued event has been applied.
func (r *reporter) close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *reporter) run() {
	defer close(r.done)

	for ev := range r.events {
		if r.ctx.Err() != nil {
			continue
		}
		if ev.Phase == models.PhaseError {
			r.logger.Warn("fetcher reported error phase", "job_id", r.jobID)
			continue
		}
		snap, err := r.store.Mutate(r.jobID, func(j *models.Job) error {
			return ApplyProgress(j, ev, r.now())
		})
		if err != nil {
			r.logger.Debug("progress event dropped", "job_id", r.jobID, "error", err)
			continue
		}
		r.publish(snap)
	}
}
