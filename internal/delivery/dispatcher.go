package delivery

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/jobs"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
	"golang.org/x/time/rate"
)

const (
	sendTimeout   = 15 * time.Second
	uploadTimeout = 5 * time.Minute
)

// JobRunner is the slice of jobs.Service the Dispatcher drives.
type JobRunner interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (models.Job, error)
	Watch(id uuid.UUID) (<-chan models.Job, func(), error)
	Artifact(id uuid.UUID) (jobs.Artifact, error)
	Cancel(owner string) (uuid.UUID, error)
}

// Options configures a Dispatcher.
type Options struct {
	// EditInterval is the minimum gap between live status edits. Defaults to 2s.
	EditInterval time.Duration
	// KeepArtifacts leaves uploaded files on disk for the retention sweeper.
	KeepArtifacts bool
	Logger        *slog.Logger
}

// Dispatcher submits bot requests, keeps one live status message per job up
// to date and uploads the artifact when the job is done.
type Dispatcher struct {
	jobs          JobRunner
	messenger     Messenger
	editInterval  time.Duration
	keepArtifacts bool
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(runner JobRunner, messenger Messenger, opts Options) *Dispatcher {
	if opts.EditInterval <= 0 {
		opts.EditInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		jobs:          runner,
		messenger:     messenger,
		editInterval:  opts.EditInterval,
		keepArtifacts: opts.KeepArtifacts,
		logger:        opts.Logger,
	}
}

// Dispatch submits req and follows the job in the background. Intake errors
// are returned as-is and no message is sent.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (models.Job, error) {
	job, err := d.jobs.Submit(ctx, jobs.SubmitRequest{
		URL:    req.URL,
		Format: req.Format,
		Title:  req.Title,
		Owner:  req.Requester,
	})
	if err != nil {
		return models.Job{}, err
	}

	updates, stop, err := d.jobs.Watch(job.ID)
	if err != nil {
		return job, err
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer stop()
		d.follow(job, req, updates)
	}()
	return job, nil
}

// Cancel stops the requester's active job.
func (d *Dispatcher) Cancel(requester string) (uuid.UUID, error) {
	return d.jobs.Cancel(requester)
}

// Wait blocks until every followed job has been delivered or reported.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) follow(job models.Job, req Request, updates <-chan models.Job) {
	logger := d.logger.With("job_id", job.ID, "requester", req.Requester)

	last := RenderStatus(job)
	ref, err := d.send(statusChat(req), last)
	if err != nil {
		logger.Warn("send status message", "error", err)
	}

	limiter := rate.NewLimiter(rate.Every(d.editInterval), 1)
	final := job
	for snap := range updates {
		final = snap
		if snap.Status.IsTerminal() {
			break
		}
		text := RenderStatus(snap)
		if text == last || !limiter.Allow() {
			continue
		}
		last = text
		d.edit(logger, ref, text)
	}

	if text := RenderStatus(final); text != last {
		d.edit(logger, ref, text)
	}

	if final.Status != models.JobStatusDone {
		return
	}
	d.deliver(logger, final, req)
}

func (d *Dispatcher) deliver(logger *slog.Logger, job models.Job, req Request) {
	art, err := d.jobs.Artifact(job.ID)
	if err != nil {
		logger.Error("resolve artifact", "error", err)
		return
	}
	if !d.keepArtifacts {
		defer func() {
			if err := os.Remove(art.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("remove delivered artifact", "path", art.Path, "error", err)
			}
		}()
	}

	target, note := ResolveTarget(req)
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	err = d.messenger.Upload(ctx, target, Upload{
		Path:     art.Path,
		Filename: art.Filename,
		Caption:  Caption(art.Title, note),
		Format:   art.Format,
	})
	if err != nil {
		logger.Error("upload artifact", "target", target, "error", err)
		if _, serr := d.send(statusChat(req), "❌ Upload failed: "+err.Error()); serr != nil {
			logger.Warn("send upload failure", "error", serr)
		}
		return
	}
	logger.Info("artifact delivered", "target", target, "title", art.Title)
}

// statusChat is where live status is shown: the chat the command came from.
func statusChat(req Request) string {
	if req.OriginChat != "" {
		return req.OriginChat
	}
	return req.RequesterChat
}

func (d *Dispatcher) send(chatID, text string) (MessageRef, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return d.messenger.Send(ctx, chatID, text)
}

// edit is best-effort; failures never affect the job.
func (d *Dispatcher) edit(logger *slog.Logger, ref MessageRef, text string) {
	if ref.MessageID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := d.messenger.Edit(ctx, ref, text); err != nil {
		logger.Debug("edit status message", "error", err)
	}
}
