package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// cancelledMessage is the error text stored on jobs stopped by their owner.
const cancelledMessage = "cancelled"

// HistoryRecorder persists completed jobs. Failures are logged, never surfaced
// to the job.
type HistoryRecorder interface {
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
}

// StatusMirror publishes job status to an external cache for other readers.
type StatusMirror interface {
	SetJobStatus(ctx context.Context, jobID uuid.UUID, status models.JobStatus, ttl time.Duration) error
}

// Options configures a Service. Zero values are usable.
type Options struct {
	DownloadDir   string
	SourcePattern string
	// StatusTTL bounds how long mirrored statuses live. Defaults to 30 minutes.
	StatusTTL time.Duration
	History   HistoryRecorder
	Mirror    StatusMirror
	Logger    *slog.Logger
	// Disabled starts the service with intake switched off.
	Disabled bool
}

// SubmitRequest is one intake request from any front-end.
type SubmitRequest struct {
	URL    string
	Format string
	// Title overrides the fetched title. Blank or "no" means no override.
	Title string
	// Owner identifies the requester; only the owner may cancel in exclusive mode.
	Owner string
}

// Artifact is a completed job's deliverable file.
type Artifact struct {
	Path     string
	Filename string
	Title    string
	Format   models.Format
}

// Service validates, admits and executes conversion jobs and tracks their
// progress. One Service is shared by every front-end in a process.
type Service struct {
	fetcher   models.Fetcher
	admission Admission
	validator *Validator
	store     *Store
	watchers  *broadcaster

	history     HistoryRecorder
	mirror      StatusMirror
	downloadDir string
	statusTTL   time.Duration
	logger      *slog.Logger
	now         func() time.Time

	enabled atomic.Bool
	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a Service. admission selects unbounded or exclusive
// execution.
func NewService(fetcher models.Fetcher, admission Admission, opts Options) (*Service, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if admission == nil {
		admission = Unbounded{}
	}
	v, err := NewValidator(opts.SourcePattern)
	if err != nil {
		return nil, err
	}
	if opts.StatusTTL <= 0 {
		opts.StatusTTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "downloads"
	}

	ctx, stop := context.WithCancel(context.Background())
	s := &Service{
		fetcher:     fetcher,
		admission:   admission,
		validator:   v,
		store:       NewStore(),
		watchers:    newBroadcaster(),
		history:     opts.History,
		mirror:      opts.Mirror,
		downloadDir: opts.DownloadDir,
		statusTTL:   opts.StatusTTL,
		logger:      opts.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		baseCtx:     ctx,
		stop:        stop,
	}
	s.enabled.Store(!opts.Disabled)
	return s, nil
}

// Submit validates req, admits it and starts execution in the background.
// It returns the queued job without waiting for the fetch. On any error no
// job is created.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (models.Job, error) {
	if !s.enabled.Load() {
		return models.Job{}, ErrDownloadsDisabled
	}

	rawURL, format, err := s.validator.Validate(req.URL, req.Format)
	if err != nil {
		return models.Job{}, err
	}

	id := uuid.New()
	jobCtx, cancel := context.WithCancel(s.baseCtx)
	if err := s.admission.Acquire(id, req.Owner, cancel); err != nil {
		cancel()
		return models.Job{}, err
	}

	now := s.now()
	job := models.Job{
		ID:        id,
		URL:       rawURL,
		Format:    format,
		Status:    models.JobStatusQueued,
		Owner:     req.Owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.store.Create(job)
	s.mirrorStatus(ctx, id, models.JobStatusQueued)

	s.logger.Info("job queued", "job_id", id, "format", format, "owner", req.Owner)

	s.wg.Add(1)
	go s.run(jobCtx, cancel, id, rawURL, format, req.Title)

	return job, nil
}

// run executes one admitted job. Every exit path writes a terminal status and
// releases the admission slot.
func (s *Service) run(ctx context.Context, cancel context.CancelFunc, id uuid.UUID, rawURL string, format models.Format, titleOverride string) {
	defer s.wg.Done()
	defer cancel()
	defer s.admission.Release(id)

	rep := newReporter(ctx, id, s.store, s.watchers.publish, s.logger, s.now)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in job execution", "error", r, "job_id", id)
			rep.close()
			s.fail(id, fmt.Sprintf("panic: %v", r))
		}
	}()

	result, err := s.fetcher.Fetch(ctx, models.FetchRequest{
		URL:            rawURL,
		Format:         format,
		OutputTemplate: filepath.Join(s.downloadDir, id.String()+".%(ext)s"),
	}, rep.Report)
	rep.close()

	if ctx.Err() != nil {
		if result.FilePath != "" {
			removeArtifact(s.logger, id, result.FilePath)
		}
		s.fail(id, cancelledMessage)
		return
	}
	if err != nil {
		s.logger.Warn("fetch failed", "job_id", id, "error", err)
		s.fail(id, err.Error())
		return
	}

	title := ResolveTitle(titleOverride, result.Title)
	snap, err := s.store.Mutate(id, func(j *models.Job) error {
		if err := j.Transition(models.JobStatusDone, s.now()); err != nil {
			return err
		}
		j.Progress = 100
		j.File = result.FilePath
		j.Title = title
		j.Speed = nil
		j.ETA = nil
		return nil
	})
	if err != nil {
		// Cancelled between fetch completion and commit.
		removeArtifact(s.logger, id, result.FilePath)
		return
	}

	s.logger.Info("job done", "job_id", id, "title", title)
	s.mirrorStatus(context.Background(), id, models.JobStatusDone)
	s.recordHistory(snap)
	s.watchers.publish(snap)
}

// fail marks the job as errored. It is a no-op for jobs that already ended.
func (s *Service) fail(id uuid.UUID, msg string) {
	if snap, ok := s.markFailed(id, msg); ok {
		s.announceFailed(snap)
	}
}

// markFailed writes the error state to the store only.
func (s *Service) markFailed(id uuid.UUID, msg string) (models.Job, bool) {
	snap, err := s.store.Mutate(id, func(j *models.Job) error {
		if err := j.Transition(models.JobStatusError, s.now()); err != nil {
			return err
		}
		j.Error = msg
		j.Speed = nil
		j.ETA = nil
		return nil
	})
	return snap, err == nil
}

func (s *Service) announceFailed(snap models.Job) {
	s.mirrorStatus(context.Background(), snap.ID, models.JobStatusError)
	s.watchers.publish(snap)
}

func (s *Service) mirrorStatus(ctx context.Context, id uuid.UUID, status models.JobStatus) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SetJobStatus(ctx, id, status, s.statusTTL); err != nil {
		s.logger.Debug("mirror job status", "job_id", id, "error", err)
	}
}

func (s *Service) recordHistory(job models.Job) {
	if s.history == nil {
		return
	}
	entry := models.HistoryEntry{
		JobID:  job.ID,
		When:   s.now(),
		URL:    job.URL,
		Format: job.Format,
		Title:  job.Title,
		File:   filepath.Base(job.File),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.AppendHistory(ctx, entry); err != nil {
		s.logger.Warn("append history", "job_id", job.ID, "error", err)
	}
}

// Get returns a snapshot of the job.
func (s *Service) Get(id uuid.UUID) (models.Job, error) {
	return s.store.Get(id)
}

// List returns snapshots of every tracked job, newest first.
func (s *Service) List() []models.Job {
	return s.store.List()
}

// Len returns the number of tracked jobs.
func (s *Service) Len() int {
	return s.store.Len()
}

// Artifact returns the deliverable for a done job.
func (s *Service) Artifact(id uuid.UUID) (Artifact, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return Artifact{}, err
	}
	if job.Status != models.JobStatusDone || job.File == "" {
		return Artifact{}, ErrNotReady
	}

	ext := filepath.Ext(job.File)
	if ext == "" {
		ext = "." + job.Format.Extension()
	}
	return Artifact{
		Path:     job.File,
		Filename: SafeFilename(job.Title) + ext,
		Title:    job.Title,
		Format:   job.Format,
	}, nil
}

// Cancel stops the active job held by owner. The job is marked errored
// before its slot is freed; the underlying fetch stops on a best-effort basis.
func (s *Service) Cancel(owner string) (uuid.UUID, error) {
	var (
		snap   models.Job
		marked bool
	)
	id, err := s.admission.Cancel(owner, func(jobID uuid.UUID) {
		snap, marked = s.markFailed(jobID, cancelledMessage)
	})
	if err != nil {
		return uuid.Nil, err
	}
	if marked {
		s.announceFailed(snap)
	}
	s.logger.Info("job cancelled", "job_id", id, "owner", owner)
	return id, nil
}

// Active reports the job holding the exclusive slot, if any.
func (s *Service) Active() (Slot, bool) {
	return s.admission.Active()
}

// Watch streams snapshots of the job until it reaches a terminal state, then
// closes the channel. The returned func stops watching early.
func (s *Service) Watch(id uuid.UUID) (<-chan models.Job, func(), error) {
	s.watchers.mu.Lock()
	defer s.watchers.mu.Unlock()

	snap, err := s.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	ch, stop := s.watchers.subscribe(snap)
	return ch, stop, nil
}

// SetEnabled switches intake on or off at runtime.
func (s *Service) SetEnabled(on bool) {
	s.enabled.Store(on)
	s.logger.Info("downloads toggled", "enabled", on)
}

// Enabled reports whether intake is accepting jobs.
func (s *Service) Enabled() bool {
	return s.enabled.Load()
}

// DownloadDir returns the directory artifacts are written to.
func (s *Service) DownloadDir() string {
	return s.downloadDir
}

// Wait blocks until every running job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels all running jobs and waits for them to exit or for ctx to
// expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.enabled.Store(false)
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

// SafeFilename strips path separators and control characters from a title so
// it can be used as a download filename.
func SafeFilename(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, title)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "download"
	}
	return cleaned
}

func removeArtifact(logger *slog.Logger, id uuid.UUID, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("remove artifact", "job_id", id, "path", path, "error", err)
	}
}
