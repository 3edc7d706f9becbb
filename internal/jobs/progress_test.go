package jobs

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(v float64) *float64 { return &v }
func ptrInt(v int) *int           { return &v }

func TestPercent(t *testing.T) {
	tests := []struct {
		name   string
		ev     models.ProgressEvent
		want   int
		wantOK bool
	}{
		{"exact total", models.ProgressEvent{Downloaded: 50, Total: 100}, 50, true},
		{"floors", models.ProgressEvent{Downloaded: 999, Total: 1000}, 99, true},
		{"estimate when total unknown", models.ProgressEvent{Downloaded: 25, TotalEstimate: 100}, 25, true},
		{"exact preferred over estimate", models.ProgressEvent{Downloaded: 50, Total: 200, TotalEstimate: 100}, 25, true},
		{"clamped high", models.ProgressEvent{Downloaded: 150, Total: 100}, 100, true},
		{"no total", models.ProgressEvent{Downloaded: 50}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Percent(tt.ev)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyProgress_Sequence(t *testing.T) {
	job := newQueuedJob()
	now := time.Now()

	var seen []int
	for _, d := range []int64{0, 50, 100} {
		require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
			Phase: models.PhaseDownloading, Downloaded: d, Total: 100,
		}, now))
		seen = append(seen, job.Progress)
		assert.Equal(t, models.JobStatusDownloading, job.Status)
	}
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{Phase: models.PhaseFinished}, now))
	seen = append(seen, job.Progress)

	assert.Equal(t, []int{0, 50, 100, 100}, seen)
	assert.Equal(t, models.JobStatusProcessing, job.Status)
}

func TestApplyProgress_UnknownTotalKeepsPercent(t *testing.T) {
	job := newQueuedJob()
	now := time.Now()

	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 40, Total: 100,
	}, now))
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 60,
	}, now))

	assert.Equal(t, 40, job.Progress)
}

func TestApplyProgress_NeverDecreases(t *testing.T) {
	job := newQueuedJob()
	now := time.Now()

	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 80, Total: 100,
	}, now))
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 10, Total: 100,
	}, now))

	assert.Equal(t, 80, job.Progress)
}

func TestApplyProgress_TelemetryKeepsLastKnown(t *testing.T) {
	job := newQueuedJob()
	now := time.Now()

	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 10, Total: 100,
		Speed: ptrFloat(1024), ETA: ptrInt(9),
	}, now))
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 20, Total: 100,
	}, now))

	require.NotNil(t, job.Speed)
	assert.Equal(t, 1024.0, *job.Speed)
	require.NotNil(t, job.ETA)
	assert.Equal(t, 9, *job.ETA)
}

func TestApplyProgress_DownloadAfterFinishedIgnored(t *testing.T) {
	job := newQueuedJob()
	now := time.Now()

	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{Phase: models.PhaseFinished}, now))
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{
		Phase: models.PhaseDownloading, Downloaded: 5, Total: 100,
	}, now))

	assert.Equal(t, models.JobStatusProcessing, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestApplyProgress_ErrorPhaseLeavesJobAlone(t *testing.T) {
	job := newQueuedJob()
	require.NoError(t, ApplyProgress(&job, models.ProgressEvent{Phase: models.PhaseError}, time.Now()))
	assert.Equal(t, models.JobStatusQueued, job.Status)
}

func TestReporter_AppliesAndPublishes(t *testing.T) {
	store := NewStore()
	id := store.Create(newQueuedJob())

	var (
		mu        sync.Mutex
		published []int
	)
	rep := newReporter(context.Background(), id, store, func(j models.Job) {
		mu.Lock()
		published = append(published, j.Progress)
		mu.Unlock()
	}, slog.Default(), time.Now)

	for _, d := range []int64{0, 50, 100} {
		rep.Report(models.ProgressEvent{Phase: models.PhaseDownloading, Downloaded: d, Total: 100})
	}
	rep.Report(models.ProgressEvent{Phase: models.PhaseFinished})
	rep.close()

	// Reports after close are dropped without blocking.
	rep.Report(models.ProgressEvent{Phase: models.PhaseDownloading, Downloaded: 1, Total: 100})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 50, 100, 100}, published)

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
}

func TestReporter_DropsEventsAfterCancel(t *testing.T) {
	store := NewStore()
	id := store.Create(newQueuedJob())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := newReporter(ctx, id, store, func(models.Job) {}, slog.Default(), time.Now)
	rep.Report(models.ProgressEvent{Phase: models.PhaseDownloading, Downloaded: 50, Total: 100})
	rep.close()

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.Equal(t, 0, got.Progress)
}
