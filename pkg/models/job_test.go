package models_test

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, models.JobStatusQueued.IsTerminal())
	assert.False(t, models.JobStatusDownloading.IsTerminal())
	assert.False(t, models.JobStatusProcessing.IsTerminal())
	assert.True(t, models.JobStatusDone.IsTerminal())
	assert.True(t, models.JobStatusError.IsTerminal())
}

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to models.JobStatus
		want     bool
	}{
		{models.JobStatusQueued, models.JobStatusDownloading, true},
		{models.JobStatusQueued, models.JobStatusProcessing, true},
		{models.JobStatusDownloading, models.JobStatusProcessing, true},
		{models.JobStatusProcessing, models.JobStatusDone, true},
		{models.JobStatusDownloading, models.JobStatusDownloading, true},
		{models.JobStatusQueued, models.JobStatusError, true},
		{models.JobStatusProcessing, models.JobStatusError, true},
		{models.JobStatusProcessing, models.JobStatusDownloading, false},
		{models.JobStatusDownloading, models.JobStatusQueued, false},
		{models.JobStatusDone, models.JobStatusError, false},
		{models.JobStatusError, models.JobStatusDone, false},
		{models.JobStatusDone, models.JobStatusDone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJob_Transition_StampsCompletion(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	j := models.Job{Status: models.JobStatusProcessing}

	require.NoError(t, j.Transition(models.JobStatusDone, now))
	assert.Equal(t, models.JobStatusDone, j.Status)
	require.NotNil(t, j.CompletedAt)
	assert.Equal(t, now, *j.CompletedAt)

	err := j.Transition(models.JobStatusError, now)
	assert.Error(t, err)
	assert.Equal(t, models.JobStatusDone, j.Status)
}

func TestParseFormat(t *testing.T) {
	f, ok := models.ParseFormat("Audio")
	assert.True(t, ok)
	assert.Equal(t, models.FormatAudio, f)

	f, ok = models.ParseFormat("mp4")
	assert.True(t, ok)
	assert.Equal(t, models.FormatVideo, f)

	_, ok = models.ParseFormat("flac")
	assert.False(t, ok)

	assert.Equal(t, "mp3", models.FormatAudio.Extension())
	assert.Equal(t, "mp4", models.FormatVideo.Extension())
}

func TestJob_Clone_IsDeep(t *testing.T) {
	speed := 1024.0
	eta := 9
	j := models.Job{Speed: &speed, ETA: &eta}

	c := j.Clone()
	*c.Speed = 1
	*c.ETA = 1

	assert.Equal(t, 1024.0, *j.Speed)
	assert.Equal(t, 9, *j.ETA)
}
