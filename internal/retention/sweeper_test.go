package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, when, when))
	return path
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "old.mp3", 48*time.Hour)
	fresh := writeAged(t, dir, "fresh.mp4", time.Minute)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	s := NewSweeper(dir, 24*time.Hour, nil)
	stats, err := s.Sweep()
	require.NoError(t, err)

	assert.Equal(t, Stats{Scanned: 2, Removed: 1}, stats)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestSweep_MissingDir(t *testing.T) {
	s := NewSweeper(filepath.Join(t.TempDir(), "absent"), time.Hour, nil)
	stats, err := s.Sweep()
	require.NoError(t, err)
	assert.Zero(t, stats)
}

func TestSweep_UsesClock(t *testing.T) {
	dir := t.TempDir()
	path := writeAged(t, dir, "a.mp3", time.Minute)

	s := NewSweeper(dir, time.Hour, nil)
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	stats, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
	assert.NoFileExists(t, path)
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Hour, nil)
	assert.Error(t, s.Start("every tuesday"))
}

func TestStart_RejectsNonPositiveAge(t *testing.T) {
	s := NewSweeper(t.TempDir(), 0, nil)
	assert.Error(t, s.Start("@hourly"))
}

func TestStartStop(t *testing.T) {
	s := NewSweeper(t.TempDir(), time.Hour, nil)
	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
}
