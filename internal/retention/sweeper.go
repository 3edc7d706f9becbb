// Package retention removes expired artifacts from the download directory.
package retention

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
)

// Stats summarizes one sweep.
type Stats struct {
	Scanned int
	Removed int
	Errors  int
}

// Sweeper deletes files older than maxAge on a cron schedule.
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time
}

// NewSweeper creates a Sweeper for dir.
func NewSweeper(dir string, maxAge time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules sweeps using a standard five-field cron spec or a
// descriptor such as "@hourly".
func (s *Sweeper) Start(schedule string) error {
	if s.maxAge <= 0 {
		return fmt.Errorf("retention max age must be positive")
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info("retention sweeper started", "schedule", schedule, "dir", s.dir, "max_age", s.maxAge.String())
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("retention sweeper stopped")
}

func (s *Sweeper) run() {
	stats, err := s.Sweep()
	if err != nil {
		s.logger.Error("retention sweep failed", "dir", s.dir, "error", err)
		return
	}
	s.logger.Info("retention sweep completed",
		"scanned", stats.Scanned,
		"removed", stats.Removed,
		"errors", stats.Errors,
	)
}

// Sweep removes regular files in the directory whose modification time is
// older than maxAge. A missing directory is not an error.
func (s *Sweeper) Sweep() (Stats, error) {
	var stats Stats

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("reading %s: %w", s.dir, err)
	}

	cutoff := s.now().Add(-s.maxAge)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		stats.Scanned++

		info, err := e.Info()
		if err != nil {
			// Removed concurrently.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, e.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("remove expired artifact", "path", path, "error", err)
			stats.Errors++
			continue
		}
		stats.Removed++
	}
	return stats, nil
}
