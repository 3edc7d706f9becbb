// Package ytdlp implements models.Fetcher on top of the yt-dlp binary.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kiranshivaraju/tubedrop/internal/config"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
	goytdlp "github.com/lrstanley/go-ytdlp"
)

const (
	audioFormat = "bestaudio/best"
	videoFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
)

var (
	ErrDependencyMissing = errors.New("yt-dlp dependency missing")
	ErrNoArtifact        = errors.New("yt-dlp produced no output file")
)

// Fetcher runs yt-dlp for each request and reports its progress.
type Fetcher struct {
	binary       string
	audioQuality string
	interval     time.Duration
}

// NewFetcher creates a yt-dlp backed fetcher.
func NewFetcher(cfg config.FetcherConfig) *Fetcher {
	f := &Fetcher{
		binary:       cfg.BinaryPath,
		audioQuality: cfg.AudioQuality,
		interval:     cfg.ProgressInterval,
	}
	if f.audioQuality == "" {
		f.audioQuality = "192K"
	}
	if f.interval <= 0 {
		f.interval = 500 * time.Millisecond
	}
	return f
}

func (f *Fetcher) Name() string { return "ytdlp" }

// Fetch downloads req.URL and transcodes it to req.Format.
func (f *Fetcher) Fetch(ctx context.Context, req models.FetchRequest, onProgress models.ProgressFunc) (models.FetchResult, error) {
	var (
		mu    sync.Mutex
		title string
	)

	dl := f.command(req)
	dl.ProgressFunc(f.interval, func(update goytdlp.ProgressUpdate) {
		if update.Info != nil && update.Info.Title != nil {
			mu.Lock()
			title = *update.Info.Title
			mu.Unlock()
		}
		if onProgress == nil {
			return
		}
		if ev, ok := toEvent(sampleOf(update), time.Now()); ok {
			onProgress(ev)
		}
	})

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return models.FetchResult{}, ctx.Err()
		}
		return models.FetchResult{}, fmt.Errorf("yt-dlp: %w", err)
	}

	out := models.FetchResult{FilePath: req.OutputPath(req.Format.Extension())}
	if result != nil {
		if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 {
			if info[0].Title != nil {
				title = *info[0].Title
			}
			if _, statErr := os.Stat(out.FilePath); statErr != nil && info[0].Filename != nil {
				out.FilePath = *info[0].Filename
			}
		}
	}
	if _, err := os.Stat(out.FilePath); err != nil {
		return models.FetchResult{}, fmt.Errorf("%w: %s", ErrNoArtifact, out.FilePath)
	}

	mu.Lock()
	out.Title = title
	mu.Unlock()
	return out, nil
}

// command builds the yt-dlp invocation for req.
func (f *Fetcher) command(req models.FetchRequest) *goytdlp.Command {
	dl := goytdlp.New().
		NoPlaylist().
		ForceOverwrites().
		// Artifact age drives retention, so files get the local write time.
		NoMtime().
		Output(req.OutputTemplate)

	if f.binary != "" {
		dl.SetExecutable(f.binary)
	}

	switch req.Format {
	case models.FormatAudio:
		dl.Format(audioFormat).
			ExtractAudio().
			AudioFormat("mp3").
			AudioQuality(f.audioQuality).
			EmbedMetadata()
	default:
		dl.Format(videoFormat).
			MergeOutputFormat("mp4")
	}
	return dl
}

// sample is the subset of a yt-dlp progress update the fetcher cares about.
type sample struct {
	status     string
	downloaded int64
	total      int64
	started    time.Time
	eta        time.Duration
}

func sampleOf(u goytdlp.ProgressUpdate) sample {
	return sample{
		status:     string(u.Status),
		downloaded: int64(u.DownloadedBytes),
		total:      int64(u.TotalBytes),
		started:    u.Started,
		eta:        u.ETA(),
	}
}

// toEvent maps a yt-dlp progress sample onto a ProgressEvent. Starting and
// unknown statuses are dropped.
func toEvent(s sample, now time.Time) (models.ProgressEvent, bool) {
	var ev models.ProgressEvent
	switch s.status {
	case "downloading":
		ev.Phase = models.PhaseDownloading
	case "post_processing", "finished":
		ev.Phase = models.PhaseFinished
	case "error":
		ev.Phase = models.PhaseError
		return ev, true
	default:
		return ev, false
	}

	ev.Downloaded = s.downloaded
	ev.Total = s.total

	if !s.started.IsZero() && s.downloaded > 0 {
		if elapsed := now.Sub(s.started).Seconds(); elapsed > 0 {
			speed := float64(s.downloaded) / elapsed
			ev.Speed = &speed
		}
	}
	if s.eta > 0 {
		secs := int(s.eta.Seconds())
		ev.ETA = &secs
	}
	return ev, true
}

// DependencyReport describes whether the external binaries are installed.
type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

// DependencyStatus looks up yt-dlp (or the configured binary) and ffmpeg.
func (f *Fetcher) DependencyStatus() DependencyReport {
	report := DependencyReport{}
	bin := f.binary
	if bin == "" {
		bin = "yt-dlp"
	}
	if path, err := exec.LookPath(bin); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies returns ErrDependencyMissing when either binary is absent.
func (f *Fetcher) CheckDependencies() error {
	report := f.DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("%w: yt-dlp not found in PATH", ErrDependencyMissing)
	}
	if !report.FFmpegFound {
		return fmt.Errorf("%w: ffmpeg not found in PATH", ErrDependencyMissing)
	}
	return nil
}

var _ models.Fetcher = (*Fetcher)(nil)
