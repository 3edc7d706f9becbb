// Package models contains shared data models used across the tubedrop codebase.
package models

import (
	"context"
	"strings"
)

// Fetcher is the capability that retrieves and transcodes media from a URL.
// Never call a specific implementation directly; inject this interface.
type Fetcher interface {
	// Fetch blocks until the artifact is produced or the fetch fails. onProgress
	// may be invoked zero or more times from the fetcher's own goroutines.
	Fetch(ctx context.Context, req FetchRequest, onProgress ProgressFunc) (FetchResult, error)
	// Name returns the implementation identifier (e.g., "ytdlp").
	Name() string
}

// FetchRequest describes one fetch/transcode operation.
type FetchRequest struct {
	URL    string
	Format Format
	// OutputTemplate is a yt-dlp style template, e.g. "/downloads/<id>.%(ext)s".
	OutputTemplate string
}

// OutputPath expands the template's %(ext)s placeholder with ext.
func (r FetchRequest) OutputPath(ext string) string {
	return strings.ReplaceAll(r.OutputTemplate, "%(ext)s", ext)
}

// FetchResult is what a successful fetch produced.
type FetchResult struct {
	FilePath string
	Title    string
}

// ProgressPhase tags a progress event.
type ProgressPhase string

const (
	PhaseDownloading ProgressPhase = "downloading"
	PhaseFinished    ProgressPhase = "finished"
	PhaseError       ProgressPhase = "error"
)

// ProgressEvent is emitted by a Fetcher while it works.
type ProgressEvent struct {
	Phase      ProgressPhase
	Downloaded int64
	// Total is the exact size in bytes, or 0 when unknown.
	Total int64
	// TotalEstimate is used when Total is 0.
	TotalEstimate int64
	Speed         *float64 // bytes per second
	ETA           *int     // seconds
}

// ProgressFunc receives progress events.
type ProgressFunc func(ProgressEvent)
