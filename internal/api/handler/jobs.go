package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
	"github.com/kiranshivaraju/tubedrop/internal/jobs"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// defaultFormat is used when a submission names no format.
const defaultFormat = "audio"

// JobSubmitter starts conversion jobs.
type JobSubmitter interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (models.Job, error)
}

// JobReader returns job snapshots.
type JobReader interface {
	Get(id uuid.UUID) (models.Job, error)
}

// ArtifactSource resolves a finished job's file.
type ArtifactSource interface {
	Artifact(id uuid.UUID) (jobs.Artifact, error)
}

type submitRequest struct {
	URL    string `json:"url"    validate:"max=2048"`
	Format string `json:"format" validate:"max=16"`
	Title  string `json:"title"  validate:"max=256"`
}

type submitResponse struct {
	JobID  uuid.UUID        `json:"job_id"`
	Status models.JobStatus `json:"status"`
}

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitJobHandler(svc JobSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		if req.Format == "" {
			req.Format = defaultFormat
		}

		job, err := svc.Submit(r.Context(), jobs.SubmitRequest{
			URL:    req.URL,
			Format: req.Format,
			Title:  req.Title,
			Owner:  "web:" + remoteHost(r),
		})
		if err != nil {
			writeJobError(w, err)
			return
		}

		response.Accepted(w, submitResponse{JobID: job.ID, Status: job.Status})
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(r)
		if !ok {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		job, err := svc.Get(id)
		if err != nil {
			writeJobError(w, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewDownloadHandler returns an http.HandlerFunc for
// GET /api/v1/jobs/{jobID}/download.
func NewDownloadHandler(svc ArtifactSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := jobIDParam(r)
		if !ok {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
			return
		}

		art, err := svc.Artifact(id)
		if err != nil {
			writeJobError(w, err)
			return
		}

		f, err := os.Open(art.Path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				response.Error(w, http.StatusGone, "ARTIFACT_EXPIRED",
					"The file for this job is no longer available", nil)
				return
			}
			slog.Error("open artifact", "job_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		w.Header().Set("Content-Disposition",
			mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
		w.Header().Set("Content-Type", contentType(art.Path, art.Format))
		http.ServeContent(w, r, art.Filename, info.ModTime(), f)
	}
}

// mediaTypes maps the containers yt-dlp may produce.
var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".opus": "audio/ogg",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

// contentType prefers the artifact's actual extension and falls back to the
// requested format.
func contentType(path string, f models.Format) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		if f == models.FormatAudio && ext == ".webm" {
			return "audio/webm"
		}
		return t
	}
	if t := mime.TypeByExtension(ext); ext != "" && t != "" {
		return t
	}
	if f == models.FormatAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// writeJobError maps jobs sentinels onto the error envelope.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrInvalidURL):
		response.Error(w, http.StatusBadRequest, "INVALID_URL", "url must be an http(s) link", nil)
	case errors.Is(err, jobs.ErrNotSingleResource):
		response.Error(w, http.StatusBadRequest, "NOT_SINGLE_RESOURCE",
			"url must point to a single video", nil)
	case errors.Is(err, jobs.ErrBadFormat):
		response.Error(w, http.StatusBadRequest, "BAD_FORMAT", "format must be audio or video", nil)
	case errors.Is(err, jobs.ErrDownloadsDisabled):
		response.Error(w, http.StatusForbidden, "DOWNLOADS_DISABLED", "Downloads are currently disabled", nil)
	case errors.Is(err, jobs.ErrBusy):
		response.Error(w, http.StatusConflict, "BUSY", "Another download is in progress", nil)
	case errors.Is(err, jobs.ErrNotReady):
		response.Error(w, http.StatusConflict, "NOT_READY", "The job has not finished yet", nil)
	case errors.Is(err, jobs.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
	default:
		slog.Error("job request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
