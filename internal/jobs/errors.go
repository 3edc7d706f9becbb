package jobs

import "errors"

// Intake errors. No job is created when Submit returns one of these.
var (
	ErrInvalidURL        = errors.New("invalid url")
	ErrNotSingleResource = errors.New("url is not a single video")
	ErrBadFormat         = errors.New("unsupported format")
	ErrBusy              = errors.New("another job is in progress")
	ErrDownloadsDisabled = errors.New("downloads are disabled")
)

// Lookup and lifecycle errors.
var (
	ErrNotFound    = errors.New("job not found")
	ErrNotReady    = errors.New("job artifact not ready")
	ErrJobTerminal = errors.New("job already finished")
	ErrNotOwner    = errors.New("job belongs to another requester")
	ErrNoActiveJob = errors.New("no active job")
)

// IsValidationError reports whether err rejects the request's input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrNotSingleResource) ||
		errors.Is(err, ErrBadFormat)
}
