package delivery

import (
	"errors"

	"github.com/kiranshivaraju/tubedrop/internal/jobs"
)

// ErrorReply turns an intake or cancel error into a message for the user.
func ErrorReply(err error) string {
	switch {
	case errors.Is(err, jobs.ErrInvalidURL):
		return "❌ That does not look like a supported video link."
	case errors.Is(err, jobs.ErrNotSingleResource):
		return "❌ Playlists are not supported, send a single video link."
	case errors.Is(err, jobs.ErrBadFormat):
		return "❌ Unsupported format."
	case errors.Is(err, jobs.ErrBusy):
		return "⏳ Another download is in progress, try again shortly."
	case errors.Is(err, jobs.ErrDownloadsDisabled):
		return "🚫 Downloads are currently disabled."
	case errors.Is(err, jobs.ErrNoActiveJob):
		return "Nothing to cancel."
	case errors.Is(err, jobs.ErrNotOwner):
		return "❌ Only the user who started the current download can cancel it."
	default:
		return "❌ Something went wrong, please try again."
	}
}

// AcceptedReply confirms a queued job.
func AcceptedReply(format string) string {
	return "🎵 Got it, fetching your " + format + "…"
}
