package delivery

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

const barWidth = 10

// RenderStatus formats the live status message for a job snapshot.
func RenderStatus(job models.Job) string {
	switch job.Status {
	case models.JobStatusQueued:
		return "⏳ Queued"
	case models.JobStatusDownloading:
		var b strings.Builder
		fmt.Fprintf(&b, "⬇️ Downloading %s %d%%", progressBar(job.Progress), job.Progress)
		if job.Speed != nil {
			fmt.Fprintf(&b, " · %s/s", humanBytes(*job.Speed))
		}
		if job.ETA != nil {
			fmt.Fprintf(&b, " · ETA %s", clock(*job.ETA))
		}
		return b.String()
	case models.JobStatusProcessing:
		return "⚙️ Converting " + progressBar(100)
	case models.JobStatusDone:
		return "✅ Done: " + job.Title
	case models.JobStatusError:
		return "❌ Error: " + job.Error
	default:
		return string(job.Status)
	}
}

func progressBar(percent int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * barWidth / 100
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
}

func humanBytes(v float64) string {
	units := []string{"B", "KiB", "MiB", "GiB"}
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%.0f %s", v, units[i])
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}

func clock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
