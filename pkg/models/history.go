package models

import (
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is an append-only record written when a job completes.
type HistoryEntry struct {
	ID     int64     `db:"id"     json:"id"`
	JobID  uuid.UUID `db:"job_id" json:"job_id"`
	When   time.Time `db:"when"   json:"when"`
	URL    string    `db:"url"    json:"url"`
	Format Format    `db:"format" json:"format"`
	Title  string    `db:"title"  json:"title"`
	File   string    `db:"file"   json:"file"`
}
