package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// AppendHistory records a completed job. Entries are never updated.
	AppendHistory(ctx context.Context, entry models.HistoryEntry) error
	// ListHistory returns the newest entries first.
	ListHistory(ctx context.Context, filter HistoryFilter) ([]models.HistoryEntry, error)
}

type HistoryFilter struct {
	Format models.Format
	Limit  int
}

// normalizedLimit clamps Limit to [1, MaxHistoryLimit], defaulting to DefaultHistoryLimit.
func (f HistoryFilter) normalizedLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultHistoryLimit
	case f.Limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return f.Limit
	}
}
