package fetcher

import (
	"fmt"

	"github.com/kiranshivaraju/tubedrop/internal/config"
	"github.com/kiranshivaraju/tubedrop/internal/fetcher/mock"
	"github.com/kiranshivaraju/tubedrop/internal/fetcher/ytdlp"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// NewFetcher constructs the fetch backend named by cfg.Provider.
// Called once at startup.
func NewFetcher(cfg config.FetcherConfig) (models.Fetcher, error) {
	switch cfg.Provider {
	case "ytdlp", "":
		return ytdlp.NewFetcher(cfg), nil
	case "mock":
		return mock.NewMockFetcher("Mock Download"), nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q: must be one of ytdlp, mock", cfg.Provider)
	}
}

// DependencyChecker is implemented by fetchers that rely on external binaries.
type DependencyChecker interface {
	CheckDependencies() error
}

// CheckDependencies verifies f's external binaries, if it has any.
func CheckDependencies(f models.Fetcher) error {
	if dc, ok := f.(DependencyChecker); ok {
		return dc.CheckDependencies()
	}
	return nil
}
