package mock

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// ErrFetchFailed is returned by NewFailingFetcher when no error is given.
var ErrFetchFailed = errors.New("mock fetch failed")

// MockFetcher satisfies models.Fetcher for testing and local development.
type MockFetcher struct {
	Name_     string
	FetchFunc func(ctx context.Context, req models.FetchRequest, onProgress models.ProgressFunc) (models.FetchResult, error)
}

func (m *MockFetcher) Name() string { return m.Name_ }

func (m *MockFetcher) Fetch(ctx context.Context, req models.FetchRequest, onProgress models.ProgressFunc) (models.FetchResult, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, req, onProgress)
	}
	return models.FetchResult{}, nil
}

// NewMockFetcher returns a MockFetcher that reports 0%, 50% and 100% progress,
// writes a small placeholder file at the requested output path and returns title.
func NewMockFetcher(title string) *MockFetcher {
	return &MockFetcher{
		Name_: "mock",
		FetchFunc: func(ctx context.Context, req models.FetchRequest, onProgress models.ProgressFunc) (models.FetchResult, error) {
			for _, done := range []int64{0, 50, 100} {
				if err := ctx.Err(); err != nil {
					return models.FetchResult{}, err
				}
				emit(onProgress, models.ProgressEvent{Phase: models.PhaseDownloading, Downloaded: done, Total: 100})
			}
			emit(onProgress, models.ProgressEvent{Phase: models.PhaseFinished, Downloaded: 100, Total: 100})

			path := req.OutputPath(req.Format.Extension())
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return models.FetchResult{}, err
			}
			if err := os.WriteFile(path, []byte("mock media"), 0o644); err != nil {
				return models.FetchResult{}, err
			}
			return models.FetchResult{FilePath: path, Title: title}, nil
		},
	}
}

// NewFailingFetcher returns a MockFetcher that always returns err.
func NewFailingFetcher(err error) *MockFetcher {
	if err == nil {
		err = ErrFetchFailed
	}
	return &MockFetcher{
		Name_: "mock-failing",
		FetchFunc: func(_ context.Context, _ models.FetchRequest, _ models.ProgressFunc) (models.FetchResult, error) {
			return models.FetchResult{}, err
		},
	}
}

// NewBlockingFetcher returns a MockFetcher that signals started and then
// blocks until its context is cancelled or release is closed. When released
// it behaves like NewMockFetcher.
func NewBlockingFetcher(started chan<- struct{}, release <-chan struct{}) *MockFetcher {
	ok := NewMockFetcher("blocking")
	return &MockFetcher{
		Name_: "mock-blocking",
		FetchFunc: func(ctx context.Context, req models.FetchRequest, onProgress models.ProgressFunc) (models.FetchResult, error) {
			if started != nil {
				select {
				case started <- struct{}{}:
				case <-ctx.Done():
					return models.FetchResult{}, ctx.Err()
				}
			}
			select {
			case <-ctx.Done():
				return models.FetchResult{}, ctx.Err()
			case <-release:
				return ok.Fetch(context.Background(), req, onProgress)
			}
		},
	}
}

func emit(fn models.ProgressFunc, ev models.ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}

// Compile-time check that MockFetcher implements Fetcher.
var _ models.Fetcher = (*MockFetcher)(nil)
