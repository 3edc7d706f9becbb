package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/tubedrop/internal/fetcher/mock"
	"github.com/kiranshivaraju/tubedrop/internal/jobs"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventsServer(t *testing.T, f models.Fetcher) (*jobs.Service, string) {
	t.Helper()
	svc, err := jobs.NewService(f, jobs.Unbounded{}, jobs.Options{DownloadDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	r := chi.NewRouter()
	r.Get("/api/v1/jobs/{jobID}/events", NewJobEventsHandler(svc))
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return svc, "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestJobEvents_StreamsUntilDone(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	svc, wsURL := newEventsServer(t, mock.NewBlockingFetcher(started, release))

	job, err := svc.Submit(context.Background(), jobs.SubmitRequest{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Format: "audio",
	})
	require.NoError(t, err)
	<-started

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/api/v1/jobs/"+job.ID.String()+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()

	var first models.Job
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, job.ID, first.ID)
	assert.False(t, first.Status.IsTerminal())

	close(release)

	var last models.Job
	for {
		var snap models.Job
		if err := conn.ReadJSON(&snap); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		assert.GreaterOrEqual(t, snap.Progress, last.Progress)
		last = snap
	}
	assert.Equal(t, models.JobStatusDone, last.Status)
	assert.Equal(t, 100, last.Progress)
}

func TestJobEvents_TerminalJobSendsOneSnapshot(t *testing.T) {
	svc, wsURL := newEventsServer(t, mock.NewFailingFetcher(nil))

	job, err := svc.Submit(context.Background(), jobs.SubmitRequest{
		URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Format: "video",
	})
	require.NoError(t, err)
	svc.Wait()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/api/v1/jobs/"+job.ID.String()+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap models.Job
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, models.JobStatusError, snap.Status)
	assert.NotEmpty(t, snap.Error)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestJobEvents_UnknownJob(t *testing.T) {
	_, wsURL := newEventsServer(t, mock.NewMockFetcher("x"))
	httpURL := "http" + strings.TrimPrefix(wsURL, "ws")

	for _, id := range []string{"6f1c2b9e-0000-4000-8000-000000000000", "nope"} {
		resp, err := http.Get(httpURL + "/api/v1/jobs/" + id + "/events")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}
