package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mw "github.com/kiranshivaraju/tubedrop/internal/api/middleware"
	"github.com/kiranshivaraju/tubedrop/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock Sessions ---

type mockSessions struct {
	mu       sync.Mutex
	sessions map[string]string
	err      error
}

func newMockSessions() *mockSessions {
	return &mockSessions{sessions: make(map[string]string)}
}

func (m *mockSessions) CreateSession(_ context.Context, token, user string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[token] = user
	return nil
}

func (m *mockSessions) GetSession(_ context.Context, token string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	user, ok := m.sessions[token]
	return user, ok, nil
}

func (m *mockSessions) DeleteSession(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return m.err
}

// --- Mock Counter ---

type mockCounter struct {
	mu      sync.Mutex
	counter int64
	keys    []string
	err     error
}

func (m *mockCounter) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	m.keys = append(m.keys, key)
	return m.counter, m.err
}

// --- helpers ---

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func newAuth(t *testing.T, sessions mw.SessionStore) *mw.AdminAuth {
	t.Helper()
	auth, err := mw.NewAdminAuth(sessions, config.AdminConfig{
		User:       "admin",
		Password:   "s3cret",
		SessionTTL: time.Hour,
	})
	require.NoError(t, err)
	return auth
}

// ========================================
// Admin Auth Tests
// ========================================

func TestNewAdminAuth_NotConfigured(t *testing.T) {
	_, err := mw.NewAdminAuth(newMockSessions(), config.AdminConfig{})
	assert.Error(t, err)
}

func TestNewAdminAuth_RejectsMalformedHash(t *testing.T) {
	_, err := mw.NewAdminAuth(newMockSessions(), config.AdminConfig{User: "admin", PasswordHash: "plain"})
	assert.Error(t, err)
}

func TestAdminAuth_LoginWithHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	sessions := newMockSessions()
	auth, err := mw.NewAdminAuth(sessions, config.AdminConfig{User: "ops", PasswordHash: string(hash)})
	require.NoError(t, err)

	token, err := auth.Login(context.Background(), "ops", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "ops", sessions.sessions[token])
	assert.Equal(t, 12*time.Hour, auth.TTL())
}

func TestAdminAuth_LoginWrongCredentials(t *testing.T) {
	auth := newAuth(t, newMockSessions())

	_, err := auth.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, mw.ErrInvalidCredentials)

	_, err = auth.Login(context.Background(), "root", "s3cret")
	assert.ErrorIs(t, err, mw.ErrInvalidCredentials)
}

func TestAdminAuth_LoginSessionStoreFailure(t *testing.T) {
	sessions := newMockSessions()
	sessions.err = errors.New("redis down")
	auth := newAuth(t, sessions)

	_, err := auth.Login(context.Background(), "admin", "s3cret")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, mw.ErrInvalidCredentials)
}

func TestAuth_MissingAuthHeader(t *testing.T) {
	handler := newAuth(t, newMockSessions()).Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_InvalidBearerFormat(t *testing.T) {
	handler := newAuth(t, newMockSessions()).Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_UnknownToken(t *testing.T) {
	handler := newAuth(t, newMockSessions()).Authenticate(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer not-a-session")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_TOKEN", errBody(t, w)["code"])
}

func TestAuth_SessionStoreError(t *testing.T) {
	sessions := newMockSessions()
	handler := newAuth(t, sessions).Authenticate(okHandler())
	sessions.err = errors.New("redis down")

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAuth_ValidSession(t *testing.T) {
	auth := newAuth(t, newMockSessions())
	token, err := auth.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)

	var gotUser, gotToken string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = mw.GetAdminUser(r)
		gotToken, _ = mw.GetSessionToken(r)
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Authenticate(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", gotUser)
	assert.Equal(t, token, gotToken)
}

func TestAuth_LogoutRevokes(t *testing.T) {
	auth := newAuth(t, newMockSessions())
	ctx := context.Background()
	token, err := auth.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	require.NoError(t, auth.Logout(ctx, token))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	auth.Authenticate(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	mc := &mockCounter{}
	handler := mw.NewRateLimit(mc, 60).Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []string{"tubedrop:ratelimit:203.0.113.9"}, mc.keys)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	mc := &mockCounter{counter: 60} // next IncrWithExpiry will return 61
	handler := mw.NewRateLimit(mc, 60).Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, w)["code"])
}

func TestRateLimit_FailsOpen(t *testing.T) {
	mc := &mockCounter{err: errors.New("redis down")}
	handler := mw.NewRateLimit(mc, 60).Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_DefaultBudget(t *testing.T) {
	handler := mw.NewRateLimit(&mockCounter{}, 0).Limit(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
}

// ========================================
// Recovery Middleware Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("something went wrong")
	})

	handler := mw.Recovery(panicking)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_NoPanic(t *testing.T) {
	handler := mw.Recovery(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ========================================
// Logging Middleware Tests
// ========================================

func TestLogger_SetsStatus(t *testing.T) {
	handler := mw.Logger(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogger_ExposesHijacker(t *testing.T) {
	var hijackErr error
	var isHijacker bool
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var h http.Hijacker
		h, isHijacker = w.(http.Hijacker)
		if isHijacker {
			_, _, hijackErr = h.Hijack()
		}
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, isHijacker)
	// httptest.ResponseRecorder cannot be hijacked.
	assert.Error(t, hijackErr)
}
