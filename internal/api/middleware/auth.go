package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
	"github.com/kiranshivaraju/tubedrop/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned by Login for a wrong user or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionStore keeps admin session tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, token, user string, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (string, bool, error)
	DeleteSession(ctx context.Context, token string) error
}

// AdminAuth logs the panel operator in and guards admin routes with
// session tokens.
type AdminAuth struct {
	sessions SessionStore
	user     string
	hash     []byte
	ttl      time.Duration
}

// NewAdminAuth creates an AdminAuth from cfg. A plain password is hashed once
// here so requests only ever compare against a bcrypt hash.
func NewAdminAuth(sessions SessionStore, cfg config.AdminConfig) (*AdminAuth, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("admin credentials are not configured")
	}

	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing admin password: %w", err)
		}
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("PANEL_PASS_HASH is not a bcrypt hash: %w", err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &AdminAuth{sessions: sessions, user: cfg.User, hash: hash, ttl: ttl}, nil
}

// Login checks the credentials and issues a session token.
func (a *AdminAuth) Login(ctx context.Context, user, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.hash, []byte(password)) == nil
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if err := a.sessions.CreateSession(ctx, token, a.user, a.ttl); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return token, nil
}

// Logout revokes a session token.
func (a *AdminAuth) Logout(ctx context.Context, token string) error {
	return a.sessions.DeleteSession(ctx, token)
}

// TTL returns how long issued sessions live.
func (a *AdminAuth) TTL() time.Duration {
	return a.ttl
}

// Authenticate validates the Bearer session token and sets the admin user in
// the request context.
func (a *AdminAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		user, found, err := a.sessions.GetSession(r.Context(), token)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate session", nil)
			return
		}
		if !found {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Session expired or unknown", nil)
			return
		}

		ctx := SetAdminUser(r.Context(), user)
		ctx = setSessionToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
