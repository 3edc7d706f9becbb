package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	mw "github.com/kiranshivaraju/tubedrop/internal/api/middleware"
	"github.com/kiranshivaraju/tubedrop/internal/api/response"
	"github.com/kiranshivaraju/tubedrop/internal/store"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// Authenticator issues and revokes admin sessions.
type Authenticator interface {
	Login(ctx context.Context, user, password string) (string, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

// HistoryLister reads the completion history.
type HistoryLister interface {
	ListHistory(ctx context.Context, filter store.HistoryFilter) ([]models.HistoryEntry, error)
}

// DownloadSwitch is the runtime on/off switch for intake.
type DownloadSwitch interface {
	Enabled() bool
	SetEnabled(on bool)
}

type loginRequest struct {
	User     string `json:"user"     validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type downloadsState struct {
	Enabled bool `json:"enabled"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/admin/login.
func NewLoginHandler(auth Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}

		token, err := auth.Login(r.Context(), req.User, req.Password)
		if err != nil {
			if errors.Is(err, mw.ErrInvalidCredentials) {
				slog.Warn("admin login rejected", "user", req.User, "remote_addr", r.RemoteAddr)
				response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid user or password", nil)
				return
			}
			slog.Error("admin login failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, loginResponse{
			Token:     token,
			ExpiresAt: time.Now().UTC().Add(auth.TTL()),
		})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /api/v1/admin/logout.
// It must run behind AdminAuth.Authenticate.
func NewLogoutHandler(auth Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := mw.GetSessionToken(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}
		if err := auth.Logout(r.Context(), token); err != nil {
			slog.Error("admin logout failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		response.NoContent(w)
	}
}

// NewHistoryHandler returns an http.HandlerFunc for
// GET /api/v1/admin/history?limit=&format=.
func NewHistoryHandler(h HistoryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter store.HistoryFilter

		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > store.MaxHistoryLimit {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be between 1 and "+strconv.Itoa(store.MaxHistoryLimit), nil)
				return
			}
			filter.Limit = n
		}
		if v := r.URL.Query().Get("format"); v != "" {
			f, ok := models.ParseFormat(v)
			if !ok {
				response.Error(w, http.StatusBadRequest, "BAD_FORMAT", "format must be audio or video", nil)
				return
			}
			filter.Format = f
		}

		entries, err := h.ListHistory(r.Context(), filter)
		if err != nil {
			slog.Error("list history failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}
		limit := filter.Limit
		if limit == 0 {
			limit = store.DefaultHistoryLimit
		}
		response.List(w, entries, response.ListMeta{
			Limit: limit,
			Count: len(entries),
			More:  len(entries) == limit,
		})
	}
}

// NewGetDownloadsHandler returns an http.HandlerFunc for
// GET /api/v1/admin/downloads.
func NewGetDownloadsHandler(sw DownloadSwitch) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, downloadsState{Enabled: sw.Enabled()})
	}
}

// NewSetDownloadsHandler returns an http.HandlerFunc for
// PUT /api/v1/admin/downloads.
func NewSetDownloadsHandler(sw DownloadSwitch) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}

		sw.SetEnabled(*req.Enabled)
		if user, ok := mw.GetAdminUser(r); ok {
			slog.Info("downloads switched by admin", "user", user, "enabled", *req.Enabled)
		}
		response.JSON(w, downloadsState{Enabled: sw.Enabled()})
	}
}
