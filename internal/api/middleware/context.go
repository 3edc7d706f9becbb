package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	adminUserKey  contextKey = "admin_user"
	adminTokenKey contextKey = "admin_token"
)

func SetAdminUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, adminUserKey, user)
}

func GetAdminUser(r *http.Request) (string, bool) {
	user, ok := r.Context().Value(adminUserKey).(string)
	return user, ok
}

func setSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, adminTokenKey, token)
}

// GetSessionToken returns the bearer token the request authenticated with.
func GetSessionToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(adminTokenKey).(string)
	return token, ok
}
