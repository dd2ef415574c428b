package httpapi

import (
	"context"

	"github.com/traveal-app/traveal-api/internal/domain"
)

type contextKey int

const userContextKey contextKey = iota

// WithUser stores the authenticated user on the request context.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the authenticated user placed by the auth
// middleware. The boolean is false on routes that never passed through it.
func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userContextKey).(domain.User)
	return u, ok
}
