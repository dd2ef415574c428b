package httpapi

import (
	"net/http"

	"github.com/traveal-app/traveal-api/internal/app/authz"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

// AuthMiddleware resolves bearer tokens into users and enforces the
// onboarding and consent gates on routes that need them.
type AuthMiddleware struct {
	gate *authz.Gate
}

func NewAuthMiddleware(gate *authz.Gate) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

// Authenticate rejects requests without a valid access token and stores the
// resolved user on the context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireOnboarded runs after Authenticate and blocks users that have not
// completed consent onboarding.
func RequireOnboarded(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			writeError(w, r, errMissingAuthContext())
			return
		}
		if err := authz.RequireOnboarded(u); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireConsent blocks users whose current consent does not grant every
// listed permission.
func RequireConsent(perms ...domain.ConsentKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, r, errMissingAuthContext())
				return
			}
			if err := authz.RequireConsent(u, perms...); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// errMissingAuthContext covers gated routes mounted without Authenticate,
// which is a wiring bug rather than a client fault.
func errMissingAuthContext() error {
	return apierror.Unauthorized("authentication required")
}
