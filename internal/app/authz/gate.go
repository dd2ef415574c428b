// Package authz composes token verification, user resolution, onboarding and
// consent checks into the decision functions invoked before every protected
// operation. The functions return resolved identities explicitly; nothing
// here mutates shared state.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

const bearerPrefix = "Bearer "

// TokenVerifier verifies an access token and returns the bound user UUID.
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
}

type Gate struct {
	verifier TokenVerifier
	users    userrepo.Repository
}

func NewGate(verifier TokenVerifier, users userrepo.Repository) *Gate {
	return &Gate{verifier: verifier, users: users}
}

// Authenticate extracts the bearer token from an Authorization header value
// and resolves the full user record. Every failure mode (missing header,
// malformed scheme, invalid or expired token, deleted user) collapses to
// Unauthorized; signature detail never reaches the caller.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (domain.User, error) {
	raw, ok := bearerToken(authorization)
	if !ok {
		return domain.User{}, apierror.Unauthorized("missing or malformed Authorization header")
	}

	userUUID, err := g.verifier.VerifyAccess(raw)
	if err != nil {
		return domain.User{}, apierror.Unauthorized("invalid or expired token")
	}

	u, err := g.users.GetByUUID(ctx, userUUID)
	if err != nil {
		// A token for a deleted user is indistinguishable from an invalid one.
		return domain.User{}, apierror.Unauthorized("invalid or expired token")
	}

	return toDomain(u), nil
}

// OptionalAuthenticate is Authenticate that never fails: absence or
// invalidity of credentials simply yields no user.
func (g *Gate) OptionalAuthenticate(ctx context.Context, authorization string) *domain.User {
	u, err := g.Authenticate(ctx, authorization)
	if err != nil {
		return nil
	}
	return &u
}

// RequireOnboarded fails for users that have not completed consent capture.
func RequireOnboarded(u domain.User) error {
	if !u.Onboarded {
		return apierror.Forbidden("ONBOARDING_REQUIRED", "onboarding has not been completed")
	}
	return nil
}

// RequireConsent fails unless every listed permission resolves to true in the
// user's consent data, naming the first unmet permission.
func RequireConsent(u domain.User, perms ...domain.ConsentKey) error {
	for _, p := range perms {
		if !u.Consent.Granted(p) {
			return apierror.Forbidden("CONSENT_REQUIRED", fmt.Sprintf("consent required: %s", p))
		}
	}
	return nil
}

// Device ID bounds for anonymous registration. The identifier is opaque; we
// only require it to look like a UUID-or-larger client token.
const (
	minDeviceIDLen = 16
	maxDeviceIDLen = 128
)

// ValidateDeviceID gates anonymous registration/login. It is independent of
// token-based authorization.
func ValidateDeviceID(deviceID string) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return apierror.Invalid("device ID required", map[string]any{"deviceId": "must be set"})
	}
	if len(deviceID) < minDeviceIDLen || len(deviceID) > maxDeviceIDLen {
		return apierror.Invalid("invalid device ID format", map[string]any{
			"deviceId": fmt.Sprintf("length must be between %d and %d", minDeviceIDLen, maxDeviceIDLen),
		})
	}
	return nil
}

func toDomain(u userrepo.User) domain.User {
	out := domain.User{
		ID:        u.ID,
		UUID:      u.UUID,
		Onboarded: u.Onboarded,
		Consent:   u.Consent,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.DeviceID != nil {
		v := *u.DeviceID
		out.DeviceID = &v
	}
	if u.Preferences != nil {
		prefs := make(map[string]any, len(u.Preferences))
		for k, v := range u.Preferences {
			prefs[k] = v
		}
		out.Preferences = prefs
	}
	return out
}
