// Package auth implements anonymous device-bound account management:
// registration, login, token refresh, consent and preference updates, and
// account deletion with cascading token revocation.
package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
	clockport "github.com/traveal-app/traveal-api/internal/ports/out/clock"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	"github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
	"github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
	"github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

type Service struct {
	users   userrepo.Repository
	refresh tokenrepo.Repository
	trips   triprepo.Repository
	notifs  notificationrepo.Repository
	tokens  *tokens.Service
	clk     clockport.Clock

	newUserID func() domain.UserID
	newUUID   func() string
}

func NewService(
	users userrepo.Repository,
	refresh tokenrepo.Repository,
	trips triprepo.Repository,
	notifs notificationrepo.Repository,
	tok *tokens.Service,
	clk clockport.Clock,
) *Service {
	return &Service{
		users:   users,
		refresh: refresh,
		trips:   trips,
		notifs:  notifs,
		tokens:  tok,
		clk:     clk,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
		newUUID: uuid.NewString,
	}
}

// SetIDGeneratorsForTest overrides ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetIDGeneratorsForTest(newUserID func() domain.UserID, newUUID func() string) {
	if newUserID != nil {
		s.newUserID = newUserID
	}
	if newUUID != nil {
		s.newUUID = newUUID
	}
}

// Register creates a new anonymous user bound to deviceID with the supplied
// initial consent snapshot. Registration is rejected with a conflict when the
// device is already bound; consent is never silently overwritten.
func (s *Service) Register(ctx context.Context, deviceID string, consent domain.ConsentData) (Session, error) {
	now := s.clk.Now()
	dev := deviceID
	u := userrepo.User{
		ID:          s.newUserID(),
		UUID:        s.newUUID(),
		DeviceID:    &dev,
		Onboarded:   false,
		Consent:     consent,
		Preferences: domain.DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Device uniqueness is enforced by the repository as a single constrained
	// write; concurrent registrations for the same device cannot both succeed.
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDeviceAlreadyBound) {
			return Session{}, apierror.Conflict("DEVICE_ALREADY_REGISTERED", "device already registered")
		}
		return Session{}, err
	}

	sess, err := s.startSession(ctx, u)
	if err != nil {
		return Session{}, err
	}

	slog.Info("user registered", "user", u.UUID)
	return sess, nil
}

// Login resolves an existing device-bound account. No credential beyond the
// device identifier is required; unknown devices fail with NotFound so the
// caller can prompt registration.
func (s *Service) Login(ctx context.Context, deviceID string) (Session, error) {
	u, err := s.users.GetByDeviceID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return Session{}, apierror.NotFound("DEVICE_NOT_REGISTERED", "no account exists for this device")
		}
		return Session{}, err
	}

	return s.startSession(ctx, u)
}

// Refresh exchanges a refresh token for a fresh pair. The token must verify
// and its JTI must still be on record (revocation check); used tokens are
// rotated out so each refresh token mints at most one pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	userUUID, jti, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return tokens.Pair{}, apierror.Unauthorized("invalid refresh token")
	}

	rec, err := s.refresh.Get(ctx, jti, s.clk.Now())
	if err != nil {
		if errors.Is(err, tokenrepo.ErrNotFound) {
			return tokens.Pair{}, apierror.Unauthorized("refresh token revoked or expired")
		}
		return tokens.Pair{}, err
	}

	u, err := s.users.GetByUUID(ctx, userUUID)
	if err != nil || u.ID != rec.UserID {
		return tokens.Pair{}, apierror.Unauthorized("invalid refresh token")
	}

	if err := s.refresh.Delete(ctx, jti); err != nil {
		// A concurrent refresh or the expiry sweep already consumed the
		// record; the token has been spent either way.
		if errors.Is(err, tokenrepo.ErrNotFound) {
			return tokens.Pair{}, apierror.Unauthorized("refresh token already used")
		}
		return tokens.Pair{}, err
	}

	pair, err := s.issueAndStore(ctx, u)
	if err != nil {
		return tokens.Pair{}, err
	}
	return pair, nil
}

// Me returns the caller's profile with trip and unread-notification counts.
func (s *Service) Me(ctx context.Context, user domain.User) (Profile, error) {
	trips, err := s.trips.CountForUser(ctx, user.ID)
	if err != nil {
		return Profile{}, err
	}
	unread, err := s.notifs.UnreadCount(ctx, user.ID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		User: user,
		Stats: ProfileStats{
			TotalTrips:          trips,
			UnreadNotifications: unread,
		},
	}, nil
}

// UpdateConsent replaces the caller's consent snapshot (last-write-wins) and
// completes onboarding: writing consent is the final onboarding step.
func (s *Service) UpdateConsent(ctx context.Context, userID domain.UserID, consent domain.ConsentData) (domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, apierror.NotFound("USER_NOT_FOUND", "user not found")
		}
		return domain.User{}, err
	}

	u.Consent = consent
	u.Onboarded = true
	u.UpdatedAt = s.clk.Now()
	if err := s.users.Update(ctx, u); err != nil {
		return domain.User{}, err
	}

	slog.Info("consent updated", "user", u.UUID)
	return toDomain(u), nil
}

// UpdatePreferences replaces the caller's free-form preferences.
func (s *Service) UpdatePreferences(ctx context.Context, userID domain.UserID, prefs map[string]any) (domain.User, error) {
	if prefs == nil {
		return domain.User{}, apierror.Invalid("missing preferences", map[string]any{"preferences": "must be an object"})
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, apierror.NotFound("USER_NOT_FOUND", "user not found")
		}
		return domain.User{}, err
	}

	u.Preferences = prefs
	u.UpdatedAt = s.clk.Now()
	if err := s.users.Update(ctx, u); err != nil {
		return domain.User{}, err
	}

	return toDomain(u), nil
}

// DeleteAccount removes the user and all dependent data, and revokes every
// outstanding refresh token so no credential survives deletion. Access tokens
// die at the gate instead: a deleted user no longer resolves.
func (s *Service) DeleteAccount(ctx context.Context, userID domain.UserID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return apierror.NotFound("USER_NOT_FOUND", "user not found")
		}
		return err
	}

	if err := s.refresh.DeleteAllForUser(ctx, u.ID); err != nil {
		return err
	}
	if err := s.trips.DeleteForUser(ctx, u.ID); err != nil {
		return err
	}
	if err := s.notifs.DeleteForUser(ctx, u.ID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, u.ID); err != nil {
		return err
	}

	slog.Info("account deleted", "user", u.UUID)
	return nil
}

func (s *Service) startSession(ctx context.Context, u userrepo.User) (Session, error) {
	pair, err := s.issueAndStore(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return Session{User: toDomain(u), Tokens: pair}, nil
}

func (s *Service) issueAndStore(ctx context.Context, u userrepo.User) (tokens.Pair, error) {
	pair, err := s.tokens.Issue(u.UUID)
	if err != nil {
		return tokens.Pair{}, err
	}
	rec := tokenrepo.Record{
		JTI:       pair.RefreshID,
		UserID:    u.ID,
		ExpiresAt: pair.RefreshExpiresAt,
		CreatedAt: s.clk.Now(),
	}
	if err := s.refresh.Store(ctx, rec); err != nil {
		return tokens.Pair{}, err
	}
	return pair, nil
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
