package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	memnotificationrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/notificationrepo"
	memtokenrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/tokenrepo"
	memtriprepo "github.com/traveal-app/traveal-api/internal/adapters/memory/triprepo"
	memuserrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/userrepo"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
	"github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type fixture struct {
	svc     *Service
	tokens  *tokens.Service
	refresh *memtokenrepo.Repo
	clk     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	tok := tokens.NewService(tokens.Config{
		Secret:     "test-secret-at-least-32-bytes-long",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clk)
	refresh := memtokenrepo.NewRepo()
	svc := NewService(
		memuserrepo.NewRepo(),
		refresh,
		memtriprepo.NewRepo(),
		memnotificationrepo.NewRepo(),
		tok,
		clk,
	)
	var seq int
	svc.SetIDGeneratorsForTest(
		func() domain.UserID {
			seq++
			return domain.UserID(fmt.Sprintf("user-%03d", seq))
		},
		nil,
	)
	return &fixture{svc: svc, tokens: tok, refresh: refresh, clk: clk}
}

func device(suffix string) string {
	return "device-" + suffix + strings.Repeat("x", 16)
}

func apiErr(t *testing.T, err error) *apierror.Error {
	t.Helper()
	var ae *apierror.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apierror.Error, got %T: %v", err, err)
	}
	return ae
}

func TestRegisterCreatesSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	consent := domain.ConsentData{
		LocationData: domain.LocationConsent{AllowTracking: true},
	}
	sess, err := f.svc.Register(ctx, device("a"), consent)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if sess.User.Onboarded {
		t.Fatal("registration must not complete onboarding")
	}
	if !sess.User.Consent.LocationData.AllowTracking {
		t.Fatalf("consent not stored: %#v", sess.User.Consent)
	}
	if sess.User.Preferences == nil {
		t.Fatal("default preferences missing")
	}
	if _, ok := sess.User.Preferences["notificationSettings"]; !ok {
		t.Fatalf("unexpected default preferences: %#v", sess.User.Preferences)
	}

	sub, err := f.tokens.VerifyAccess(sess.Tokens.AccessToken)
	if err != nil || sub != sess.User.UUID {
		t.Fatalf("access token not bound to user: sub=%q err=%v", sub, err)
	}
	if _, err := f.svc.Refresh(ctx, sess.Tokens.RefreshToken); err != nil {
		t.Fatalf("freshly issued refresh token rejected: %v", err)
	}
}

func TestRegisterDeviceConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, device("a"), domain.ConsentData{}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	ae := apiErr(t, err)
	if ae.Status != 409 || ae.Code != "DEVICE_ALREADY_REGISTERED" {
		t.Fatalf("expected 409 DEVICE_ALREADY_REGISTERED, got %v", ae)
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	sess, err := f.svc.Login(ctx, device("a"))
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.User.UUID != reg.User.UUID {
		t.Fatalf("login resolved wrong user: %q != %q", sess.User.UUID, reg.User.UUID)
	}

	_, err = f.svc.Login(ctx, device("unknown"))
	ae := apiErr(t, err)
	if ae.Status != 404 || ae.Code != "DEVICE_NOT_REGISTERED" {
		t.Fatalf("expected 404 DEVICE_NOT_REGISTERED, got %v", ae)
	}
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	pair, err := f.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The used token is rotated out.
	_, err = f.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if ae := apiErr(t, err); ae.Status != 401 {
		t.Fatalf("expected 401 on replay, got %v", ae)
	}

	// The replacement works exactly once.
	if _, err := f.svc.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Refresh with rotated token: %v", err)
	}
}

// sweptRepo lets a test remove a refresh record between the service's Get
// and its rotate-out Delete, as the expiry sweep or a concurrent refresh
// would.
type sweptRepo struct {
	tokenrepo.Repository
	afterGet func(jti string)
}

func (r *sweptRepo) Get(ctx context.Context, jti string, now time.Time) (tokenrepo.Record, error) {
	rec, err := r.Repository.Get(ctx, jti, now)
	if err == nil && r.afterGet != nil {
		r.afterGet(jti)
	}
	return rec, err
}

func TestRefreshSweptMidRotation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clk := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	tok := tokens.NewService(tokens.Config{
		Secret:     "test-secret-at-least-32-bytes-long",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	}, clk)
	mem := memtokenrepo.NewRepo()
	repo := &sweptRepo{Repository: mem}
	svc := NewService(
		memuserrepo.NewRepo(),
		repo,
		memtriprepo.NewRepo(),
		memnotificationrepo.NewRepo(),
		tok,
		clk,
	)

	sess, err := svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	repo.afterGet = func(jti string) {
		repo.afterGet = nil
		if err := mem.Delete(ctx, jti); err != nil {
			t.Errorf("Delete: %v", err)
		}
	}

	// Losing the race is an auth failure, never an internal error.
	_, err = svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if ae := apiErr(t, err); ae.Status != 401 {
		t.Fatalf("expected 401, got %v", ae)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-token")
	if ae := apiErr(t, err); ae.Status != 401 {
		t.Fatalf("expected 401, got %v", ae)
	}
}

func TestUpdateConsentCompletesOnboarding(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated, err := f.svc.UpdateConsent(ctx, sess.User.ID, domain.ConsentData{
		LocationData: domain.LocationConsent{AllowTracking: true, PreciseLocation: true},
	})
	if err != nil {
		t.Fatalf("UpdateConsent: %v", err)
	}
	if !updated.Onboarded {
		t.Fatal("consent update must complete onboarding")
	}
	if !updated.Consent.LocationData.PreciseLocation {
		t.Fatalf("consent not replaced: %#v", updated.Consent)
	}

	// Last write wins, including revocation of a previously granted permission.
	updated, err = f.svc.UpdateConsent(ctx, sess.User.ID, domain.ConsentData{})
	if err != nil {
		t.Fatalf("UpdateConsent revoke: %v", err)
	}
	if updated.Consent.LocationData.AllowTracking {
		t.Fatal("revoked permission still granted")
	}
	if !updated.Onboarded {
		t.Fatal("onboarding must not regress on consent revocation")
	}
}

func TestUpdatePreferences(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	updated, err := f.svc.UpdatePreferences(ctx, sess.User.ID, map[string]any{"theme": "dark"})
	if err != nil {
		t.Fatalf("UpdatePreferences: %v", err)
	}
	if updated.Preferences["theme"] != "dark" {
		t.Fatalf("preferences not replaced: %#v", updated.Preferences)
	}

	_, err = f.svc.UpdatePreferences(ctx, sess.User.ID, nil)
	if ae := apiErr(t, err); ae.Status != 422 {
		t.Fatalf("expected 422 for nil preferences, got %v", ae)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := f.svc.DeleteAccount(ctx, sess.User.ID); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}

	// Refresh tokens are revoked with the account.
	_, err = f.svc.Refresh(ctx, sess.Tokens.RefreshToken)
	if ae := apiErr(t, err); ae.Status != 401 {
		t.Fatalf("expected 401 after deletion, got %v", ae)
	}

	// The device slot is freed for re-registration.
	if _, err := f.svc.Register(ctx, device("a"), domain.ConsentData{}); err != nil {
		t.Fatalf("re-register after deletion: %v", err)
	}
}

func TestMeCounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.Register(ctx, device("a"), domain.ConsentData{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	profile, err := f.svc.Me(ctx, sess.User)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if profile.Stats.TotalTrips != 0 || profile.Stats.UnreadNotifications != 0 {
		t.Fatalf("unexpected stats for fresh account: %#v", profile.Stats)
	}
	if profile.User.UUID != sess.User.UUID {
		t.Fatalf("profile user mismatch: %q", profile.User.UUID)
	}
}
