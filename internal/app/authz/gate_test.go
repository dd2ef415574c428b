package authz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/traveal-app/traveal-api/internal/adapters/memory/userrepo"
	"github.com/traveal-app/traveal-api/internal/domain"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

type fakeVerifier struct {
	uuids map[string]string
}

func (f *fakeVerifier) VerifyAccess(token string) (string, error) {
	u, ok := f.uuids[token]
	if !ok {
		return "", errors.New("bad token")
	}
	return u, nil
}

func newTestGate(t *testing.T) (*Gate, domain.User) {
	t.Helper()
	users := userrepo.NewRepo()
	now := time.Unix(1000, 0).UTC()
	device := "device-aaaaaaaaaaaaaaaa"
	u := userrepoport.User{
		ID:        "u-1",
		UUID:      "uuid-1",
		DeviceID:  &device,
		Onboarded: true,
		Consent: domain.ConsentData{
			LocationData: domain.LocationConsent{AllowTracking: true},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	gate := NewGate(&fakeVerifier{uuids: map[string]string{
		"good-token":     "uuid-1",
		"orphaned-token": "uuid-gone",
	}}, users)
	return gate, domain.User{ID: "u-1", UUID: "uuid-1"}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	gate, want := newTestGate(t)
	ctx := context.Background()

	got, err := gate.Authenticate(ctx, "Bearer good-token")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != want.ID || got.UUID != want.UUID {
		t.Fatalf("unexpected user: %#v", got)
	}

	cases := map[string]string{
		"missing header":  "",
		"no scheme":       "good-token",
		"wrong scheme":    "Basic good-token",
		"lowercase":       "bearer good-token",
		"invalid token":   "Bearer bad-token",
		"deleted subject": "Bearer orphaned-token",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := gate.Authenticate(ctx, header)
			var ae *apierror.Error
			if !errors.As(err, &ae) || ae.Status != 401 {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}

func TestOptionalAuthenticate(t *testing.T) {
	t.Parallel()
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if u := gate.OptionalAuthenticate(ctx, "Bearer good-token"); u == nil {
		t.Fatal("expected user for valid token")
	}
	if u := gate.OptionalAuthenticate(ctx, ""); u != nil {
		t.Fatalf("expected nil for missing header, got %#v", u)
	}
	if u := gate.OptionalAuthenticate(ctx, "Bearer bad-token"); u != nil {
		t.Fatalf("expected nil for invalid token, got %#v", u)
	}
}

func TestRequireOnboarded(t *testing.T) {
	t.Parallel()

	if err := RequireOnboarded(domain.User{Onboarded: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireOnboarded(domain.User{})
	var ae *apierror.Error
	if !errors.As(err, &ae) || ae.Status != 403 || ae.Code != "ONBOARDING_REQUIRED" {
		t.Fatalf("expected 403 ONBOARDING_REQUIRED, got %v", err)
	}
}

func TestRequireConsent(t *testing.T) {
	t.Parallel()

	u := domain.User{Consent: domain.ConsentData{
		LocationData:   domain.LocationConsent{AllowTracking: true},
		SensorData:     domain.SensorConsent{MotionSensors: true},
		UsageAnalytics: domain.AnalyticsConsent{AnonymousStats: true},
	}}

	if err := RequireConsent(u); err != nil {
		t.Fatalf("empty permission list must pass: %v", err)
	}
	if err := RequireConsent(u, domain.ConsentLocationAllowTracking, domain.ConsentSensorMotion); err != nil {
		t.Fatalf("granted permissions must pass: %v", err)
	}

	err := RequireConsent(u, domain.ConsentLocationAllowTracking, domain.ConsentLocationPrecise)
	var ae *apierror.Error
	if !errors.As(err, &ae) || ae.Status != 403 || ae.Code != "CONSENT_REQUIRED" {
		t.Fatalf("expected 403 CONSENT_REQUIRED, got %v", err)
	}
	if !strings.Contains(ae.Message, string(domain.ConsentLocationPrecise)) {
		t.Fatalf("message must name the unmet permission: %q", ae.Message)
	}

	// Unknown permission keys are never granted.
	if err := RequireConsent(u, domain.ConsentKey("locationData.unknown")); err == nil {
		t.Fatal("unknown permission must be denied")
	}
}

func TestValidateDeviceID(t *testing.T) {
	t.Parallel()

	valid := strings.Repeat("d", 16)
	if err := ValidateDeviceID(valid); err != nil {
		t.Fatalf("valid device ID rejected: %v", err)
	}
	if err := ValidateDeviceID(strings.Repeat("d", 128)); err != nil {
		t.Fatalf("max-length device ID rejected: %v", err)
	}

	for name, id := range map[string]string{
		"empty":     "",
		"blank":     "   ",
		"too short": strings.Repeat("d", 15),
		"too long":  strings.Repeat("d", 129),
	} {
		t.Run(name, func(t *testing.T) {
			err := ValidateDeviceID(id)
			var ae *apierror.Error
			if !errors.As(err, &ae) || ae.Status != 422 {
				t.Fatalf("expected 422, got %v", err)
			}
		})
	}
}
