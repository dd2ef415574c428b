// Package contracttest holds behavioral contracts shared by every
// implementation of the repository ports. The memory and postgres adapters
// run the same contracts so they cannot drift apart.
package contracttest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/traveal-app/traveal-api/internal/domain"
	notificationrepoport "github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	tokenrepoport "github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
	triprepoport "github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type TripRepoFactory func(t *testing.T) (triprepoport.Repository, CleanupFunc)
type TokenRepoFactory func(t *testing.T) (tokenrepoport.Repository, CleanupFunc)
type NotificationRepoFactory func(t *testing.T) (notificationrepoport.Repository, CleanupFunc)

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	device := "device-aaaaaaaaaaaaaaaa"
	u := userrepoport.User{
		ID:       domain.UserID(uuid.NewString()),
		UUID:     uuid.NewString(),
		DeviceID: &device,
		Consent: domain.ConsentData{
			LocationData: domain.LocationConsent{AllowTracking: true},
		},
		Preferences: domain.DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UUID != u.UUID || got.DeviceID == nil || *got.DeviceID != device {
		t.Fatalf("unexpected user: %#v", got)
	}
	if !got.Consent.LocationData.AllowTracking {
		t.Fatalf("consent not round-tripped: %#v", got.Consent)
	}
	if _, err := repo.GetByUUID(ctx, u.UUID); err != nil {
		t.Fatalf("GetByUUID: %v", err)
	}
	if _, err := repo.GetByDeviceID(ctx, device); err != nil {
		t.Fatalf("GetByDeviceID: %v", err)
	}

	// Device uniqueness.
	dup := userrepoport.User{
		ID:        domain.UserID(uuid.NewString()),
		UUID:      uuid.NewString(),
		DeviceID:  &device,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, dup); !errors.Is(err, userrepoport.ErrDeviceAlreadyBound) {
		t.Fatalf("expected ErrDeviceAlreadyBound, got %v", err)
	}

	// Update flips onboarding and consent.
	u.Onboarded = true
	u.Consent.SensorData.MotionSensors = true
	u.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = repo.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if !got.Onboarded || !got.Consent.SensorData.MotionSensors {
		t.Fatalf("update not persisted: %#v", got)
	}

	// Delete frees the device slot.
	if err := repo.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, u.ID); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Create(ctx, dup); err != nil {
		t.Fatalf("Create after device freed: %v", err)
	}
}

// RunTripRepo exercises trip behaviors; users are seeded first because the
// postgres schema enforces the trip-user relation.
func RunTripRepo(t *testing.T, newUserRepo UserRepoFactory, newTripRepo TripRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	trips, tCleanup := newTripRepo(t)
	if tCleanup != nil {
		t.Cleanup(tCleanup)
	}

	now := time.Unix(2000, 0).UTC()
	userID := seedUser(t, users, now)

	tripID := domain.TripID(uuid.NewString())
	if err := trips.CreateActive(ctx, triprepoport.Trip{
		ID:             tripID,
		UserID:         userID,
		Status:         domain.TripStatusActive,
		StartLatitude:  52.52,
		StartLongitude: 13.405,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}); err != nil {
		t.Fatalf("CreateActive: %v", err)
	}

	// Single active trip per user.
	err := trips.CreateActive(ctx, triprepoport.Trip{
		ID:             domain.TripID(uuid.NewString()),
		UserID:         userID,
		Status:         domain.TripStatusActive,
		StartLatitude:  52.52,
		StartLongitude: 13.405,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if !errors.Is(err, triprepoport.ErrActiveTripExists) {
		t.Fatalf("expected ErrActiveTripExists, got %v", err)
	}

	if _, err := trips.GetActiveForUser(ctx, userID); err != nil {
		t.Fatalf("GetActiveForUser: %v", err)
	}

	// Points append in timestamp order; regressions are rejected.
	p1 := domain.LocationPoint{Latitude: 52.521, Longitude: 13.406, Timestamp: now.Add(10 * time.Second)}
	p2 := domain.LocationPoint{Latitude: 52.522, Longitude: 13.407, Timestamp: now.Add(20 * time.Second)}
	if err := trips.AppendPoint(ctx, tripID, p1); err != nil {
		t.Fatalf("AppendPoint p1: %v", err)
	}
	if err := trips.AppendPoint(ctx, tripID, p2); err != nil {
		t.Fatalf("AppendPoint p2: %v", err)
	}
	stale := domain.LocationPoint{Latitude: 52.523, Longitude: 13.408, Timestamp: now.Add(5 * time.Second)}
	if err := trips.AppendPoint(ctx, tripID, stale); !errors.Is(err, triprepoport.ErrPointOutOfOrder) {
		t.Fatalf("expected ErrPointOutOfOrder, got %v", err)
	}
	got, err := trips.GetByID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(got.Points))
	}

	// Completing the trip frees the active slot and stops point appends.
	endLat, endLon := 52.53, 13.41
	dist := 1500.0
	endedAt := now.Add(30 * time.Minute)
	got.Status = domain.TripStatusCompleted
	got.EndLatitude = &endLat
	got.EndLongitude = &endLon
	got.EndedAt = &endedAt
	got.DistanceMeters = &dist
	got.Validated = true
	mode := domain.TravelModeCycling
	got.Mode = &mode
	got.UpdatedAt = endedAt
	if err := trips.Save(ctx, got, domain.TripStatusActive); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := trips.GetActiveForUser(ctx, userID); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("expected no active trip, got %v", err)
	}
	late := domain.LocationPoint{Latitude: 52.53, Longitude: 13.41, Timestamp: endedAt}
	if err := trips.AppendPoint(ctx, tripID, late); !errors.Is(err, triprepoport.ErrTripNotActive) {
		t.Fatalf("expected ErrTripNotActive, got %v", err)
	}

	// Save is a compare-and-set on status: a writer that still believes the
	// trip is active lost the race and must not re-stamp EndedAt.
	staleSave := got
	lateEnd := endedAt.Add(10 * time.Minute)
	staleSave.EndedAt = &lateEnd
	if err := trips.Save(ctx, staleSave, domain.TripStatusActive); !errors.Is(err, triprepoport.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict for stale save, got %v", err)
	}
	after, err := trips.GetByID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByID after stale save: %v", err)
	}
	if after.Status != domain.TripStatusCompleted || after.EndedAt == nil || !after.EndedAt.Equal(endedAt) {
		t.Fatalf("stale save must not apply: status=%s endedAt=%v", after.Status, after.EndedAt)
	}

	// List and aggregates.
	listed, total, err := trips.ListCompleted(ctx, userID, triprepoport.ListFilter{}, 0, 10)
	if err != nil {
		t.Fatalf("ListCompleted: %v", err)
	}
	if total != 1 || len(listed) != 1 || listed[0].ID != tripID {
		t.Fatalf("unexpected list: total=%d %#v", total, listed)
	}
	if len(listed[0].Points) != 0 {
		t.Fatalf("listed trips should omit points")
	}
	otherMode := domain.TravelModeDriving
	if _, _, err := trips.ListCompleted(ctx, userID, triprepoport.ListFilter{Mode: &otherMode}, 0, 10); err != nil {
		t.Fatalf("ListCompleted filtered: %v", err)
	}
	if n, err := trips.CountForUser(ctx, userID); err != nil || n != 1 {
		t.Fatalf("CountForUser: n=%d err=%v", n, err)
	}
	stats, err := trips.StatsForUser(ctx, userID)
	if err != nil {
		t.Fatalf("StatsForUser: %v", err)
	}
	if stats.TotalTrips != 1 || stats.TotalDistanceMeters != dist || stats.ModeBreakdown[mode] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	// A soft delete is terminal: no later write can bring the trip back.
	deleted := after
	deleted.Status = domain.TripStatusDeleted
	deleted.UpdatedAt = endedAt.Add(time.Minute)
	if err := trips.Save(ctx, deleted, domain.TripStatusCompleted); err != nil {
		t.Fatalf("Save delete: %v", err)
	}
	resurrect := deleted
	resurrect.Status = domain.TripStatusCompleted
	if err := trips.Save(ctx, resurrect, domain.TripStatusCompleted); !errors.Is(err, triprepoport.ErrStatusConflict) {
		t.Fatalf("expected ErrStatusConflict resurrecting deleted trip, got %v", err)
	}
	final, err := trips.GetByID(ctx, tripID)
	if err != nil {
		t.Fatalf("GetByID after delete: %v", err)
	}
	if final.Status != domain.TripStatusDeleted {
		t.Fatalf("deleted trip came back as %s", final.Status)
	}

	// Saving a trip the repo has never seen reports not-found, not a conflict.
	ghost := got
	ghost.ID = domain.TripID(uuid.NewString())
	if err := trips.Save(ctx, ghost, domain.TripStatusActive); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown trip, got %v", err)
	}

	// The single-active rule holds under concurrent create attempts.
	racerID := seedUser(t, users, now)
	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := trips.CreateActive(ctx, triprepoport.Trip{
				ID:             domain.TripID(uuid.NewString()),
				UserID:         racerID,
				Status:         domain.TripStatusActive,
				StartLatitude:  52.52,
				StartLongitude: 13.405,
				StartedAt:      now,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, triprepoport.ErrActiveTripExists):
			default:
				t.Errorf("CreateActive: %v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winning create, got %d", wins)
	}

	if err := trips.DeleteForUser(ctx, userID); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if _, err := trips.GetByID(ctx, tripID); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after DeleteForUser, got %v", err)
	}
}

func RunTokenRepo(t *testing.T, newUserRepo UserRepoFactory, newTokenRepo TokenRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	tokens, tCleanup := newTokenRepo(t)
	if tCleanup != nil {
		t.Cleanup(tCleanup)
	}

	now := time.Unix(3000, 0).UTC()
	userID := seedUser(t, users, now)

	rec := tokenrepoport.Record{
		JTI:       uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}
	if err := tokens.Store(ctx, rec); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := tokens.Get(ctx, rec.JTI, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != userID {
		t.Fatalf("unexpected record: %#v", got)
	}

	// Expired records behave as revoked.
	if _, err := tokens.Get(ctx, rec.JTI, now.Add(2*time.Hour)); !errors.Is(err, tokenrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}

	if err := tokens.Delete(ctx, rec.JTI); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tokens.Delete(ctx, rec.JTI); !errors.Is(err, tokenrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}

	// Revoke-all and expiry sweeps.
	live := tokenrepoport.Record{JTI: uuid.NewString(), UserID: userID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	stale := tokenrepoport.Record{JTI: uuid.NewString(), UserID: userID, ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	if err := tokens.Store(ctx, live); err != nil {
		t.Fatalf("Store live: %v", err)
	}
	if err := tokens.Store(ctx, stale); err != nil {
		t.Fatalf("Store stale: %v", err)
	}
	if n, err := tokens.DeleteExpired(ctx, now); err != nil || n != 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
	if err := tokens.DeleteAllForUser(ctx, userID); err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	if _, err := tokens.Get(ctx, live.JTI, now); !errors.Is(err, tokenrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after revoke-all, got %v", err)
	}
}

func RunNotificationRepo(t *testing.T, newUserRepo UserRepoFactory, newNotificationRepo NotificationRepoFactory) {
	t.Helper()
	ctx := context.Background()

	users, uCleanup := newUserRepo(t)
	if uCleanup != nil {
		t.Cleanup(uCleanup)
	}
	notifs, nCleanup := newNotificationRepo(t)
	if nCleanup != nil {
		t.Cleanup(nCleanup)
	}

	now := time.Unix(4000, 0).UTC()
	userID := seedUser(t, users, now)

	first := notificationrepoport.Notification{
		ID:        domain.NotificationID(uuid.NewString()),
		UserID:    userID,
		Type:      domain.NotificationTypeTripValidation,
		Title:     "Trip validated",
		Message:   "first",
		Data:      map[string]any{"tripId": uuid.NewString()},
		CreatedAt: now,
	}
	second := notificationrepoport.Notification{
		ID:        domain.NotificationID(uuid.NewString()),
		UserID:    userID,
		Type:      domain.NotificationTypeSystem,
		Title:     "Welcome",
		Message:   "second",
		CreatedAt: now.Add(time.Minute),
	}
	if err := notifs.Create(ctx, first); err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if err := notifs.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}

	listed, total, err := notifs.ListForUser(ctx, userID, 0, 10)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if total != 2 || len(listed) != 2 || listed[0].ID != second.ID {
		t.Fatalf("unexpected list: total=%d %#v", total, listed)
	}

	if n, err := notifs.UnreadCount(ctx, userID); err != nil || n != 2 {
		t.Fatalf("UnreadCount: n=%d err=%v", n, err)
	}
	if err := notifs.MarkRead(ctx, userID, first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := notifs.MarkRead(ctx, userID, domain.NotificationID(uuid.NewString())); !errors.Is(err, notificationrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
	if n, err := notifs.UnreadCount(ctx, userID); err != nil || n != 1 {
		t.Fatalf("UnreadCount after MarkRead: n=%d err=%v", n, err)
	}
	if n, err := notifs.MarkAllRead(ctx, userID); err != nil || n != 1 {
		t.Fatalf("MarkAllRead: n=%d err=%v", n, err)
	}

	if err := notifs.DeleteForUser(ctx, userID); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if _, total, err := notifs.ListForUser(ctx, userID, 0, 10); err != nil || total != 0 {
		t.Fatalf("expected empty list after DeleteForUser: total=%d err=%v", total, err)
	}
}

func seedUser(t *testing.T, users userrepoport.Repository, now time.Time) domain.UserID {
	t.Helper()
	id := domain.UserID(uuid.NewString())
	err := users.Create(context.Background(), userrepoport.User{
		ID:          id,
		UUID:        uuid.NewString(),
		Preferences: domain.DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}
