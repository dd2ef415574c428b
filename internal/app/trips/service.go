// Package trips implements the trip lifecycle state machine: a user's trip
// moves from active (accepting location points) to completed, with deletion
// as a terminal state. The single-active-trip and monotonic-timestamp
// invariants are delegated to the repository's atomic operations.
package trips

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/traveal-app/traveal-api/internal/domain"
	clockport "github.com/traveal-app/traveal-api/internal/ports/out/clock"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	"github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service struct {
	trips  triprepo.Repository
	notifs notificationrepo.Repository
	clk    clockport.Clock
	limits Limits

	newTripID func() domain.TripID
}

func NewService(tripsRepo triprepo.Repository, notifsRepo notificationrepo.Repository, clk clockport.Clock, limits Limits) *Service {
	return &Service{
		trips:  tripsRepo,
		notifs: notifsRepo,
		clk:    clk,
		limits: limits,
		newTripID: func() domain.TripID {
			return domain.TripID(uuid.NewString())
		},
	}
}

// SetNewTripIDForTest overrides trip ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTripIDForTest(fn func() domain.TripID) {
	if fn != nil {
		s.newTripID = fn
	}
}

// Start begins a new active trip. The create-if-none-active check is a single
// atomic repository operation; a race between two concurrent starts yields
// exactly one active trip.
func (s *Service) Start(ctx context.Context, userID domain.UserID, in StartInput) (domain.Trip, error) {
	if !domain.ValidCoordinate(in.Latitude, in.Longitude) {
		return domain.Trip{}, apierror.Invalid("invalid start coordinates", map[string]any{
			"latitude":  "must be within [-90, 90]",
			"longitude": "must be within [-180, 180]",
		})
	}

	now := s.clk.Now()
	t := triprepo.Trip{
		ID:             s.newTripID(),
		UserID:         userID,
		Status:         domain.TripStatusActive,
		StartLatitude:  in.Latitude,
		StartLongitude: in.Longitude,
		StartAddress:   cloneStringPtr(in.Address),
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.trips.CreateActive(ctx, t); err != nil {
		if errors.Is(err, triprepo.ErrActiveTripExists) {
			return domain.Trip{}, apierror.Conflict("ACTIVE_TRIP_EXISTS", "an active trip already exists")
		}
		return domain.Trip{}, err
	}

	slog.Info("trip started", "trip", t.ID, "user", userID)
	return toDomain(t), nil
}

// AddLocationPoint appends a GPS fix to the caller's active trip. Points with
// out-of-range coordinates or poor accuracy are rejected; a point whose
// timestamp precedes the last recorded one is dropped, never reordered.
func (s *Service) AddLocationPoint(ctx context.Context, userID domain.UserID, tripID domain.TripID, in PointInput) error {
	if !domain.ValidCoordinate(in.Latitude, in.Longitude) {
		return apierror.Invalid("invalid coordinates", map[string]any{
			"latitude":  "must be within [-90, 90]",
			"longitude": "must be within [-180, 180]",
		})
	}
	if in.Accuracy != nil && *in.Accuracy > s.limits.AccuracyThresholdMeters {
		return apierror.Invalid("location accuracy too low", map[string]any{
			"accuracy": fmt.Sprintf("must be at most %.0f meters", s.limits.AccuracyThresholdMeters),
		})
	}
	if in.Timestamp.IsZero() {
		return apierror.Invalid("missing timestamp", map[string]any{"timestamp": "must be set"})
	}

	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return err
	}
	if t.Status != domain.TripStatusActive {
		return apierror.Conflict("TRIP_NOT_ACTIVE", "trip is not active")
	}

	pt := domain.LocationPoint{
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Accuracy:  cloneFloatPtr(in.Accuracy),
		Speed:     cloneFloatPtr(in.Speed),
		Altitude:  cloneFloatPtr(in.Altitude),
		Timestamp: in.Timestamp.UTC(),
	}
	if err := s.trips.AppendPoint(ctx, t.ID, pt); err != nil {
		switch {
		case errors.Is(err, triprepo.ErrPointOutOfOrder):
			return apierror.Invalid("location point out of order", map[string]any{
				"timestamp": "must not precede the last recorded point",
			})
		case errors.Is(err, triprepo.ErrTripNotActive):
			return apierror.Conflict("TRIP_NOT_ACTIVE", "trip is not active")
		case errors.Is(err, triprepo.ErrNotFound):
			return apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
		}
		return err
	}
	return nil
}

// End completes the caller's active trip, stamping EndedAt exactly once and
// recording the straight-line distance between endpoints.
func (s *Service) End(ctx context.Context, userID domain.UserID, tripID domain.TripID, in EndInput) (domain.Trip, error) {
	if !domain.ValidCoordinate(in.Latitude, in.Longitude) {
		return domain.Trip{}, apierror.Invalid("invalid end coordinates", map[string]any{
			"latitude":  "must be within [-90, 90]",
			"longitude": "must be within [-180, 180]",
		})
	}

	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	if t.Status != domain.TripStatusActive {
		return domain.Trip{}, apierror.Conflict("TRIP_NOT_ACTIVE", "trip is not active")
	}

	now := s.clk.Now()
	if now.Before(t.StartedAt) {
		// Clock skew guard: EndedAt never precedes StartedAt.
		now = t.StartedAt
	}

	lat, lon := in.Latitude, in.Longitude
	dist := domain.HaversineMeters(t.StartLatitude, t.StartLongitude, lat, lon)

	t.Status = domain.TripStatusCompleted
	t.EndLatitude = &lat
	t.EndLongitude = &lon
	t.EndAddress = cloneStringPtr(in.Address)
	t.EndedAt = &now
	t.DistanceMeters = &dist
	t.UpdatedAt = now
	if err := s.trips.Save(ctx, t, domain.TripStatusActive); err != nil {
		// A concurrent end or delete won the transition; EndedAt is never
		// stamped twice.
		if errors.Is(err, triprepo.ErrStatusConflict) {
			return domain.Trip{}, apierror.Conflict("TRIP_NOT_ACTIVE", "trip is not active")
		}
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Trip{}, apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
		}
		return domain.Trip{}, err
	}

	slog.Info("trip ended", "trip", t.ID, "user", userID, "distance_m", dist)
	return toDomain(t), nil
}

// Validate computes the validity signal for a completed trip from its
// location sequence and records it, applying any traveler corrections. The
// trip's status is unchanged; validation is repeatable.
func (s *Service) Validate(ctx context.Context, userID domain.UserID, tripID domain.TripID, in ValidateInput) (domain.Trip, ValidationReport, error) {
	if in.Mode != nil && !domain.ValidTravelMode(*in.Mode) {
		return domain.Trip{}, ValidationReport{}, apierror.Invalid("invalid mode", map[string]any{"mode": "unknown travel mode"})
	}
	if in.Purpose != nil && !domain.ValidTripPurpose(*in.Purpose) {
		return domain.Trip{}, ValidationReport{}, apierror.Invalid("invalid purpose", map[string]any{"purpose": "unknown trip purpose"})
	}
	if in.Companions != nil && *in.Companions < 0 {
		return domain.Trip{}, ValidationReport{}, apierror.Invalid("invalid companions", map[string]any{"companions": "must be >= 0"})
	}

	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return domain.Trip{}, ValidationReport{}, err
	}
	if t.Status != domain.TripStatusCompleted {
		return domain.Trip{}, ValidationReport{}, apierror.Conflict("TRIP_NOT_COMPLETED", "only completed trips can be validated")
	}

	report := s.assess(t)
	wasValidated := t.Validated

	t.Validated = report.Valid
	if in.Mode != nil {
		t.Mode = in.Mode
	} else if t.Mode == nil {
		if detected, ok := detectMode(t.Points); ok {
			t.Mode = &detected
		}
	}
	if in.Purpose != nil {
		t.Purpose = in.Purpose
	}
	if in.Companions != nil {
		t.Companions = *in.Companions
	}
	t.UpdatedAt = s.clk.Now()
	if err := s.trips.Save(ctx, t, domain.TripStatusCompleted); err != nil {
		if errors.Is(err, triprepo.ErrStatusConflict) {
			return domain.Trip{}, ValidationReport{}, apierror.Conflict("TRIP_NOT_COMPLETED", "only completed trips can be validated")
		}
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Trip{}, ValidationReport{}, apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
		}
		return domain.Trip{}, ValidationReport{}, err
	}

	if report.Valid && !wasValidated {
		s.notifyValidated(ctx, t)
	}

	return toDomain(t), report, nil
}

// Delete soft-deletes a trip from any non-deleted state. Deleting an active
// trip releases the one-active-trip slot.
func (s *Service) Delete(ctx context.Context, userID domain.UserID, tripID domain.TripID) error {
	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return err
	}

	prev := t.Status
	t.Status = domain.TripStatusDeleted
	t.UpdatedAt = s.clk.Now()
	if err := s.trips.Save(ctx, t, prev); err != nil {
		if errors.Is(err, triprepo.ErrStatusConflict) {
			return apierror.Conflict("TRIP_STATE_CHANGED", "trip was modified concurrently")
		}
		if errors.Is(err, triprepo.ErrNotFound) {
			return apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
		}
		return err
	}

	slog.Info("trip deleted", "trip", t.ID, "user", userID)
	return nil
}

// Get returns a single non-deleted trip owned by the caller.
func (s *Service) Get(ctx context.Context, userID domain.UserID, tripID domain.TripID) (domain.Trip, error) {
	t, err := s.ownedTrip(ctx, userID, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	return toDomain(t), nil
}

// Active returns the caller's active trip, if any.
func (s *Service) Active(ctx context.Context, userID domain.UserID) (domain.Trip, error) {
	t, err := s.trips.GetActiveForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Trip{}, apierror.NotFound("NO_ACTIVE_TRIP", "no active trip")
		}
		return domain.Trip{}, err
	}
	return toDomain(t), nil
}

// ListCompleted returns the caller's completed trips, newest first.
func (s *Service) ListCompleted(ctx context.Context, userID domain.UserID, in ListInput) ([]domain.Trip, int, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if in.Mode != nil && !domain.ValidTravelMode(*in.Mode) {
		return nil, 0, apierror.Invalid("invalid mode filter", map[string]any{"mode": "unknown travel mode"})
	}

	filter := triprepo.ListFilter{
		Mode:      in.Mode,
		Validated: in.Validated,
		From:      in.From,
		To:        in.To,
	}
	ts, total, err := s.trips.ListCompleted(ctx, userID, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Trip, 0, len(ts))
	for _, t := range ts {
		out = append(out, toDomain(t))
	}
	return out, total, nil
}

// Stats aggregates the caller's validated completed trips.
func (s *Service) Stats(ctx context.Context, userID domain.UserID) (triprepo.Stats, error) {
	return s.trips.StatsForUser(ctx, userID)
}

func (s *Service) ownedTrip(ctx context.Context, userID domain.UserID, tripID domain.TripID) (triprepo.Trip, error) {
	t, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return triprepo.Trip{}, apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
		}
		return triprepo.Trip{}, err
	}
	// Another user's trip looks like a missing one.
	if t.UserID != userID || t.Status == domain.TripStatusDeleted {
		return triprepo.Trip{}, apierror.NotFound("TRIP_NOT_FOUND", "trip not found")
	}
	return t, nil
}

func (s *Service) assess(t triprepo.Trip) ValidationReport {
	report := ValidationReport{PointCount: len(t.Points)}

	if t.EndedAt != nil {
		report.Duration = t.EndedAt.Sub(t.StartedAt)
	}
	report.MaxSpeedKmh = maxSegmentSpeedKmh(t.Points)

	if report.Duration < s.limits.MinDuration {
		report.Failures = append(report.Failures, "duration below minimum")
	}
	if report.PointCount < s.limits.MinPoints {
		report.Failures = append(report.Failures, "too few location points")
	}
	if report.MaxSpeedKmh > s.limits.MaxSpeedKmh {
		report.Failures = append(report.Failures, "implausible speed between points")
	}

	report.Valid = len(report.Failures) == 0
	return report
}

func (s *Service) notifyValidated(ctx context.Context, t triprepo.Trip) {
	n := notificationrepo.Notification{
		ID:        domain.NotificationID(uuid.NewString()),
		UserID:    t.UserID,
		Type:      domain.NotificationTypeTripValidation,
		Title:     "Trip validated",
		Message:   "Your trip has been validated and added to your travel history.",
		Data:      map[string]any{"tripId": string(t.ID)},
		CreatedAt: s.clk.Now(),
	}
	// Notification delivery is best-effort; a failure must not fail validation.
	if err := s.notifs.Create(ctx, n); err != nil {
		slog.Warn("trip validation notification failed", "trip", t.ID, "error", err)
	}
}

// maxSegmentSpeedKmh computes the highest straight-line speed between
// consecutive points. Zero or negative time deltas contribute nothing: the
// repository already guarantees non-decreasing timestamps, and equal
// timestamps carry no speed information.
func maxSegmentSpeedKmh(points []domain.LocationPoint) float64 {
	var max float64
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		dt := cur.Timestamp.Sub(prev.Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		meters := domain.HaversineMeters(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude)
		kmh := meters / dt * 3.6
		if kmh > max {
			max = kmh
		}
	}
	return max
}

// detectMode guesses the travel mode from device-reported segment speeds,
// mirroring the thresholds used by the mobile client's trip detection.
func detectMode(points []domain.LocationPoint) (domain.TravelMode, bool) {
	var speeds []float64
	for _, p := range points {
		if p.Speed != nil && *p.Speed > 0 {
			speeds = append(speeds, *p.Speed)
		}
	}
	if len(speeds) == 0 {
		return "", false
	}

	var sum, max float64
	for _, v := range speeds {
		sum += v
		if v > max {
			max = v
		}
	}
	avg := sum / float64(len(speeds))

	switch {
	case max > 80:
		return domain.TravelModeDriving, true
	case max > 25:
		return domain.TravelModeCycling, true
	case avg > 15:
		return domain.TravelModePublicTransport, true
	default:
		return domain.TravelModeWalking, true
	}
}

func toDomain(t triprepo.Trip) domain.Trip {
	out := domain.Trip{
		ID:     t.ID,
		UserID: t.UserID,
		Status: t.Status,
		Start: domain.Place{
			Latitude:  t.StartLatitude,
			Longitude: t.StartLongitude,
			Address:   cloneStringPtr(t.StartAddress),
		},
		StartedAt:      t.StartedAt,
		EndedAt:        cloneTimePtr(t.EndedAt),
		DistanceMeters: cloneFloatPtr(t.DistanceMeters),
		Companions:     t.Companions,
		Validated:      t.Validated,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.EndLatitude != nil && t.EndLongitude != nil {
		out.End = &domain.Place{
			Latitude:  *t.EndLatitude,
			Longitude: *t.EndLongitude,
			Address:   cloneStringPtr(t.EndAddress),
		}
	}
	if t.Mode != nil {
		m := *t.Mode
		out.Mode = &m
	}
	if t.Purpose != nil {
		p := *t.Purpose
		out.Purpose = &p
	}
	if t.Points != nil {
		out.Points = append([]domain.LocationPoint(nil), t.Points...)
	}
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
