package triprepo

import (
	"context"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
)

// Trip is the persistence shape used by the trip repository.
type Trip struct {
	ID     domain.TripID
	UserID domain.UserID
	Status domain.TripStatus

	StartLatitude  float64
	StartLongitude float64
	StartAddress   *string

	EndLatitude  *float64
	EndLongitude *float64
	EndAddress   *string

	StartedAt time.Time
	EndedAt   *time.Time

	DistanceMeters *float64
	Mode           *domain.TravelMode
	Purpose        *domain.TripPurpose
	Companions     int
	Validated      bool

	Points []domain.LocationPoint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows ListCompleted results. Nil fields are ignored.
type ListFilter struct {
	Mode      *domain.TravelMode
	Validated *bool
	From      *time.Time
	To        *time.Time
}

// Stats is the aggregate over a user's validated, completed trips.
type Stats struct {
	TotalTrips            int
	TotalDistanceMeters   float64
	AverageDistanceMeters float64
	ModeBreakdown         map[domain.TravelMode]int
}

// Repository provides access to persisted trips.
//
// Concurrency contract: CreateActive and AppendPoint are the serialization
// points for the single-active-trip and monotonic-timestamp invariants.
// Implementations enforce both at the storage layer (unique constraint /
// conditional append), never by unguarded check-then-act.
type Repository interface {
	// CreateActive inserts a new ACTIVE trip, failing with ErrActiveTripExists
	// if the user already has one. The insert and the constraint check are a
	// single atomic operation.
	CreateActive(ctx context.Context, t Trip) error

	// Save persists the trip's scalar fields, but only while the stored
	// status still equals prev; ErrStatusConflict reports a lost race. The
	// compare-and-set makes every status transition atomic at the storage
	// layer, so DELETED stays terminal and EndedAt is stamped at most once.
	// The point sequence is managed exclusively through AppendPoint and is
	// never rewritten here.
	Save(ctx context.Context, t Trip, prev domain.TripStatus) error

	GetByID(ctx context.Context, id domain.TripID) (Trip, error)

	// GetActiveForUser returns the user's ACTIVE trip or ErrNotFound.
	GetActiveForUser(ctx context.Context, userID domain.UserID) (Trip, error)

	// AppendPoint appends a location point to an ACTIVE trip. It fails with
	// ErrTripNotActive when the trip is not active and ErrPointOutOfOrder when
	// the point's timestamp precedes the last recorded point; rejected points
	// leave the stored sequence unchanged.
	AppendPoint(ctx context.Context, id domain.TripID, pt domain.LocationPoint) error

	// ListCompleted returns COMPLETED trips for the user ordered by StartedAt
	// descending, plus the total count before pagination. Listed trips omit
	// the point sequence; fetch a trip by ID for its points.
	ListCompleted(ctx context.Context, userID domain.UserID, filter ListFilter, offset, limit int) ([]Trip, int, error)

	CountForUser(ctx context.Context, userID domain.UserID) (int, error)

	StatsForUser(ctx context.Context, userID domain.UserID) (Stats, error)

	// DeleteForUser removes all trips owned by the user (account deletion).
	DeleteForUser(ctx context.Context, userID domain.UserID) error
}
