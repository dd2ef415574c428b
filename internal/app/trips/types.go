package trips

import (
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
)

// Limits are the validation heuristics applied to location points and
// completed trips. They come from process configuration.
type Limits struct {
	// AccuracyThresholdMeters rejects GPS fixes with worse reported accuracy.
	AccuracyThresholdMeters float64
	// MinDuration below which a completed trip cannot validate.
	MinDuration time.Duration
	// MinPoints is the minimum number of recorded location points.
	MinPoints int
	// MaxSpeedKmh is the highest plausible speed between consecutive points.
	MaxSpeedKmh float64
}

type StartInput struct {
	Latitude  float64
	Longitude float64
	Address   *string
}

type PointInput struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Speed     *float64
	Altitude  *float64
	Timestamp time.Time
}

type EndInput struct {
	Latitude  float64
	Longitude float64
	Address   *string
}

// ValidateInput carries the traveler's corrections confirmed during the
// validation step; nil fields leave the recorded value untouched.
type ValidateInput struct {
	Mode       *domain.TravelMode
	Purpose    *domain.TripPurpose
	Companions *int
}

// ValidationReport explains the computed validity signal.
type ValidationReport struct {
	Valid bool

	Duration    time.Duration
	PointCount  int
	MaxSpeedKmh float64

	// Failures lists which heuristics rejected the trip; empty when Valid.
	Failures []string
}

type ListInput struct {
	Page  int
	Limit int

	Mode      *domain.TravelMode
	Validated *bool
	From      *time.Time
	To        *time.Time
}
