package domain

import "time"

type TripStatus string

const (
	TripStatusActive    TripStatus = "ACTIVE"
	TripStatusCompleted TripStatus = "COMPLETED"
	TripStatusDeleted   TripStatus = "DELETED"
)

type TravelMode string

const (
	TravelModeWalking         TravelMode = "walking"
	TravelModeCycling         TravelMode = "cycling"
	TravelModeDriving         TravelMode = "driving"
	TravelModePublicTransport TravelMode = "public_transport"
)

func ValidTravelMode(m TravelMode) bool {
	switch m {
	case TravelModeWalking, TravelModeCycling, TravelModeDriving, TravelModePublicTransport:
		return true
	default:
		return false
	}
}

type TripPurpose string

const (
	TripPurposeWork     TripPurpose = "work"
	TripPurposeSchool   TripPurpose = "school"
	TripPurposeShopping TripPurpose = "shopping"
	TripPurposeOther    TripPurpose = "other"
)

func ValidTripPurpose(p TripPurpose) bool {
	switch p {
	case TripPurposeWork, TripPurposeSchool, TripPurposeShopping, TripPurposeOther:
		return true
	default:
		return false
	}
}

// Place is a geocoded trip endpoint.
type Place struct {
	Latitude  float64
	Longitude float64
	Address   *string
}

// LocationPoint is a single GPS fix recorded while a trip is active.
type LocationPoint struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
	Speed     *float64 // km/h as reported by the device
	Altitude  *float64
	Timestamp time.Time
}

// Trip is the domain read model for a tracked trip.
//
// Invariants:
//   - at most one ACTIVE trip per user
//   - Points is ordered by non-decreasing Timestamp
//   - EndedAt is set exactly once (active -> completed) and never precedes StartedAt
type Trip struct {
	ID     TripID
	UserID UserID
	Status TripStatus

	Start Place
	End   *Place

	StartedAt time.Time
	EndedAt   *time.Time

	DistanceMeters *float64
	Mode           *TravelMode
	Purpose        *TripPurpose
	Companions     int
	Validated      bool

	Points []LocationPoint

	CreatedAt time.Time
	UpdatedAt time.Time
}
