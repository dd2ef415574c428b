package triprepo

import "errors"

var (
	ErrNotFound         = errors.New("trip not found")
	ErrAlreadyExists    = errors.New("trip already exists")
	ErrActiveTripExists = errors.New("user already has an active trip")
	ErrTripNotActive    = errors.New("trip is not active")
	ErrPointOutOfOrder  = errors.New("location point timestamp precedes last recorded point")
	ErrStatusConflict   = errors.New("trip status changed concurrently")
)
