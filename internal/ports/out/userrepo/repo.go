package userrepo

import (
	"context"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
)

// User is the persistence shape used by the user repository.
// It is not an HTTP DTO.
type User struct {
	ID   domain.UserID
	UUID string

	// DeviceID is unique across users when set.
	DeviceID *string

	Onboarded   bool
	Consent     domain.ConsentData
	Preferences map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted users.
//
// Create must enforce device-ID uniqueness as a single constrained write:
// two concurrent registrations for the same device must not both succeed.
type Repository interface {
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	GetByUUID(ctx context.Context, uuid string) (User, error)
	GetByDeviceID(ctx context.Context, deviceID string) (User, error)

	// Delete removes the user record entirely. Dependent records (trips,
	// notifications, refresh tokens) are removed by their own repositories.
	Delete(ctx context.Context, id domain.UserID) error
}
