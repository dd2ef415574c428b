package tokenrepo

import (
	"context"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
)

// Record tracks an outstanding refresh token by its JTI claim. A refresh
// token is valid only while its record exists and has not expired; deleting
// records is how revocation works.
type Record struct {
	JTI       string
	UserID    domain.UserID
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Store(ctx context.Context, rec Record) error

	// Get returns the record for jti, or ErrNotFound if it was never stored,
	// was revoked, or has expired relative to now.
	Get(ctx context.Context, jti string, now time.Time) (Record, error)

	Delete(ctx context.Context, jti string) error

	// DeleteAllForUser revokes every outstanding refresh token for the user.
	DeleteAllForUser(ctx context.Context, userID domain.UserID) error

	// DeleteExpired removes expired records and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
