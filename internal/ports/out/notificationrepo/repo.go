package notificationrepo

import (
	"context"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
)

// Notification is the persistence shape used by the notification repository.
type Notification struct {
	ID     domain.NotificationID
	UserID domain.UserID

	Type    domain.NotificationType
	Title   string
	Message string
	Data    map[string]any

	Read      bool
	CreatedAt time.Time
}

// Repository provides access to persisted notifications.
//
// ListForUser orders results by CreatedAt descending so clients see the
// newest notifications first.
type Repository interface {
	Create(ctx context.Context, n Notification) error

	ListForUser(ctx context.Context, userID domain.UserID, offset, limit int) ([]Notification, int, error)

	UnreadCount(ctx context.Context, userID domain.UserID) (int, error)

	// MarkRead marks a single notification read; ErrNotFound if it does not
	// exist or belongs to another user.
	MarkRead(ctx context.Context, userID domain.UserID, id domain.NotificationID) error

	// MarkAllRead marks every unread notification read and reports the count.
	MarkAllRead(ctx context.Context, userID domain.UserID) (int, error)

	DeleteForUser(ctx context.Context, userID domain.UserID) error
}
