package domain

import "time"

type NotificationType string

const (
	NotificationTypeTripValidation NotificationType = "trip_validation"
	NotificationTypeAchievement    NotificationType = "achievement"
	NotificationTypeSystem         NotificationType = "system"
)

type Notification struct {
	ID     NotificationID
	UserID UserID

	Type    NotificationType
	Title   string
	Message string
	Data    map[string]any

	Read      bool
	CreatedAt time.Time
}
