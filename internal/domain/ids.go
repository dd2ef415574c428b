package domain

// UserID is the internal identifier for a user record. External callers only
// ever see the user's UUID; the tokens layer binds claims to the UUID as well.
type UserID string

// TripID is an internal identifier for a trip record.
type TripID string

// NotificationID is an internal identifier for a notification record.
type NotificationID string
