package domain

import "time"

// User is the domain representation of an anonymous, device-bound account.
type User struct {
	ID   UserID
	UUID string

	// DeviceID is set for anonymous device accounts; nil once unbound.
	DeviceID *string

	// Onboarded flips to true only after the consent-capture flow completes.
	Onboarded bool

	Consent ConsentData

	// Preferences is free-form client state; it is never authorization-relevant.
	Preferences map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPreferences is the preference snapshot applied to newly registered
// accounts.
func DefaultPreferences() map[string]any {
	return map[string]any{
		"notificationSettings": map[string]any{
			"tripValidation": true,
			"achievements":   true,
			"system":         true,
			"pushEnabled":    false,
		},
		"privacySettings": map[string]any{
			"dataRetentionDays":   90,
			"shareAggregatedData": true,
		},
		"appSettings": map[string]any{
			"theme":    "system",
			"language": "en",
			"units":    "metric",
		},
	}
}
