package domain

// ConsentKey is a dotted "category.permission" identifier used to express
// consent requirements on protected operations.
type ConsentKey string

const (
	ConsentLocationAllowTracking ConsentKey = "locationData.allowTracking"
	ConsentLocationPrecise       ConsentKey = "locationData.preciseLocation"
	ConsentSensorMotion          ConsentKey = "sensorData.motionSensors"
	ConsentSensorActivity        ConsentKey = "sensorData.activityDetection"
	ConsentAnalyticsAnonymous    ConsentKey = "usageAnalytics.anonymousStats"
	ConsentAnalyticsCrashReports ConsentKey = "usageAnalytics.crashReports"
)

// ConsentData is the full, closed consent schema. Modeling it as a struct
// (rather than an open map) keeps Granted exhaustive: a key outside the
// schema can never resolve to true.
type ConsentData struct {
	LocationData   LocationConsent  `json:"locationData"`
	SensorData     SensorConsent    `json:"sensorData"`
	UsageAnalytics AnalyticsConsent `json:"usageAnalytics"`
}

type LocationConsent struct {
	AllowTracking   bool `json:"allowTracking"`
	PreciseLocation bool `json:"preciseLocation"`
}

type SensorConsent struct {
	MotionSensors     bool `json:"motionSensors"`
	ActivityDetection bool `json:"activityDetection"`
}

type AnalyticsConsent struct {
	AnonymousStats bool `json:"anonymousStats"`
	CrashReports   bool `json:"crashReports"`
}

// Granted reports whether the permission named by key is currently true.
// Unknown keys are never granted.
func (c ConsentData) Granted(key ConsentKey) bool {
	switch key {
	case ConsentLocationAllowTracking:
		return c.LocationData.AllowTracking
	case ConsentLocationPrecise:
		return c.LocationData.PreciseLocation
	case ConsentSensorMotion:
		return c.SensorData.MotionSensors
	case ConsentSensorActivity:
		return c.SensorData.ActivityDetection
	case ConsentAnalyticsAnonymous:
		return c.UsageAnalytics.AnonymousStats
	case ConsentAnalyticsCrashReports:
		return c.UsageAnalytics.CrashReports
	default:
		return false
	}
}
