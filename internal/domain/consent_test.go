package domain

import "testing"

func TestConsentGranted(t *testing.T) {
	t.Parallel()

	c := ConsentData{
		LocationData:   LocationConsent{AllowTracking: true},
		SensorData:     SensorConsent{ActivityDetection: true},
		UsageAnalytics: AnalyticsConsent{CrashReports: true},
	}

	granted := []ConsentKey{ConsentLocationAllowTracking, ConsentSensorActivity, ConsentAnalyticsCrashReports}
	for _, key := range granted {
		if !c.Granted(key) {
			t.Errorf("Granted(%q) = false", key)
		}
	}

	denied := []ConsentKey{ConsentLocationPrecise, ConsentSensorMotion, ConsentAnalyticsAnonymous}
	for _, key := range denied {
		if c.Granted(key) {
			t.Errorf("Granted(%q) = true", key)
		}
	}

	// Keys outside the schema never resolve to a grant.
	if c.Granted("locationData.somethingElse") {
		t.Error("unknown key must not be granted")
	}
	if (ConsentData{}).Granted(ConsentLocationAllowTracking) {
		t.Error("zero-value consent must deny everything")
	}
}
