package authz

import "strings"

// bearerToken extracts the raw token from an "Authorization: Bearer <token>"
// header value.
func bearerToken(authorization string) (string, bool) {
	if authorization == "" {
		return "", false
	}
	if !strings.HasPrefix(authorization, bearerPrefix) {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	if raw == "" {
		return "", false
	}
	return raw, true
}
