package tokenrepo

import "errors"

var (
	// ErrNotFound indicates the refresh token is unknown, revoked, or expired.
	ErrNotFound = errors.New("refresh token record not found")
)
