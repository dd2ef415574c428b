package userrepo

import "errors"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists indicates a user already exists with the provided ID.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrDeviceAlreadyBound indicates another user is already bound to the device ID.
	ErrDeviceAlreadyBound = errors.New("device already bound to a user")
)
