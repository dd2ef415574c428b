package notificationrepo

import "errors"

var (
	ErrNotFound      = errors.New("notification not found")
	ErrAlreadyExists = errors.New("notification already exists")
)
