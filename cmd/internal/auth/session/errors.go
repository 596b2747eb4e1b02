package session

import "errors"

var (
	// ErrUserNotFound is returned when no user matches a lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned by Store.CreateUser on a username conflict.
	ErrUserExists = errors.New("user already exists")

	// ErrConfig is returned for invalid configuration or settings.
	ErrConfig = errors.New("invalid config")
)
