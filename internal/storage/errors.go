package storage

import "errors"

var (
	// ErrAPIKeyNotFound is returned when a user has no key for a provider
	ErrAPIKeyNotFound = errors.New("API key not found")
)
