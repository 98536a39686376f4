package services

import "errors"

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrAgentNotFound    = errors.New("agent not found")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrInvalidSort      = errors.New("invalid sort order")
)

// ErrStorageUnavailable is returned by queries that need MongoDB when it is
// not configured.
var ErrStorageUnavailable = errors.New("storage not configured")
