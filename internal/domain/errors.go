package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidAlert       = errors.New("invalid alert")
	ErrSourceUnavailable  = errors.New("source unavailable")
	ErrCacheUnavailable   = errors.New("cache unavailable")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrSchedulerOverlap   = errors.New("previous run still active")
)
