package errors

import "errors"

var (
	ErrLockNotAcquired = errors.New("poll cycle lock is held by another writer")
	ErrUnknownProvider = errors.New("poll manager has no collaborator for this provider")
	ErrCircuitOpen     = errors.New("provider circuit breaker is open")
	ErrInvalidDueEntry = errors.New("due-index entry missing an activation id")
)
