package errors

import "errors"

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrActivationNotFound  = errors.New("activation not found")
	ErrInvalidTransition   = errors.New("invalid activation state transition")
	ErrIdempotencyConflict = errors.New("idempotency key already used with a different request")
	ErrDuplicateMessage    = errors.New("sms message already ingested for this number and code")
)
