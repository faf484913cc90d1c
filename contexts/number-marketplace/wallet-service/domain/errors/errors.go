package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("wallet request is invalid")
	ErrIdempotencyKeyMissing = errors.New("idempotency key is required")
	ErrIdempotencyConflict   = errors.New("idempotency key already used with a different request")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrReservationNotFound   = errors.New("reservation not found")
	ErrReservationClosed     = errors.New("reservation is already committed or rolled back")
	ErrNotFound              = errors.New("ledger entry not found")
)
