package errors

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid catalog request")
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
	ErrNotFound               = errors.New("resource not found")

	ErrOfferNotFound         = errors.New("offer not found")
	ErrNoMatchingOffer       = errors.New("no offer matches the requested service and country")
	ErrInsufficientStock     = errors.New("offer has no remaining stock")
	ErrReservationNotFound   = errors.New("offer reservation not found")
	ErrReservationNotPending = errors.New("offer reservation is not pending")
)
