package errors

import "errors"

var (
	ErrInvalidRequest      = errors.New("invalid purchase request")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProviderError       = errors.New("provider acquisition failed")
	ErrSystemError         = errors.New("saga commit failed after number acquisition")
	ErrNotSupported        = errors.New("operation not supported by this provider")
	ErrActivationConflict  = errors.New("activation is not in an expected state for this operation")
)
