package errors

import "errors"

var ErrSweepFailed = errors.New("reaper sweep failed partway through its batch")
