package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a fetch that ran past its wall-clock deadline.
	ErrTimeout = errors.New("fetch timed out")
	// ErrTooLarge marks a response body that crossed the configured size
	// ceiling before being fully read.
	ErrTooLarge = errors.New("response body exceeds size limit")
)

// StatusError is returned for any non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.Code)
}
