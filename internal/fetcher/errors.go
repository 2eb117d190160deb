package fetcher

import (
	"errors"
	"fmt"
)

var (
	ErrDisallowed = errors.New("disallowed by robots.txt")
	ErrNotHTML    = errors.New("not an html document")
	ErrTooLarge   = errors.New("response body too large")
	ErrStatus     = errors.New("unexpected status")
)

// StatusError carries the status code of a non-200 response. It matches ErrStatus.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-200 status: %d", e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}
