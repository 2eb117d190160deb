package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUnknownTable is returned when a Table or Layer value has no backing table.
	ErrUnknownTable = errors.New("unknown table")

	// ErrClosed is returned by Close on an already closed store.
	ErrClosed = errors.New("store is closed")

	// ErrCorrupt matches every *IntegrityError.
	ErrCorrupt = errors.New("corrupt index")

	// ErrUnsupportedDriver is returned by Open for a driver name that is not registered here.
	ErrUnsupportedDriver = errors.New("unsupported sql driver")
)

// IntegrityError reports persisted data that violates the index invariants,
// such as a link whose endpoint is missing from urllist.
type IntegrityError struct {
	Table  string
	Column string
	Ref    int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("corrupt index: %s.%s references missing id %d", e.Table, e.Column, e.Ref)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrCorrupt
}
