// Package storage holds what the history storage backends share: typed
// errors and atomic file writes. Backends live in sub-packages.
package storage

import (
	"errors"
	"fmt"
)

// FormatError reports a stored history that exists but cannot be decoded.
// Only that symbol's load fails; callers should not treat it as empty.
type FormatError struct {
	Symbol   string
	Location string
	Err      error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("corrupt history for %s at %s: %v", e.Symbol, e.Location, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// IOError reports a failure reading or writing the backing store
type IOError struct {
	Op       string
	Location string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Location, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsFormatError reports whether err wraps a *FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsIOError reports whether err wraps an *IOError
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
