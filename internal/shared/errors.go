package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPageOutOfRange occurs when a requested page exceeds the available range.
	ErrPageOutOfRange = errors.New("page out of range")
)
