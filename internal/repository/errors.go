package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist, or a
	// conditional write matched nothing.
	ErrNotFound = errors.New("repository: not found")
)
