package storage

import "errors"

// ErrNotFound is returned when a record does not exist. All store
// implementations wrap it so callers can test with errors.Is.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned on unique constraint violations.
var ErrConflict = errors.New("already exists")
