package badger

import "errors"

// ErrReadOnly is returned when a write is attempted on a read-only backend.
var ErrReadOnly = errors.New("backend is read-only")
