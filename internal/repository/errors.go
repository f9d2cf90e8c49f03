package repository

import "errors"

// ErrNotFound is returned when a targeted update matches no row.
var ErrNotFound = errors.New("row not found")
