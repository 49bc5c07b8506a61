package storage

import "errors"

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrInvalidTransition is returned when a task status update would move the
// lifecycle backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("storage: invalid status transition")
