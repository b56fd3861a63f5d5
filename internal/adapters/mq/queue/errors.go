package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("warm queue full")
	ErrClosed = errors.New("warm queue closed")
)
