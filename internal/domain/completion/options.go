package completion

import "time"

// Option applies a configuration option to a Tracker.
type Option func(*options)

type options struct {
	maxSize  int
	notFound func(error) bool
	now      func() time.Time
}

// WithMaxSize bounds the number of keys kept in memory.
// If maxSize > 0: the oldest marked keys are evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

// WithNotFound sets how the tracker recognizes a missing durable flag.
func WithNotFound(isNotFound func(error) bool) Option {
	return func(o *options) {
		if isNotFound != nil {
			o.notFound = isNotFound
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
