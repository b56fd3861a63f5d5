package loadtest

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	sessionHeader        = "X-Session-ID"
	defaultTimeout       = 30 * time.Second
)
