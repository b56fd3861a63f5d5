package model

import "time"

// WarmJob asks a worker to load one slice ahead of use.
type WarmJob struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId,omitempty"`
	Year       int       `json:"year"`
	Week       Week      `json:"week"`
	Position   string    `json:"position"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Slice returns the slice the job warms.
func (j WarmJob) Slice() SliceKey {
	return NewSliceKey(j.Year, j.Week, j.Position)
}
