package loadtest

import "errors"

var (
	// ErrNoRankings is returned when the server served no ranking entries.
	ErrNoRankings = errors.New("no rankings to verify")
	// ErrRankingOrder is returned when served rankings break the ordering rules.
	ErrRankingOrder = errors.New("rankings out of order")
	// ErrSliceFailures is returned when any slice read failed.
	ErrSliceFailures = errors.New("slice reads failed")
)
