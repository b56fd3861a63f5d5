package model

import (
	"fmt"
	"strings"
)

// TotalPolicy controls whether the season total counts toward completeness.
type TotalPolicy string

// Total week policies.
const (
	// TotalIndependent covers weeks 1..MaxWeek only; a total is kept when
	// the backend returns one.
	TotalIndependent TotalPolicy = "independent"
	// TotalRequired requests the total and requires it for completeness.
	TotalRequired TotalPolicy = "required"
)

// ParseTotalPolicy validates a policy name. Empty selects TotalIndependent.
func ParseTotalPolicy(s string) (TotalPolicy, error) {
	switch p := TotalPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", TotalIndependent:
		return TotalIndependent, nil
	case TotalRequired:
		return TotalRequired, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// RequiredWeeks lists the weeks a complete record must hold under p.
func (p TotalPolicy) RequiredWeeks() []Week {
	weeks := AllWeeks()
	if p == TotalRequired {
		weeks = append(weeks, WeekTotal)
	}
	return weeks
}

// MissingWeeks returns the required weeks absent from existing. A week that
// is present but all zero counts as present.
func MissingWeeks(existing WeeklyStats, p TotalPolicy) []Week {
	var missing []Week
	for _, w := range p.RequiredWeeks() {
		if _, ok := existing[w]; !ok {
			missing = append(missing, w)
		}
	}
	return missing
}

// MergeWeeklyStats returns the union of existing and incoming; incoming
// wins on a shared week. Neither input is modified.
func MergeWeeklyStats(existing, incoming WeeklyStats) WeeklyStats {
	out := existing.Clone()
	if out == nil {
		out = make(WeeklyStats, len(incoming))
	}
	for w, line := range incoming {
		out[w] = line.Clone()
	}
	return out
}

// MergePlayerYear folds an incoming record into existing. Identity fields
// take the incoming value when set; weekly stats are unioned.
func MergePlayerYear(existing *PlayerYearRecord, incoming PlayerYearRecord) PlayerYearRecord {
	if existing == nil {
		out := incoming
		out.WeeklyStats = MergeWeeklyStats(nil, incoming.WeeklyStats)
		return out
	}
	out := *existing
	if incoming.PlayerKey != "" {
		out.PlayerKey = incoming.PlayerKey
	}
	if incoming.Name != "" {
		out.Name = incoming.Name
	}
	if incoming.Position != "" {
		out.Position = incoming.Position
	}
	if incoming.Team != "" {
		out.Team = incoming.Team
	}
	if incoming.Rank != 0 {
		out.Rank = incoming.Rank
	}
	if !incoming.Timestamp.IsZero() {
		out.Timestamp = incoming.Timestamp
	}
	out.WeeklyStats = MergeWeeklyStats(existing.WeeklyStats, incoming.WeeklyStats)
	return out
}

// VisibleWeeks drops weeks whose stat line is all zero.
func VisibleWeeks(w WeeklyStats) WeeklyStats {
	out := make(WeeklyStats, len(w))
	for wk, line := range w {
		if line.HasData() {
			out[wk] = line.Clone()
		}
	}
	return out
}
