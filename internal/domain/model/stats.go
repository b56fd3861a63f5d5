package model

import "time"

// StatLine maps a stat id to its value for one week.
type StatLine map[string]float64

// HasData reports whether at least one value is non-zero.
func (s StatLine) HasData() bool {
	for _, v := range s {
		if v != 0 {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (s StatLine) Clone() StatLine {
	if s == nil {
		return nil
	}
	out := make(StatLine, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// WeeklyStats maps a week to its stat line. It includes WeekTotal when the
// backend provided it.
type WeeklyStats map[Week]StatLine

// Clone returns a deep copy.
func (w WeeklyStats) Clone() WeeklyStats {
	if w == nil {
		return nil
	}
	out := make(WeeklyStats, len(w))
	for wk, line := range w {
		out[wk] = line.Clone()
	}
	return out
}

// StatRecord is one player's stats for one (year, week).
type StatRecord struct {
	ID         string    `json:"id"`
	PlayerKey  string    `json:"playerKey"`
	PlayerName string    `json:"playerName"`
	Position   string    `json:"position"`
	Team       string    `json:"team,omitempty"`
	Year       int       `json:"year"`
	Week       Week      `json:"week"`
	Stats      StatLine  `json:"stats"`
	StoredAt   time.Time `json:"storedAt"`
}

// Key returns the record's primary key.
func (r StatRecord) Key() RecordKey {
	return RecordKey{PlayerKey: r.PlayerKey, Year: r.Year, Week: r.Week}
}

// Normalize fills the derived id and normalizes the position.
func (r *StatRecord) Normalize() {
	r.Position = NormalizePosition(r.Position)
	r.ID = r.Key().StorageKey()
}
