package model

import "time"

// PlayerYearRecord is the merged season view of one player.
type PlayerYearRecord struct {
	PlayerKey   string      `json:"playerKey"`
	PlayerID    string      `json:"playerId"`
	Year        int         `json:"year"`
	Name        string      `json:"name"`
	Position    string      `json:"position"`
	Team        string      `json:"team"`
	Rank        int         `json:"rank"`
	WeeklyStats WeeklyStats `json:"weeklyStats"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Key returns the (player, year) slice this record belongs to.
func (r PlayerYearRecord) Key() PlayerSliceKey {
	return PlayerSliceKey{PlayerID: r.PlayerID, Year: r.Year}
}

// PlayerSummary is one row of the paged player listing.
type PlayerSummary struct {
	PlayerKey     string  `json:"playerKey"`
	PlayerID      string  `json:"playerId"`
	Name          string  `json:"name"`
	Position      string  `json:"position"`
	Team          string  `json:"team"`
	Rank          int     `json:"rank"`
	FantasyPoints float64 `json:"fantasyPoints"`
}

// PlayerPage is a stored page of the player listing.
type PlayerPage struct {
	Key      string          `json:"key"`
	Year     int             `json:"year"`
	Count    int             `json:"count"`
	Players  []PlayerSummary `json:"players"`
	StoredAt time.Time       `json:"storedAt"`
}

// Bonus awards Points once per full multiple of Target.
type Bonus struct {
	Target float64 `json:"target"`
	Points float64 `json:"points"`
}

// ScoringRule converts one stat into fantasy points.
type ScoringRule struct {
	Points  float64 `json:"points"`
	Bonuses []Bonus `json:"bonuses,omitempty"`
}

// ScoringRuleSet is a league's stat-id to rule mapping.
type ScoringRuleSet struct {
	LeagueID  string                 `json:"leagueId"`
	Rules     map[string]ScoringRule `json:"rules"`
	Timestamp time.Time              `json:"timestamp"`
}

// RankingEntry is one player's standing within a league season.
type RankingEntry struct {
	PlayerID      string    `json:"playerId"`
	PlayerName    string    `json:"playerName,omitempty"`
	LeagueID      string    `json:"leagueId"`
	Year          int       `json:"year"`
	OverallRank   int       `json:"overallRank"`
	PositionRank  int       `json:"positionRank"`
	Position      string    `json:"position"`
	FantasyPoints float64   `json:"fantasyPoints"`
	Timestamp     time.Time `json:"timestamp"`
}

// Key returns the league season the entry belongs to.
func (e RankingEntry) Key() LeagueYearKey {
	return LeagueYearKey{LeagueID: e.LeagueID, Year: e.Year}
}

// CompletionFlag marks a slice as authoritative locally.
type CompletionFlag struct {
	Key      string    `json:"key"`
	Year     int       `json:"year"`
	LoadedAt time.Time `json:"loadedAt"`
}
