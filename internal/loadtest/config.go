// Package loadtest drives a running gridstat server with concurrent reads
// and checks the rankings it serves.
package loadtest

import (
	"time"

	"github.com/okian/gridstat/internal/domain/model"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Year      int           // Season to read
	Weeks     []model.Week  // Weeks to read per round
	Positions []string      // Positions to read per round
	League    string        // League whose rankings are checked; empty skips the check
	Rounds    int           // Times every slice is read
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	Warm      bool          // Enqueue a warm request before reading
	Verbose   bool          // Enable per-request logging
}

// Entry is one ranking entry as served over HTTP.
type Entry struct {
	PlayerID      string  `json:"playerId"`
	PlayerName    string  `json:"playerName"`
	Position      string  `json:"position"`
	OverallRank   int     `json:"overallRank"`
	PositionRank  int     `json:"positionRank"`
	FantasyPoints float64 `json:"fantasyPoints"`
}

type rankingsResponse struct {
	Count int     `json:"count"`
	Data  []Entry `json:"data"`
}

type sliceResponse struct {
	Count int `json:"count"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

// Stats holds run statistics.
type Stats struct {
	SlicesRequested int
	SlicesOK        int
	SlicesFailed    int
	RecordsRead     int
	RankingEntries  int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
