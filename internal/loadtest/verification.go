package loadtest

import (
	"context"
	"fmt"

	"github.com/okian/gridstat/pkg/logger"
)

const topN = 10

// verifyRankings checks that entries are ordered by points, ties broken by
// player id, and that overall and position ranks are ordinal.
func verifyRankings(entries []Entry) error {
	if len(entries) == 0 {
		return ErrNoRankings
	}

	positionSeen := make(map[string]int)
	for i, e := range entries {
		if e.OverallRank != i+1 {
			return fmt.Errorf("%w: entry %d (%s) has overall rank %d", ErrRankingOrder, i, e.PlayerID, e.OverallRank)
		}
		positionSeen[e.Position]++
		if e.PositionRank != positionSeen[e.Position] {
			return fmt.Errorf("%w: %s has %s rank %d, want %d",
				ErrRankingOrder, e.PlayerID, e.Position, e.PositionRank, positionSeen[e.Position])
		}
		if i == 0 {
			continue
		}
		prev := entries[i-1]
		switch {
		case e.FantasyPoints > prev.FantasyPoints:
			return fmt.Errorf("%w: %s (%.2f) ranks below %s (%.2f)",
				ErrRankingOrder, e.PlayerID, e.FantasyPoints, prev.PlayerID, prev.FantasyPoints)
		case e.FantasyPoints == prev.FantasyPoints && e.PlayerID < prev.PlayerID:
			return fmt.Errorf("%w: tie between %s and %s not ordered by player id",
				ErrRankingOrder, prev.PlayerID, e.PlayerID)
		}
	}
	return nil
}

// verifyResults checks the rankings and logs the leaders.
func verifyResults(ctx context.Context, config *Config, rankings []Entry) error {
	log := logger.Get().Named("loadtest")
	if err := verifyRankings(rankings); err != nil {
		return err
	}
	log.Info(ctx, "rankings order verified", logger.Int("entries", len(rankings)))

	if config.Verbose {
		for _, e := range topPerformers(rankings, topN) {
			log.Info(ctx, "top performer",
				logger.Int("rank", e.OverallRank),
				logger.String("player", e.PlayerID),
				logger.String("name", e.PlayerName),
				logger.String("position", e.Position),
				logger.Float64("points", e.FantasyPoints))
		}
	}
	return nil
}
