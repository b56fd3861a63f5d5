package analytics

import (
	"sort"
	"time"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/internal/domain/scoring"
)

type playerTotal struct {
	id       string
	name     string
	position string
	points   float64
}

// Rankings totals fantasy points per player over records and assigns
// overall and per-position ranks. Equal totals are ordered by player id,
// and ranks are ordinal: [A:10, B:10, C:5] ranks 1, 2, 3.
func Rankings(records []model.StatRecord, scorer scoring.Scorer, leagueID string, year int, now time.Time) []model.RankingEntry {
	byPlayer := make(map[string]*playerTotal)
	for _, rec := range records {
		pt, ok := byPlayer[rec.PlayerKey]
		if !ok {
			pt = &playerTotal{id: rec.PlayerKey, name: rec.PlayerName, position: model.NormalizePosition(rec.Position)}
			byPlayer[rec.PlayerKey] = pt
		}
		for id, v := range rec.Stats {
			pt.points += scorer.Points(id, v)
		}
	}

	totals := make([]*playerTotal, 0, len(byPlayer))
	for _, pt := range byPlayer {
		pt.points = scoring.Round2(pt.points)
		totals = append(totals, pt)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].points != totals[j].points {
			return totals[i].points > totals[j].points
		}
		return totals[i].id < totals[j].id
	})

	entries := make([]model.RankingEntry, len(totals))
	positionSeen := make(map[string]int)
	for i, pt := range totals {
		positionSeen[pt.position]++
		entries[i] = model.RankingEntry{
			PlayerID:      pt.id,
			PlayerName:    pt.name,
			LeagueID:      leagueID,
			Year:          year,
			OverallRank:   i + 1,
			PositionRank:  positionSeen[pt.position],
			Position:      pt.position,
			FantasyPoints: pt.points,
			Timestamp:     now,
		}
	}
	return entries
}
