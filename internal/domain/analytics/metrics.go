// Package analytics derives aggregate views from merged raw stats.
package analytics

import (
	"sort"
	"strings"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/internal/domain/scoring"
	"github.com/okian/gridstat/internal/domain/statdefs"
)

// Metrics summarizes one stat over a set of observations. Zero observations
// count toward Total and TotalGames only.
type Metrics struct {
	Total       float64 `json:"total"`
	Average     float64 `json:"average"`
	Median      float64 `json:"median"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	GamesPlayed int     `json:"gamesPlayed"`
	TotalGames  int     `json:"totalGames"`
}

// StatMetrics aggregates raw observations.
func StatMetrics(values []float64) Metrics {
	m := Metrics{TotalGames: len(values)}
	played := make([]float64, 0, len(values))
	for _, v := range values {
		m.Total += v
		if v != 0 {
			played = append(played, v)
		}
	}
	m.GamesPlayed = len(played)
	if m.GamesPlayed == 0 {
		return m
	}

	m.Average = m.Total / float64(m.GamesPlayed)
	sort.Float64s(played)
	m.Min = played[0]
	m.Max = played[len(played)-1]
	mid := len(played) / 2
	if len(played)%2 == 0 {
		m.Median = (played[mid-1] + played[mid]) / 2
	} else {
		m.Median = played[mid]
	}
	return m
}

// FantasyStatMetrics converts every observation with rule, then aggregates
// like StatMetrics. Sums and means are rounded to 2 decimals.
func FantasyStatMetrics(values []float64, rule model.ScoringRule, negative bool) Metrics {
	converted := make([]float64, len(values))
	for i, v := range values {
		converted[i] = scoring.Convert(v, rule, negative)
	}
	m := StatMetrics(converted)
	m.Total = scoring.Round2(m.Total)
	m.Average = scoring.Round2(m.Average)
	m.Median = scoring.Round2(m.Median)
	return m
}

// Selection picks the weeks PlayerMetrics aggregates over.
type Selection struct {
	// Weeks lists regular weeks; empty means all of them.
	Weeks []model.Week
	// Total selects the season aggregate pseudo-week instead.
	Total bool
}

// SelectAll selects every regular week.
func SelectAll() Selection { return Selection{} }

// SelectTotal selects the season aggregate.
func SelectTotal() Selection { return Selection{Total: true} }

// SelectRange selects weeks from..to inclusive.
func SelectRange(from, to model.Week) Selection {
	var weeks []model.Week
	for w := from; w <= to; w++ {
		if w >= 1 && w <= model.MaxWeek {
			weeks = append(weeks, w)
		}
	}
	return Selection{Weeks: weeks}
}

// SelectionFromWeeks turns a parsed week list into a selection; a list
// holding the total selects the total.
func SelectionFromWeeks(weeks []model.Week) Selection {
	var regular []model.Week
	for _, w := range weeks {
		if w.IsTotal() {
			return SelectTotal()
		}
		regular = append(regular, w)
	}
	return Selection{Weeks: regular}
}

// ParseSelection parses a weeks argument: empty or "all" selects every
// regular week, "total" the season aggregate, otherwise a week list such
// as "1-4" or "1,3,5".
func ParseSelection(raw string) (Selection, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "all":
		return SelectAll(), nil
	case "total":
		return SelectTotal(), nil
	}
	weeks, err := model.ParseWeekList(raw)
	if err != nil {
		return Selection{}, err
	}
	return SelectionFromWeeks(weeks), nil
}

func (s Selection) weeks() []model.Week {
	switch {
	case s.Total:
		return []model.Week{model.WeekTotal}
	case len(s.Weeks) == 0:
		return model.AllWeeks()
	default:
		return s.Weeks
	}
}

// StatSummary is one stat's raw and fantasy aggregates for a player.
type StatSummary struct {
	StatID   string            `json:"statId"`
	Name     string            `json:"name"`
	Category statdefs.Category `json:"category,omitempty"`
	Raw      Metrics           `json:"raw"`
	Fantasy  *Metrics          `json:"fantasy,omitempty"`
}

// PlayerMetrics is the per-stat summary of one player over a selection.
type PlayerMetrics struct {
	Weeks         []model.Week  `json:"weeks"`
	Stats         []StatSummary `json:"stats"`
	FantasyPoints float64       `json:"fantasyPoints"`
}

// BuildPlayerMetrics aggregates every stat seen in the selected weeks that
// the record holds. rules may be nil, in which case no fantasy view is made.
func BuildPlayerMetrics(ws model.WeeklyStats, sel Selection, rules map[string]model.ScoringRule) PlayerMetrics {
	var present []model.Week
	ids := make(map[string]struct{})
	for _, w := range sel.weeks() {
		line, ok := ws[w]
		if !ok {
			continue
		}
		present = append(present, w)
		for id := range line {
			ids[id] = struct{}{}
		}
	}

	statIDs := make([]string, 0, len(ids))
	for id := range ids {
		statIDs = append(statIDs, id)
	}
	sort.Slice(statIDs, func(i, j int) bool { return statdefs.Less(statIDs[i], statIDs[j]) })

	out := PlayerMetrics{Weeks: present, Stats: make([]StatSummary, 0, len(statIDs))}
	for _, id := range statIDs {
		values := make([]float64, len(present))
		for i, w := range present {
			values[i] = ws[w][id]
		}
		summary := StatSummary{StatID: id, Name: statdefs.Name(id), Raw: StatMetrics(values)}
		if d, ok := statdefs.Lookup(id); ok {
			summary.Category = d.Category
		}
		if rule, ok := rules[id]; ok {
			f := FantasyStatMetrics(values, rule, statdefs.IsNegative(id))
			summary.Fantasy = &f
			out.FantasyPoints += f.Total
		}
		out.Stats = append(out.Stats, summary)
	}
	out.FantasyPoints = scoring.Round2(out.FantasyPoints)
	return out
}
