// Package scoring converts raw stat values into fantasy points.
package scoring

import (
	"math"

	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/internal/domain/statdefs"
)

// Option applies a configuration option to the RuleScorer.
type Option func(*RuleScorer)

// WithNegativeStats replaces the registry lookup deciding which stats are
// forced negative.
func WithNegativeStats(isNegative func(statID string) bool) Option {
	return func(s *RuleScorer) {
		if isNegative != nil {
			s.isNegative = isNegative
		}
	}
}

// Scorer computes fantasy points from raw stats.
type Scorer interface {
	// Points converts one stat value. Stats without a rule score zero.
	Points(statID string, value float64) float64
	// Total sums Points over a stat line.
	Total(line model.StatLine) float64
	// HasRule reports whether statID is scored.
	HasRule(statID string) bool
}

// RuleScorer implements Scorer over a league's rule set.
type RuleScorer struct {
	rules      map[string]model.ScoringRule
	isNegative func(string) bool
}

// New creates a scorer for rules. A nil map scores everything as zero.
func New(rules map[string]model.ScoringRule, opts ...Option) *RuleScorer {
	s := &RuleScorer{
		rules:      make(map[string]model.ScoringRule, len(rules)),
		isNegative: statdefs.IsNegative,
	}
	for id, r := range rules {
		s.rules[id] = r
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// HasRule reports whether statID is scored.
func (s *RuleScorer) HasRule(statID string) bool {
	_, ok := s.rules[statID]
	return ok
}

// Points converts one stat value.
func (s *RuleScorer) Points(statID string, value float64) float64 {
	rule, ok := s.rules[statID]
	if !ok {
		return 0
	}
	return Convert(value, rule, s.isNegative(statID))
}

// Total sums Points over line, rounded to 2 decimals.
func (s *RuleScorer) Total(line model.StatLine) float64 {
	var sum float64
	for id, v := range line {
		sum += s.Points(id, v)
	}
	return Round2(sum)
}

// Convert applies rule to v: base points, then a step bonus for every full
// multiple of each positive target reached. Negative stats never score
// above zero. The result is rounded to 2 decimals.
func Convert(v float64, rule model.ScoringRule, negative bool) float64 {
	pts := v * rule.Points
	for _, b := range rule.Bonuses {
		if b.Target > 0 && v >= b.Target {
			pts += math.Floor(v/b.Target) * b.Points
		}
	}
	if negative && pts > 0 {
		pts = -pts
	}
	return Round2(pts)
}

// Round2 rounds half away from zero at 2 decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
