package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/cache"
	"github.com/okian/gridstat/internal/domain/analytics"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/internal/domain/scoring"
	"github.com/okian/gridstat/internal/domain/statdefs"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

// Rankings returns a league season's rankings, recalculating them when
// the stored ones are older than the rankings window.
func (s *Session) Rankings(ctx context.Context, leagueID string, year int) ([]model.RankingEntry, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	key, err := s.rankingKey(leagueID, year)
	if err != nil {
		return nil, err
	}

	ttl := s.svc.rankingsTTL
	if entries, _, ok := cache.Lookup[[]model.RankingEntry](s.memory, key.StorageKey(), ttl); ok {
		return entries, nil
	}

	entries, err := s.svc.repo.Rankings(ctx, key)
	switch {
	case err != nil:
		s.logger.Warn(ctx, "store read failed, recalculating rankings",
			logger.String("league", key.String()), logger.Error(err))
	case len(entries) > 0 && s.fresh(entries[0].Timestamp, ttl):
		metrics.RecordCacheLookup(tierStore, true)
		s.memory.SetAt(key.StorageKey(), key.Year, entries, entries[0].Timestamp)
		return entries, nil
	}
	metrics.RecordCacheLookup(tierStore, false)

	return s.recalculate(ctx, key)
}

// RecalculateRankings scores the season totals of every player with the
// league's rules and bulk-replaces the stored rankings.
func (s *Session) RecalculateRankings(ctx context.Context, leagueID string, year int) ([]model.RankingEntry, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	key, err := s.rankingKey(leagueID, year)
	if err != nil {
		return nil, err
	}
	return s.recalculate(ctx, key)
}

func (s *Session) rankingKey(leagueID string, year int) (model.LeagueYearKey, error) {
	leagueID = s.leagueOr(leagueID)
	if leagueID == "" || year <= 0 {
		return model.LeagueYearKey{}, fmt.Errorf("%w: league and year are required", ErrInvalidQuery)
	}
	return model.LeagueYearKey{LeagueID: leagueID, Year: year}, nil
}

func (s *Session) recalculate(ctx context.Context, key model.LeagueYearKey) ([]model.RankingEntry, error) {
	v, err := s.do("rankings|"+key.StorageKey(), func() (any, error) {
		start := time.Now()

		rules, err := s.Rules(ctx, key.LeagueID)
		if err != nil {
			return nil, err
		}
		totals, err := s.Stats(ctx, backend.StatsQuery{Year: key.Year, Week: model.WeekTotal, Position: model.PositionAll})
		if err != nil {
			return nil, err
		}

		scorer := scoring.New(rules.Rules, scoring.WithNegativeStats(statdefs.IsNegative))
		entries := analytics.Rankings(totals, scorer, key.LeagueID, key.Year, s.svc.clock())
		if err := s.svc.repo.ReplaceRankings(ctx, key, entries); err != nil {
			s.logger.Warn(ctx, "store write failed", logger.String("league", key.String()), logger.Error(err))
		}
		s.memory.Set(key.StorageKey(), key.Year, entries)

		metrics.RecordRankingRecalculation(time.Since(start).Seconds())
		s.logger.Debug(ctx, "rankings recalculated",
			logger.String("league", key.String()),
			logger.Int("players", len(entries)))
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.RankingEntry), nil
}
