package service

import (
	"context"
	"fmt"

	"github.com/okian/gridstat/internal/adapters/cache"
	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/domain/analytics"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

// Merge outcomes reported to metrics.
const (
	mergeComplete = "complete"
	mergeMerged   = "merged"
	mergeDegraded = "degraded"
	mergeEmpty    = "empty"
)

// Player returns the merged season record of one player. Weeks the store
// lacks are fetched in one backend call and merged in without touching the
// stored ones. The returned record only exposes weeks with at least one
// non-zero value.
//
// A backend failure returns whatever is cached; an error is returned only
// when nothing is.
func (s *Session) Player(ctx context.Context, key model.PlayerSliceKey) (model.PlayerYearRecord, error) {
	if err := s.begin(); err != nil {
		return model.PlayerYearRecord{}, err
	}
	if key.PlayerID == "" || key.Year <= 0 {
		return model.PlayerYearRecord{}, fmt.Errorf("%w: player and year are required", ErrInvalidQuery)
	}

	v, err := s.do(key.StorageKey(), func() (any, error) {
		return s.mergePlayer(ctx, key)
	})
	if err != nil {
		return model.PlayerYearRecord{}, err
	}
	rec := v.(model.PlayerYearRecord)
	rec.WeeklyStats = model.VisibleWeeks(rec.WeeklyStats)
	return rec, nil
}

func (s *Session) mergePlayer(ctx context.Context, key model.PlayerSliceKey) (model.PlayerYearRecord, error) {
	if s.players.IsLoaded(ctx, key) {
		if rec, _, ok := cache.Lookup[model.PlayerYearRecord](s.memory, key.StorageKey(), 0); ok {
			return rec, nil
		}
		if rec, err := s.svc.repo.PlayerYear(ctx, key); err == nil {
			s.memory.Set(key.StorageKey(), key.Year, rec)
			metrics.RecordMerge(mergeComplete, 0)
			return rec, nil
		}
		// The flag outlived its record.
		if err := s.players.Invalidate(ctx, key); err != nil {
			s.logger.Warn(ctx, "invalidate completion flag", logger.String("player", key.String()), logger.Error(err))
		}
	}

	var existing *model.PlayerYearRecord
	stored, err := s.svc.repo.PlayerYear(ctx, key)
	switch {
	case err == nil:
		existing = &stored
	case !repository.IsNotFound(err):
		s.logger.Warn(ctx, "store read failed, treating player as uncached",
			logger.String("player", key.String()), logger.Error(err))
	}

	var have model.WeeklyStats
	if existing != nil {
		have = existing.WeeklyStats
	}
	missing := model.MissingWeeks(have, s.svc.totalPolicy)
	if len(missing) == 0 {
		s.finishPlayer(ctx, key, *existing)
		metrics.RecordMerge(mergeComplete, 0)
		return *existing, nil
	}

	res, err := s.svc.backend.PlayerWeeks(ctx, key.PlayerID, key.Year, missing)
	if err != nil {
		metrics.RecordErrorByComponent(tierBackend, "player_weeks")
		if existing != nil {
			s.logger.Warn(ctx, "missing weeks unavailable, serving cached record",
				logger.String("player", key.String()),
				logger.Int("missing", len(missing)),
				logger.Error(err))
			metrics.RecordMerge(mergeDegraded, 0)
			s.memory.Set(key.StorageKey(), key.Year, *existing)
			return *existing, nil
		}
		metrics.RecordMerge(mergeEmpty, 0)
		return model.PlayerYearRecord{}, fmt.Errorf("fetch %s: %w", key, err)
	}

	incoming := res.Record
	incoming.PlayerID = key.PlayerID
	incoming.Year = key.Year
	incoming.Timestamp = s.svc.clock()
	merged := model.MergePlayerYear(existing, incoming)
	if merged.PlayerKey == "" {
		merged.PlayerKey = key.PlayerID
	}
	added := len(merged.WeeklyStats) - len(have)

	if err := s.svc.repo.PutPlayerYear(ctx, merged); err != nil {
		s.logger.Warn(ctx, "store write failed", logger.String("player", key.String()), logger.Error(err))
	} else if reread, err := s.svc.repo.PlayerYear(ctx, key); err == nil {
		merged = reread
	}
	metrics.RecordMerge(mergeMerged, added)

	s.finishPlayer(ctx, key, merged)
	return merged, nil
}

// finishPlayer caches rec and marks the slice complete once no required
// week is missing.
func (s *Session) finishPlayer(ctx context.Context, key model.PlayerSliceKey, rec model.PlayerYearRecord) {
	s.memory.Set(key.StorageKey(), key.Year, rec)
	if len(model.MissingWeeks(rec.WeeklyStats, s.svc.totalPolicy)) > 0 {
		return
	}
	if err := s.players.MarkLoaded(ctx, key); err != nil {
		s.logger.Warn(ctx, "completion flag write failed", logger.String("player", key.String()), logger.Error(err))
	}
}

// PlayerView is a player's merged record with its stat aggregates.
type PlayerView struct {
	Record   model.PlayerYearRecord  `json:"record"`
	LeagueID string                  `json:"leagueId,omitempty"`
	Metrics  analytics.PlayerMetrics `json:"metrics"`
}

// PlayerReport merges the player's season and aggregates the selected
// weeks. Fantasy aggregates use the league's rules when they can be had;
// without them only raw aggregates are returned.
func (s *Session) PlayerReport(ctx context.Context, key model.PlayerSliceKey, sel analytics.Selection, leagueID string) (PlayerView, error) {
	rec, err := s.Player(ctx, key)
	if err != nil {
		return PlayerView{}, err
	}

	view := PlayerView{Record: rec, LeagueID: s.leagueOr(leagueID)}
	var rules map[string]model.ScoringRule
	if view.LeagueID != "" {
		rs, err := s.Rules(ctx, view.LeagueID)
		if err != nil {
			s.logger.Warn(ctx, "scoring rules unavailable, raw metrics only",
				logger.String("league", view.LeagueID), logger.Error(err))
			view.LeagueID = ""
		} else {
			rules = rs.Rules
		}
	}
	view.Metrics = analytics.BuildPlayerMetrics(rec.WeeklyStats, sel, rules)
	return view, nil
}
