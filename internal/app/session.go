package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/cache"
	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/domain/completion"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

const (
	tierStore   = "store"
	tierBackend = "backend"

	defaultPageLimit = 50
	maxPageLimit     = 500
)

// Session owns the state one client works with: the memory tier, the
// in-memory completion flags, the in-flight request groups and the
// selected league. The store and backend are shared through the Service.
type Session struct {
	id  string
	svc *Service

	memory  *cache.Memory
	slices  *completion.Tracker[model.SliceKey]
	players *completion.Tracker[model.PlayerSliceKey]
	pages   *completion.Tracker[model.PageKey]
	flight  singleflight.Group

	mu     sync.RWMutex
	league string

	lastUsed atomic.Int64
	closed   atomic.Bool

	logger logger.Logger
}

func newSession(id string, svc *Service) (*Session, error) {
	mem, err := cache.NewMemory(svc.memorySize, cache.WithClock(svc.clock))
	if err != nil {
		return nil, fmt.Errorf("session memory tier: %w", err)
	}
	trackerOpts := []completion.Option{
		completion.WithNotFound(repository.IsNotFound),
		completion.WithClock(svc.clock),
	}
	sess := &Session{
		id:      id,
		svc:     svc,
		memory:  mem,
		slices:  completion.New[model.SliceKey](svc.repo, trackerOpts...),
		players: completion.New[model.PlayerSliceKey](svc.repo, trackerOpts...),
		pages:   completion.New[model.PageKey](svc.repo, trackerOpts...),
		league:  svc.defaultLeague,
		logger:  svc.logger.Named("session"),
	}
	sess.touch()
	return sess, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// League returns the selected league.
func (s *Session) League() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.league
}

// SelectLeague sets the league used when a call names none.
func (s *Session) SelectLeague(leagueID string) {
	s.mu.Lock()
	s.league = leagueID
	s.mu.Unlock()
	s.touch()
}

func (s *Session) leagueOr(leagueID string) string {
	if leagueID != "" {
		return leagueID
	}
	return s.League()
}

// LastUsed returns when the session last served a call.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch() {
	s.lastUsed.Store(s.svc.clock().UnixNano())
}

func (s *Session) close() {
	if s.closed.CompareAndSwap(false, true) {
		s.memory.Purge()
	}
}

func (s *Session) begin() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.touch()
	return nil
}

func (s *Session) forgetYear(year int) {
	s.memory.RemoveYear(year)
	s.slices.ForgetYear(year)
	s.players.ForgetYear(year)
	s.pages.ForgetYear(year)
}

func (s *Session) fresh(at time.Time, ttl time.Duration) bool {
	return !at.IsZero() && s.svc.clock().Sub(at) < ttl
}

// do runs fn once per key among concurrent callers.
func (s *Session) do(key string, fn func() (any, error)) (any, error) {
	v, err, shared := s.flight.Do(key, fn)
	if shared {
		metrics.RecordInflightShared()
	}
	return v, err
}

// Stats returns the stat records of a (year, week, position) slice through
// the memory tier, the store and the backend, in that order.
func (s *Session) Stats(ctx context.Context, q backend.StatsQuery) ([]model.StatRecord, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	if q.Year <= 0 || !q.Week.Valid() {
		return nil, fmt.Errorf("%w: year %d week %d", ErrInvalidQuery, q.Year, q.Week)
	}
	q.Position = model.NormalizePosition(q.Position)
	key := q.Slice()

	v, err := s.do(key.StorageKey(), func() (any, error) {
		return s.loadStats(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.StatRecord), nil
}

func (s *Session) loadStats(ctx context.Context, q backend.StatsQuery, key model.SliceKey) ([]model.StatRecord, error) {
	ttl := s.svc.statsTTL
	if recs, _, ok := cache.Lookup[[]model.StatRecord](s.memory, key.StorageKey(), ttl); ok {
		return recs, nil
	}

	if at, ok := s.slices.LoadedAt(ctx, key); ok && s.fresh(at, ttl) {
		recs, err := s.svc.repo.StatsForSlice(ctx, key)
		if err == nil {
			metrics.RecordCacheLookup(tierStore, true)
			s.memory.SetAt(key.StorageKey(), key.Year, recs, at)
			return recs, nil
		}
		s.logger.Warn(ctx, "store read failed, fetching from backend",
			logger.String("slice", key.String()), logger.Error(err))
	}
	metrics.RecordCacheLookup(tierStore, false)

	recs, err := s.svc.backend.Stats(ctx, q)
	if isNoData(err) {
		return []model.StatRecord{}, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent(tierBackend, "stats")
		return nil, fmt.Errorf("fetch %s: %w", key, err)
	}
	now := s.svc.clock()
	for i := range recs {
		recs[i].StoredAt = now
	}
	if err := s.svc.repo.PutStats(ctx, recs); err != nil {
		s.logger.Warn(ctx, "store write failed", logger.String("slice", key.String()), logger.Error(err))
	} else if err := s.slices.MarkLoaded(ctx, key); err != nil {
		s.logger.Warn(ctx, "completion flag write failed", logger.String("slice", key.String()), logger.Error(err))
	}
	s.memory.Set(key.StorageKey(), key.Year, recs)
	return recs, nil
}

// Players returns one page of the player listing.
func (s *Session) Players(ctx context.Context, q backend.PageQuery) (model.PlayerPage, error) {
	if err := s.begin(); err != nil {
		return model.PlayerPage{}, err
	}
	if q.Year <= 0 || !q.Week.Valid() {
		return model.PlayerPage{}, fmt.Errorf("%w: year %d week %d", ErrInvalidQuery, q.Year, q.Week)
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageLimit
	}
	if q.Limit > maxPageLimit {
		q.Limit = maxPageLimit
	}
	q.Position = model.NormalizePosition(q.Position)
	key := q.Key()

	v, err := s.do(key.StorageKey(), func() (any, error) {
		return s.loadPage(ctx, q, key)
	})
	if err != nil {
		return model.PlayerPage{}, err
	}
	return v.(model.PlayerPage), nil
}

func (s *Session) loadPage(ctx context.Context, q backend.PageQuery, key model.PageKey) (model.PlayerPage, error) {
	ttl := s.svc.statsTTL
	if p, _, ok := cache.Lookup[model.PlayerPage](s.memory, key.StorageKey(), ttl); ok {
		return p, nil
	}

	if at, ok := s.pages.LoadedAt(ctx, key); ok && s.fresh(at, ttl) {
		p, err := s.svc.repo.Page(ctx, key)
		if err == nil {
			metrics.RecordCacheLookup(tierStore, true)
			s.memory.SetAt(key.StorageKey(), key.SeasonYear(), p, at)
			return p, nil
		}
		if !repository.IsNotFound(err) {
			s.logger.Warn(ctx, "store read failed, fetching from backend",
				logger.String("page", key.String()), logger.Error(err))
		}
	}
	metrics.RecordCacheLookup(tierStore, false)

	res, err := s.svc.backend.Players(ctx, q)
	if isNoData(err) {
		return model.PlayerPage{Key: key.StorageKey(), Year: key.SeasonYear(), Players: []model.PlayerSummary{}}, nil
	}
	if err != nil {
		metrics.RecordErrorByComponent(tierBackend, "players")
		return model.PlayerPage{}, fmt.Errorf("fetch %s: %w", key, err)
	}
	page := model.PlayerPage{
		Key:      key.StorageKey(),
		Year:     key.SeasonYear(),
		Count:    res.Count,
		Players:  res.Players,
		StoredAt: s.svc.clock(),
	}
	if err := s.svc.repo.PutPage(ctx, page); err != nil {
		s.logger.Warn(ctx, "store write failed", logger.String("page", key.String()), logger.Error(err))
	} else if err := s.pages.MarkLoaded(ctx, key); err != nil {
		s.logger.Warn(ctx, "completion flag write failed", logger.String("page", key.String()), logger.Error(err))
	}
	s.memory.Set(key.StorageKey(), key.SeasonYear(), page)
	return page, nil
}

func rulesCacheKey(leagueID string) string {
	return "rules|" + leagueID
}

// Rules returns the scoring rules of a league; an empty id selects the
// session's league. Stored rules older than the rules window count as
// absent.
func (s *Session) Rules(ctx context.Context, leagueID string) (model.ScoringRuleSet, error) {
	if err := s.begin(); err != nil {
		return model.ScoringRuleSet{}, err
	}
	leagueID = s.leagueOr(leagueID)
	if leagueID == "" {
		return model.ScoringRuleSet{}, fmt.Errorf("%w: league is required", ErrInvalidQuery)
	}

	v, err := s.do(rulesCacheKey(leagueID), func() (any, error) {
		return s.loadRules(ctx, leagueID)
	})
	if err != nil {
		return model.ScoringRuleSet{}, err
	}
	return v.(model.ScoringRuleSet), nil
}

func (s *Session) loadRules(ctx context.Context, leagueID string) (model.ScoringRuleSet, error) {
	ttl := s.svc.rulesTTL
	key := rulesCacheKey(leagueID)
	if rs, _, ok := cache.Lookup[model.ScoringRuleSet](s.memory, key, ttl); ok {
		return rs, nil
	}

	rs, err := s.svc.repo.RuleSet(ctx, leagueID)
	switch {
	case err == nil && s.fresh(rs.Timestamp, ttl):
		metrics.RecordCacheLookup(tierStore, true)
		s.memory.SetAt(key, 0, rs, rs.Timestamp)
		return rs, nil
	case err != nil && !repository.IsNotFound(err):
		s.logger.Warn(ctx, "store read failed, fetching from backend",
			logger.String("league", leagueID), logger.Error(err))
	}
	metrics.RecordCacheLookup(tierStore, false)

	rules, err := s.svc.backend.ScoringRules(ctx, leagueID)
	if err != nil {
		metrics.RecordErrorByComponent(tierBackend, "scoring_rules")
		return model.ScoringRuleSet{}, fmt.Errorf("fetch rules %s: %w", leagueID, err)
	}
	rs = model.ScoringRuleSet{LeagueID: leagueID, Rules: rules, Timestamp: s.svc.clock()}
	if err := s.svc.repo.PutRuleSet(ctx, rs); err != nil {
		s.logger.Warn(ctx, "store write failed", logger.String("league", leagueID), logger.Error(err))
	}
	s.memory.Set(key, 0, rs)
	return rs, nil
}

// isNoData reports backend answers that mean "nothing there". Such answers
// are returned as empty results and never cached.
func isNoData(err error) bool {
	return errors.Is(err, backend.ErrNoData)
}
