// Package service wires the stats cache: the persistent store, the backend,
// the warm queue and the registry of sessions that own the in-memory state.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/gridstat/internal/adapters/backend"
	warmqueue "github.com/okian/gridstat/internal/adapters/mq/queue"
	workerpool "github.com/okian/gridstat/internal/adapters/mq/worker"
	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
	"github.com/okian/gridstat/pkg/metrics"
)

// Default service configuration constants.
const (
	DefaultSessionID = "default"

	defaultStatsTTL    = 60 * time.Minute
	defaultRulesTTL    = 24 * time.Hour
	defaultRankingsTTL = 24 * time.Hour
	defaultMemorySize  = 4096
	defaultQueueSize   = 1024
	defaultSessionIdle = 30 * time.Minute
	minSweepInterval   = time.Second
)

// Backend is the remote data source behind the cache.
type Backend interface {
	Stats(ctx context.Context, q backend.StatsQuery) ([]model.StatRecord, error)
	Players(ctx context.Context, q backend.PageQuery) (backend.PlayersPage, error)
	PlayerWeeks(ctx context.Context, playerID string, year int, weeks []model.Week) (backend.PlayerWeeks, error)
	ScoringRules(ctx context.Context, leagueID string) (map[string]model.ScoringRule, error)
}

// Service owns the shared infrastructure and the session registry.
type Service struct {
	mu sync.RWMutex

	// Core components
	repo       *repository.Repository
	backend    Backend
	warmQueue  *warmqueue.InMemoryQueue
	workerPool *workerpool.Pool
	sessions   map[string]*Session

	// Configuration
	storeSettings repository.Settings
	storeOptions  []repository.Option
	statsTTL      time.Duration
	rulesTTL      time.Duration
	rankingsTTL   time.Duration
	memorySize    int
	totalPolicy   model.TotalPolicy
	workerCount   int
	queueSize     int
	sessionIdle   time.Duration
	defaultLeague string
	clock         func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:    make(map[string]*Session),
		statsTTL:    defaultStatsTTL,
		rulesTTL:    defaultRulesTTL,
		rankingsTTL: defaultRankingsTTL,
		memorySize:  defaultMemorySize,
		totalPolicy: model.TotalIndependent,
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
		sessionIdle: defaultSessionIdle,
		clock:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store when needed, starts the warm workers and creates
// the default session.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.backend == nil {
		return ErrNoBackend
	}

	s.logger.Info(ctx, "starting stats service...")

	if s.repo == nil {
		store, err := repository.Open(ctx, s.storeSettings, s.storeOptions...)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.repo = repository.New(store)
	}

	def, err := s.newSessionLocked(DefaultSessionID)
	if err != nil {
		return err
	}
	s.sessions[DefaultSessionID] = def

	s.warmQueue = warmqueue.NewInMemoryQueue(warmqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.warmQueue, workerpool.WarmerFunc(s.warm))
	s.workerPool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweepLoop()

	s.started = true
	metrics.UpdateSessionsActive(len(s.sessions))
	s.logger.Info(ctx, "stats service started",
		logger.String("store", storeDriver(s.storeSettings)),
		logger.Int("workers", s.workerPool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("totalPolicy", string(s.totalPolicy)),
	)
	return nil
}

func storeDriver(settings repository.Settings) string {
	if settings.Driver == "" {
		return repository.DriverMemory
	}
	return settings.Driver
}

// Stop drains the warm workers, closes every session and the store.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	pool := s.workerPool
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping stats service...")

	s.wg.Wait()
	if pool != nil {
		if err := pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
		}
	}
	for _, sess := range sessions {
		sess.close()
	}
	metrics.UpdateSessionsActive(0)

	if err := s.repo.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.logger.Info(ctx, "stats service stopped")
}

// Repository returns the typed store.
func (s *Service) Repository() *repository.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

// NewSession creates a session with its own memory tier and completion
// flags.
func (s *Service) NewSession(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	sess, err := s.newSessionLocked(uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.sessions[sess.id] = sess
	metrics.UpdateSessionsActive(len(s.sessions))
	s.logger.Debug(ctx, "session created", logger.String("session", sess.id))
	return sess, nil
}

func (s *Service) newSessionLocked(id string) (*Session, error) {
	return newSession(id, s)
}

// Session returns an open session. An empty id selects the default session.
func (s *Service) Session(id string) (*Session, error) {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// CloseSession closes and forgets a session. The default session is only
// reset, never removed.
func (s *Service) CloseSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.close()
	if id == DefaultSessionID {
		fresh, err := s.newSessionLocked(DefaultSessionID)
		if err != nil {
			return err
		}
		s.sessions[id] = fresh
	} else {
		delete(s.sessions, id)
	}
	metrics.UpdateSessionsActive(len(s.sessions))
	s.logger.Debug(ctx, "session closed", logger.String("session", id))
	return nil
}

// SessionIDs lists the open sessions.
func (s *Service) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) sweepLoop() {
	defer s.wg.Done()
	interval := s.sessionIdle / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.ExpireIdleSessions(context.Background())
		}
	}
}

// ExpireIdleSessions closes sessions idle past the configured window and
// returns how many were closed. The default session never expires.
func (s *Service) ExpireIdleSessions(ctx context.Context) int {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if id == DefaultSessionID {
			continue
		}
		if now.Sub(sess.LastUsed()) > s.sessionIdle {
			sess.close()
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 {
		metrics.UpdateSessionsActive(len(s.sessions))
		s.logger.Info(ctx, "expired idle sessions", logger.Int("count", n))
	}
	return n
}

// ClearYear removes everything cached for year from the store and from
// every session.
func (s *Service) ClearYear(ctx context.Context, year int) (int, error) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return 0, ErrNotStarted
	}
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	repo := s.repo
	s.mu.RUnlock()

	for _, sess := range sessions {
		sess.forgetYear(year)
	}
	n, err := repo.ClearYear(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("clear year %d: %w", year, err)
	}
	s.logger.Info(ctx, "cleared year", logger.Int("year", year), logger.Int("records", n))
	return n, nil
}

// WarmRequest names the slices to prefetch.
type WarmRequest struct {
	SessionID string
	Year      int
	Weeks     []model.Week
	Positions []string
}

// Warm enqueues one job per (week, position) and returns the job ids. Jobs
// that do not fit the queue are reported through the error.
func (s *Service) Warm(ctx context.Context, req WarmRequest) ([]string, error) {
	s.mu.RLock()
	q := s.warmQueue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, ErrNotStarted
	}
	if req.Year <= 0 || len(req.Weeks) == 0 {
		return nil, fmt.Errorf("%w: year and weeks are required", ErrInvalidQuery)
	}
	positions := req.Positions
	if len(positions) == 0 {
		positions = []string{model.PositionAll}
	}

	var ids []string
	now := s.clock()
	for _, w := range req.Weeks {
		if !w.Valid() {
			return ids, fmt.Errorf("%w: week %d", ErrInvalidQuery, w)
		}
		for _, pos := range positions {
			job := model.WarmJob{
				ID:         uuid.NewString(),
				SessionID:  req.SessionID,
				Year:       req.Year,
				Week:       w,
				Position:   model.NormalizePosition(pos),
				EnqueuedAt: now,
			}
			if err := q.Enqueue(ctx, job); err != nil {
				return ids, fmt.Errorf("enqueue %s: %w", job.Slice(), err)
			}
			ids = append(ids, job.ID)
		}
	}
	return ids, nil
}

// warm runs one job on its session, or the default session when the
// original one is gone.
func (s *Service) warm(ctx context.Context, job model.WarmJob) error {
	sess, err := s.Session(job.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		sess, err = s.Session(DefaultSessionID)
	}
	if err != nil {
		return err
	}
	_, err = sess.Stats(ctx, backend.StatsQuery{Year: job.Year, Week: job.Week, Position: job.Position})
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"store":       storeDriver(s.storeSettings),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"totalPolicy": string(s.totalPolicy),
		"statsTTL":    s.statsTTL.String(),
		"rulesTTL":    s.rulesTTL.String(),
	}
	if !s.started {
		return stats
	}

	memoryEntries := 0
	for _, sess := range s.sessions {
		memoryEntries += sess.memory.Len()
	}
	queueLen := s.warmQueue.Len()
	stats["sessions"] = len(s.sessions)
	stats["memoryEntries"] = memoryEntries
	stats["queueLength"] = queueLen
	stats["busyWorkers"] = s.workerPool.Busy()

	counts, err := s.repo.Counts(ctx)
	if err != nil {
		s.logger.Warn(ctx, "store counts failed", logger.Error(err))
	} else {
		stats["records"] = counts
		for c, n := range counts {
			metrics.UpdateStoreRecords(c, n)
		}
	}

	metrics.UpdateMemoryEntries(memoryEntries)
	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateSessionsActive(len(s.sessions))
	s.workerPool.UpdateMetrics()

	return stats
}
