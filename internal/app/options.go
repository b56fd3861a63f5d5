package service

import (
	"time"

	"github.com/okian/gridstat/internal/adapters/repository"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithBackend sets the backend the cache falls through to.
func WithBackend(b Backend) Option {
	return func(s *Service) {
		if b != nil {
			s.backend = b
		}
	}
}

// WithRepository uses an already opened repository instead of opening one
// from the store settings on Start.
func WithRepository(r *repository.Repository) Option {
	return func(s *Service) {
		if r != nil {
			s.repo = r
		}
	}
}

// WithStoreSettings selects the persistent store opened on Start.
func WithStoreSettings(settings repository.Settings, opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeSettings = settings
		s.storeOptions = opts
	}
}

// WithStatsTTL sets the freshness window of stat slices and listing pages.
func WithStatsTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.statsTTL = d
		}
	}
}

// WithRulesTTL sets the freshness window of scoring rules.
func WithRulesTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.rulesTTL = d
		}
	}
}

// WithRankingsTTL sets the freshness window of stored rankings.
func WithRankingsTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.rankingsTTL = d
		}
	}
}

// WithMemoryCacheSize bounds each session's memory tier.
func WithMemoryCacheSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.memorySize = size
		}
	}
}

// WithTotalPolicy sets whether the season total counts toward completeness.
func WithTotalPolicy(p model.TotalPolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.totalPolicy = p
		}
	}
}

// WithWorkerCount sets the number of warm workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the warm queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithSessionIdleTimeout closes sessions unused for longer than d.
func WithSessionIdleTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionIdle = d
		}
	}
}

// WithDefaultLeague sets the league newly created sessions start with.
func WithDefaultLeague(leagueID string) Option {
	return func(s *Service) {
		s.defaultLeague = leagueID
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}
