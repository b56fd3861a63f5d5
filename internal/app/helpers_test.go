package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/repository"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
	"github.com/okian/gridstat/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errBackendDown = errors.New("backend down")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *testClock {
	return &testClock{now: time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeBackend counts calls per endpoint and serves canned data.
type fakeBackend struct {
	mu sync.Mutex

	statsCalls  int
	pageCalls   int
	playerCalls int
	rulesCalls  int

	stats       map[model.SliceKey][]model.StatRecord
	statsErr    error
	playerWeeks func(playerID string, year int, weeks []model.Week) (backend.PlayerWeeks, error)
	lastWeeks   []model.Week
	rules       map[string]map[string]model.ScoringRule

	// gate, when set, holds Stats until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
	// playerGate and rulesGate hold PlayerWeeks and ScoringRules the same way.
	playerGate chan struct{}
	rulesGate  chan struct{}
}

func hold(gate, entered chan struct{}) {
	if gate == nil {
		return
	}
	if entered != nil {
		entered <- struct{}{}
	}
	<-gate
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		stats: make(map[model.SliceKey][]model.StatRecord),
		rules: map[string]map[string]model.ScoringRule{
			"L1": {
				"4": {Points: 0.04},
				"5": {Points: 4},
				"6": {Points: 2},
				"9": {Points: 0.1, Bonuses: []model.Bonus{{Target: 100, Points: 3}}},
			},
		},
	}
}

func (f *fakeBackend) Stats(ctx context.Context, q backend.StatsQuery) ([]model.StatRecord, error) {
	f.mu.Lock()
	f.statsCalls++
	gate, entered := f.gate, f.entered
	err := f.statsErr
	recs, ok := f.stats[q.Slice()]
	f.mu.Unlock()

	hold(gate, entered)
	if err != nil {
		return nil, err
	}
	if !ok {
		recs = []model.StatRecord{{PlayerKey: "p1", PlayerName: "Alpha", Position: "QB", Stats: model.StatLine{"4": 250}}}
	}
	out := make([]model.StatRecord, len(recs))
	for i, r := range recs {
		r.Year, r.Week = q.Year, q.Week
		r.Stats = r.Stats.Clone()
		out[i] = r
	}
	return out, nil
}

func (f *fakeBackend) Players(ctx context.Context, q backend.PageQuery) (backend.PlayersPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	return backend.PlayersPage{Count: 1, Players: []model.PlayerSummary{{PlayerKey: "p1", Name: "Alpha", Position: "QB", FantasyPoints: 10}}}, nil
}

func (f *fakeBackend) PlayerWeeks(ctx context.Context, playerID string, year int, weeks []model.Week) (backend.PlayerWeeks, error) {
	f.mu.Lock()
	f.playerCalls++
	f.lastWeeks = append([]model.Week(nil), weeks...)
	fn := f.playerWeeks
	gate, entered := f.playerGate, f.entered
	f.mu.Unlock()

	hold(gate, entered)
	if fn == nil {
		return backend.PlayerWeeks{}, backend.ErrNoData
	}
	return fn(playerID, year, weeks)
}

func (f *fakeBackend) ScoringRules(ctx context.Context, leagueID string) (map[string]model.ScoringRule, error) {
	f.mu.Lock()
	f.rulesCalls++
	rules, ok := f.rules[leagueID]
	gate, entered := f.rulesGate, f.entered
	f.mu.Unlock()

	hold(gate, entered)
	if !ok {
		return nil, backend.ErrNoData
	}
	return rules, nil
}

func (f *fakeBackend) calls() (stats, pages, players, rules int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statsCalls, f.pageCalls, f.playerCalls, f.rulesCalls
}

func (f *fakeBackend) requestedWeeks() []model.Week {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWeeks
}

// fullSeason answers every requested week with one rushing line; week w
// carries 10*w yards and the total carries 1710.
func fullSeason(playerID string, year int, weeks []model.Week) (backend.PlayerWeeks, error) {
	ws := model.WeeklyStats{}
	for _, w := range weeks {
		if w.IsTotal() {
			ws[w] = model.StatLine{"9": 1710}
			continue
		}
		ws[w] = model.StatLine{"9": float64(10 * int(w))}
	}
	return backend.PlayerWeeks{
		WeeksFound: len(weeks),
		Record: model.PlayerYearRecord{
			PlayerKey: playerID, PlayerID: playerID, Year: year,
			Name: "Runner", Position: "RB", Team: "KC", WeeklyStats: ws,
		},
	}, nil
}

// brokenStore fails every operation.
type brokenStore struct{ err error }

func (b brokenStore) Put(context.Context, string, repository.Record) error { return b.err }
func (b brokenStore) PutBatch(context.Context, string, []repository.Record) error {
	return b.err
}
func (b brokenStore) Get(context.Context, string, string) (repository.Record, error) {
	return repository.Record{}, b.err
}
func (b brokenStore) GetByIndex(context.Context, string, string, string) ([]repository.Record, error) {
	return nil, b.err
}
func (b brokenStore) Delete(context.Context, string, string) error { return b.err }
func (b brokenStore) ClearByIndex(context.Context, string, string, string) (int, error) {
	return 0, b.err
}
func (b brokenStore) Count(context.Context, string) (int, error) { return 0, b.err }
func (b brokenStore) Close() error                               { return nil }

func startService(t *testing.T, fb *fakeBackend, clk *testClock, opts ...service.Option) *service.Service {
	t.Helper()
	base := []service.Option{
		service.WithBackend(fb),
		service.WithClock(clk.Now),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
	}
	svc := service.New(append(base, opts...)...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}
