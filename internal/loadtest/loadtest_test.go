package loadtest

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/http/api"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

type seasonBackend struct{}

func (seasonBackend) Stats(_ context.Context, q backend.StatsQuery) ([]model.StatRecord, error) {
	return []model.StatRecord{
		{PlayerKey: "qb2", PlayerName: "Backup", Position: "QB", Year: q.Year, Week: q.Week, Stats: model.StatLine{"4": 200}},
		{PlayerKey: "qb1", PlayerName: "Starter", Position: "QB", Year: q.Year, Week: q.Week, Stats: model.StatLine{"4": 300}},
	}, nil
}

func (seasonBackend) Players(context.Context, backend.PageQuery) (backend.PlayersPage, error) {
	return backend.PlayersPage{}, backend.ErrNoData
}

func (seasonBackend) PlayerWeeks(context.Context, string, int, []model.Week) (backend.PlayerWeeks, error) {
	return backend.PlayerWeeks{}, backend.ErrNoData
}

func (seasonBackend) ScoringRules(_ context.Context, leagueID string) (map[string]model.ScoringRule, error) {
	if leagueID != "L1" {
		return nil, backend.ErrNoData
	}
	return map[string]model.ScoringRule{"4": {Points: 0.04}}, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := service.New(service.WithBackend(seasonBackend{}), service.WithWorkerCount(1), service.WithQueueSize(16))
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	srv := httptest.NewServer(api.NewServer(svc).Handler())
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return srv
}

func TestVerifyRankings(t *testing.T) {
	Convey("Given served rankings", t, func() {
		Convey("When they are ordered with ordinal ranks", func() {
			entries := []Entry{
				{PlayerID: "a", Position: "QB", OverallRank: 1, PositionRank: 1, FantasyPoints: 20},
				{PlayerID: "b", Position: "RB", OverallRank: 2, PositionRank: 1, FantasyPoints: 10},
				{PlayerID: "c", Position: "QB", OverallRank: 3, PositionRank: 2, FantasyPoints: 10},
			}
			So(verifyRankings(entries), ShouldBeNil)
		})

		Convey("When there are none", func() {
			So(errors.Is(verifyRankings(nil), ErrNoRankings), ShouldBeTrue)
		})

		Convey("When points increase down the list", func() {
			entries := []Entry{
				{PlayerID: "a", Position: "QB", OverallRank: 1, PositionRank: 1, FantasyPoints: 5},
				{PlayerID: "b", Position: "RB", OverallRank: 2, PositionRank: 1, FantasyPoints: 10},
			}
			So(errors.Is(verifyRankings(entries), ErrRankingOrder), ShouldBeTrue)
		})

		Convey("When a tie is not ordered by player id", func() {
			entries := []Entry{
				{PlayerID: "b", Position: "QB", OverallRank: 1, PositionRank: 1, FantasyPoints: 10},
				{PlayerID: "a", Position: "RB", OverallRank: 2, PositionRank: 1, FantasyPoints: 10},
			}
			So(errors.Is(verifyRankings(entries), ErrRankingOrder), ShouldBeTrue)
		})

		Convey("When a position rank skips", func() {
			entries := []Entry{
				{PlayerID: "a", Position: "QB", OverallRank: 1, PositionRank: 1, FantasyPoints: 10},
				{PlayerID: "b", Position: "QB", OverallRank: 2, PositionRank: 3, FantasyPoints: 9},
			}
			So(errors.Is(verifyRankings(entries), ErrRankingOrder), ShouldBeTrue)
		})

		Convey("When ranks are shared", func() {
			entries := []Entry{
				{PlayerID: "a", Position: "QB", OverallRank: 1, PositionRank: 1, FantasyPoints: 10},
				{PlayerID: "b", Position: "QB", OverallRank: 1, PositionRank: 2, FantasyPoints: 10},
			}
			So(errors.Is(verifyRankings(entries), ErrRankingOrder), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running server", t, func() {
		srv := newServer(t)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		Convey("When a full run reads slices and checks rankings", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:   srv.URL,
				Year:      2024,
				Weeks:     []model.Week{1, 2},
				Positions: []string{"QB"},
				League:    "L1",
				Rounds:    2,
				Workers:   2,
				Timeout:   5 * time.Second,
				Warm:      true,
			})

			Convey("Then every read succeeds and the rankings verify", func() {
				So(err, ShouldBeNil)
				So(stats.SlicesRequested, ShouldEqual, 4)
				So(stats.SlicesOK, ShouldEqual, 4)
				So(stats.RecordsRead, ShouldEqual, 8)
				So(stats.RankingEntries, ShouldEqual, 2)
			})
		})

		Convey("When the league has no rules", func() {
			_, err := Run(ctx, &Config{
				BaseURL: srv.URL,
				Year:    2024,
				Weeks:   []model.Week{1},
				League:  "nope",
				Timeout: 5 * time.Second,
			})

			Convey("Then the run fails at rankings", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "ranking retrieval failed")
			})
		})

		Convey("When the configuration is incomplete", func() {
			_, err := Run(ctx, &Config{BaseURL: srv.URL, Year: 2024})
			So(err, ShouldNotBeNil)
		})
	})
}
