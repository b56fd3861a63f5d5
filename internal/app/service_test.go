package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/backend"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it is not started", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats(context.Background())
			So(stats["started"], ShouldEqual, false)
			So(stats["store"], ShouldEqual, "memory")
		})

		Convey("Then it refuses to start without a backend", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoBackend), ShouldBeTrue)
		})

		Convey("Then sessions are unavailable", func() {
			_, err := svc.Session("")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.NewSession(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a started service", t, func() {
		fb := newFakeBackend()
		svc := service.New(
			service.WithBackend(fb),
			service.WithWorkerCount(1),
			service.WithQueueSize(8),
			service.WithStatsTTL(30*time.Minute),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then stats report the running components", func() {
			stats := svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, true)
			So(stats["sessions"], ShouldEqual, 1)
			So(stats["statsTTL"], ShouldEqual, "30m0s")
			So(stats["records"], ShouldNotBeNil)
			svc.Stop()
		})

		Convey("When stopped", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped and refuses sessions", func() {
				So(svc.GetStats(ctx)["started"], ShouldEqual, false)
				_, err := svc.Session("")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		clk := newClock()
		svc := startService(t, newFakeBackend(), clk, service.WithSessionIdleTimeout(10*time.Minute), service.WithDefaultLeague("L1"))

		sess, err := svc.NewSession(ctx)
		So(err, ShouldBeNil)
		So(sess.ID(), ShouldNotEqual, service.DefaultSessionID)
		So(sess.League(), ShouldEqual, "L1")

		Convey("A session can be looked up and closed", func() {
			got, err := svc.Session(sess.ID())
			So(err, ShouldBeNil)
			So(got, ShouldEqual, sess)

			So(svc.CloseSession(ctx, sess.ID()), ShouldBeNil)
			_, err = svc.Session(sess.ID())
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 1})
			So(errors.Is(err, service.ErrSessionClosed), ShouldBeTrue)
			So(errors.Is(svc.CloseSession(ctx, "missing"), service.ErrSessionNotFound), ShouldBeTrue)
		})

		Convey("Closing the default session resets it", func() {
			def, err := svc.Session("")
			So(err, ShouldBeNil)
			So(svc.CloseSession(ctx, service.DefaultSessionID), ShouldBeNil)
			fresh, err := svc.Session(service.DefaultSessionID)
			So(err, ShouldBeNil)
			So(fresh, ShouldNotEqual, def)
		})

		Convey("Idle sessions expire but the default one stays", func() {
			clk.Advance(5 * time.Minute)
			So(svc.ExpireIdleSessions(ctx), ShouldEqual, 0)

			clk.Advance(6 * time.Minute)
			So(svc.ExpireIdleSessions(ctx), ShouldEqual, 1)
			So(svc.SessionIDs(), ShouldResemble, []string{service.DefaultSessionID})
		})

		Convey("Use keeps a session alive", func() {
			clk.Advance(9 * time.Minute)
			sess.SelectLeague("L2")
			clk.Advance(9 * time.Minute)
			So(svc.ExpireIdleSessions(ctx), ShouldEqual, 0)
		})
	})
}

func TestService_Warm(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		svc := startService(t, fb, newClock())

		Convey("Warm jobs are fetched by the workers", func() {
			ids, err := svc.Warm(ctx, service.WarmRequest{
				Year:      2024,
				Weeks:     []model.Week{1, 2},
				Positions: []string{"qb", "rb"},
			})
			So(err, ShouldBeNil)
			So(ids, ShouldHaveLength, 4)

			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) {
				if n, _, _, _ := fb.calls(); n == 4 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 4)

			sess, err := svc.Session("")
			So(err, ShouldBeNil)
			_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 2, Position: "RB"})
			So(err, ShouldBeNil)
			stats, _, _, _ = fb.calls()
			So(stats, ShouldEqual, 4)
		})

		Convey("Warm requests need a year and weeks", func() {
			_, err := svc.Warm(ctx, service.WarmRequest{Year: 2024})
			So(errors.Is(err, service.ErrInvalidQuery), ShouldBeTrue)
			_, err = svc.Warm(ctx, service.WarmRequest{Year: 2024, Weeks: []model.Week{30}})
			So(errors.Is(err, service.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}

func TestService_ClearYear(t *testing.T) {
	Convey("Given cached slices for two seasons", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		svc := startService(t, fb, newClock())
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2023, Week: 1})
		So(err, ShouldBeNil)
		_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 1})
		So(err, ShouldBeNil)

		Convey("When one season is cleared", func() {
			n, err := svc.ClearYear(ctx, 2024)
			So(err, ShouldBeNil)
			So(n, ShouldBeGreaterThan, 0)

			Convey("Then only that season is fetched again", func() {
				_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2023, Week: 1})
				So(err, ShouldBeNil)
				_, err = sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 1})
				So(err, ShouldBeNil)
				stats, _, _, _ := fb.calls()
				So(stats, ShouldEqual, 3)
			})
		})
	})
}

func TestSessionRankings(t *testing.T) {
	Convey("Given season totals for four players", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		fb.stats[model.NewSliceKey(2024, model.WeekTotal, "")] = []model.StatRecord{
			{PlayerKey: "b", PlayerName: "B", Position: "QB", Stats: model.StatLine{"4": 250}},
			{PlayerKey: "a", PlayerName: "A", Position: "QB", Stats: model.StatLine{"5": 2, "6": 1}},
			{PlayerKey: "c", PlayerName: "C", Position: "RB", Stats: model.StatLine{"9": 50}},
			{PlayerKey: "d", PlayerName: "D", Position: "RB", Stats: model.StatLine{"9": 120}},
		}
		clk := newClock()
		svc := startService(t, fb, clk)
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		entries, err := sess.Rankings(ctx, "L1", 2024)
		So(err, ShouldBeNil)

		Convey("Then equal totals are ordered by player id and ranks are ordinal", func() {
			So(entries, ShouldHaveLength, 4)
			// a: 2*4 - 2 = 6, b: 250*0.04 = 10, d: 12 + 3 = 15, c: 5
			So(entries[0].PlayerID, ShouldEqual, "d")
			So(entries[0].FantasyPoints, ShouldEqual, 15)
			So(entries[1].PlayerID, ShouldEqual, "b")
			So(entries[2].PlayerID, ShouldEqual, "a")
			So(entries[2].FantasyPoints, ShouldEqual, 6)
			So(entries[3].PlayerID, ShouldEqual, "c")

			So(entries[0].PositionRank, ShouldEqual, 1)
			So(entries[1].PositionRank, ShouldEqual, 1)
			So(entries[2].PositionRank, ShouldEqual, 2)
			So(entries[3].PositionRank, ShouldEqual, 2)
		})

		Convey("Then they are persisted for the league season", func() {
			stored, err := svc.Repository().Rankings(ctx, model.LeagueYearKey{LeagueID: "L1", Year: 2024})
			So(err, ShouldBeNil)
			So(stored, ShouldHaveLength, 4)
			So(stored[0].OverallRank, ShouldEqual, 1)
		})

		Convey("Then a fresh session reuses the stored rankings", func() {
			clk.Advance(time.Hour)
			other, err := svc.NewSession(ctx)
			So(err, ShouldBeNil)
			again, err := other.Rankings(ctx, "L1", 2024)
			So(err, ShouldBeNil)
			So(again, ShouldHaveLength, 4)
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 1)
		})

		Convey("Then a forced recalculation replaces them", func() {
			fb.mu.Lock()
			fb.stats[model.NewSliceKey(2024, model.WeekTotal, "")] = []model.StatRecord{
				{PlayerKey: "z", PlayerName: "Z", Position: "TE", Stats: model.StatLine{"5": 1}},
			}
			fb.mu.Unlock()
			clk.Advance(2 * time.Hour)

			fresh, err := sess.RecalculateRankings(ctx, "L1", 2024)
			So(err, ShouldBeNil)
			So(fresh, ShouldHaveLength, 1)

			stored, err := svc.Repository().Rankings(ctx, model.LeagueYearKey{LeagueID: "L1", Year: 2024})
			So(err, ShouldBeNil)
			So(stored, ShouldHaveLength, 1)
			So(stored[0].PlayerID, ShouldEqual, "z")
		})
	})
}
