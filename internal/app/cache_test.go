package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/backend"
	"github.com/okian/gridstat/internal/adapters/repository"
	service "github.com/okian/gridstat/internal/app"
	"github.com/okian/gridstat/internal/domain/model"
)

func TestSessionStatsTiers(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		clk := newClock()
		svc := startService(t, fb, clk)
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		q := backend.StatsQuery{Year: 2024, Week: 3, Position: "qb"}
		recs, err := sess.Stats(ctx, q)
		So(err, ShouldBeNil)
		So(recs, ShouldHaveLength, 1)

		Convey("The first read is fetched, stored and flagged", func() {
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 1)

			stored, err := svc.Repository().StatsForSlice(ctx, model.NewSliceKey(2024, 3, "QB"))
			So(err, ShouldBeNil)
			So(stored, ShouldHaveLength, 1)
			So(stored[0].ID, ShouldEqual, "stat|p1|2024|3")

			flag, err := svc.Repository().Flag(ctx, model.NewSliceKey(2024, 3, "QB").StorageKey())
			So(err, ShouldBeNil)
			So(flag.LoadedAt.Equal(clk.Now()), ShouldBeTrue)
		})

		Convey("A repeated read is served from memory", func() {
			again, err := sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 3, Position: "QB"})
			So(err, ShouldBeNil)
			So(again, ShouldResemble, recs)
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 1)
		})

		Convey("Another session reads the store while it is fresh", func() {
			clk.Advance(59 * time.Minute)
			other, err := svc.NewSession(ctx)
			So(err, ShouldBeNil)

			got, err := other.Stats(ctx, q)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 1)
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 1)
		})

		Convey("Past the freshness window the backend is asked again", func() {
			clk.Advance(61 * time.Minute)
			other, err := svc.NewSession(ctx)
			So(err, ShouldBeNil)

			_, err = other.Stats(ctx, q)
			So(err, ShouldBeNil)
			stats, _, _, _ := fb.calls()
			So(stats, ShouldEqual, 2)
		})

		Convey("A backend failure propagates and caches nothing", func() {
			fb.mu.Lock()
			fb.statsErr = errBackendDown
			fb.mu.Unlock()

			_, err := sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 4})
			So(errors.Is(err, errBackendDown), ShouldBeTrue)
			_, err = svc.Repository().Flag(ctx, model.NewSliceKey(2024, 4, "").StorageKey())
			So(repository.IsNotFound(err), ShouldBeTrue)
		})

		Convey("An invalid week is rejected before any tier", func() {
			_, err := sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 19})
			So(errors.Is(err, service.ErrInvalidQuery), ShouldBeTrue)
		})
	})
}

func TestSessionStatsInflight(t *testing.T) {
	Convey("Given a backend that holds its answer", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		fb.gate = make(chan struct{})
		fb.entered = make(chan struct{}, 1)
		svc := startService(t, fb, newClock())
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		Convey("When two identical reads overlap", func() {
			q := backend.StatsQuery{Year: 2024, Week: 7, Position: "WR"}
			var wg sync.WaitGroup
			results := make([][]model.StatRecord, 2)
			errs := make([]error, 2)

			wg.Add(1)
			go func() {
				defer wg.Done()
				results[0], errs[0] = sess.Stats(ctx, q)
			}()
			<-fb.entered

			wg.Add(1)
			go func() {
				defer wg.Done()
				results[1], errs[1] = sess.Stats(ctx, q)
			}()
			time.Sleep(50 * time.Millisecond)
			close(fb.gate)
			wg.Wait()

			Convey("Then the backend is called exactly once and both share the result", func() {
				So(errs[0], ShouldBeNil)
				So(errs[1], ShouldBeNil)
				So(results[0], ShouldResemble, results[1])
				stats, _, _, _ := fb.calls()
				So(stats, ShouldEqual, 1)
			})
		})
	})
}

func TestSessionPlayersAndRules(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		clk := newClock()
		svc := startService(t, fb, clk)
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		Convey("Listing pages are cached per page and limit", func() {
			q := backend.PageQuery{StatsQuery: backend.StatsQuery{Year: 2024, Week: 1}, Page: 1, Limit: 25}
			p, err := sess.Players(ctx, q)
			So(err, ShouldBeNil)
			So(p.Count, ShouldEqual, 1)
			_, err = sess.Players(ctx, q)
			So(err, ShouldBeNil)
			_, pages, _, _ := fb.calls()
			So(pages, ShouldEqual, 1)

			q.Page = 2
			_, err = sess.Players(ctx, q)
			So(err, ShouldBeNil)
			_, pages, _, _ = fb.calls()
			So(pages, ShouldEqual, 2)
		})

		Convey("Rules follow the 24 hour window", func() {
			rs, err := sess.Rules(ctx, "L1")
			So(err, ShouldBeNil)
			So(rs.Rules["9"].Bonuses, ShouldHaveLength, 1)

			clk.Advance(23 * time.Hour)
			other, err := svc.NewSession(ctx)
			So(err, ShouldBeNil)
			_, err = other.Rules(ctx, "L1")
			So(err, ShouldBeNil)
			_, _, _, rules := fb.calls()
			So(rules, ShouldEqual, 1)

			clk.Advance(2 * time.Hour)
			_, err = sess.Rules(ctx, "L1")
			So(err, ShouldBeNil)
			_, _, _, rules = fb.calls()
			So(rules, ShouldEqual, 2)
		})

		Convey("Rules need a league from the call or the session", func() {
			_, err := sess.Rules(ctx, "")
			So(errors.Is(err, service.ErrInvalidQuery), ShouldBeTrue)

			sess.SelectLeague("L1")
			So(sess.League(), ShouldEqual, "L1")
			rs, err := sess.Rules(ctx, "")
			So(err, ShouldBeNil)
			So(rs.LeagueID, ShouldEqual, "L1")
		})

		Convey("Unknown leagues surface as no data", func() {
			_, err := sess.Rules(ctx, "nope")
			So(errors.Is(err, backend.ErrNoData), ShouldBeTrue)
		})
	})
}

func TestSessionBrokenStore(t *testing.T) {
	Convey("Given a service whose store fails every operation", t, func() {
		ctx := context.Background()
		fb := newFakeBackend()
		fb.playerWeeks = fullSeason
		errDisk := errors.New("disk unavailable")
		svc := startService(t, fb, newClock(),
			service.WithRepository(repository.New(brokenStore{err: errDisk})))
		sess, err := svc.Session("")
		So(err, ShouldBeNil)

		Convey("Then reads fall through to the backend without error", func() {
			recs, err := sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 2, Position: "QB"})
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 1)

			rec, err := sess.Player(ctx, model.PlayerSliceKey{PlayerID: "rb9", Year: 2024})
			So(err, ShouldBeNil)
			So(rec.WeeklyStats, ShouldNotBeEmpty)

			rules, err := sess.Rules(ctx, "L1")
			So(err, ShouldBeNil)
			So(rules.Rules, ShouldHaveLength, 4)

			entries, err := sess.Rankings(ctx, "L1", 2024)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 1)
		})

		Convey("Then a failing backend still surfaces its error", func() {
			fb.mu.Lock()
			fb.statsErr = errBackendDown
			fb.mu.Unlock()

			_, err := sess.Stats(ctx, backend.StatsQuery{Year: 2024, Week: 5})
			So(errors.Is(err, errBackendDown), ShouldBeTrue)
			So(errors.Is(err, errDisk), ShouldBeFalse)
		})
	})
}
