package cache_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/gridstat/internal/adapters/cache"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryFreshness(t *testing.T) {
	Convey("Given a memory tier with a controllable clock", t, func() {
		clk := &fakeClock{now: time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)}
		m, err := cache.NewMemory(8, cache.WithClock(clk.Now))
		So(err, ShouldBeNil)

		m.Set("slice|2024|1|ALL", 2024, []string{"a"})

		Convey("An entry younger than the window is a hit", func() {
			clk.Advance(59 * time.Minute)
			v, at, ok := cache.Lookup[[]string](m, "slice|2024|1|ALL", time.Hour)
			So(ok, ShouldBeTrue)
			So(v, ShouldResemble, []string{"a"})
			So(at.Equal(time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("An entry older than the window is a miss and is dropped", func() {
			clk.Advance(61 * time.Minute)
			_, _, ok := m.Get("slice|2024|1|ALL", time.Hour)
			So(ok, ShouldBeFalse)
			So(m.Len(), ShouldEqual, 0)
		})

		Convey("A zero window never expires", func() {
			clk.Advance(1000 * time.Hour)
			_, _, ok := m.Get("slice|2024|1|ALL", 0)
			So(ok, ShouldBeTrue)
		})

		Convey("A promoted value keeps its original store time", func() {
			m.SetAt("rules|L1", 0, "r", clk.now.Add(-23*time.Hour))
			clk.Advance(2 * time.Hour)
			_, _, ok := m.Get("rules|L1", 24*time.Hour)
			So(ok, ShouldBeFalse)
		})

		Convey("A value of another type is a miss", func() {
			_, _, ok := cache.Lookup[int](m, "slice|2024|1|ALL", time.Hour)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestMemoryBoundsAndClear(t *testing.T) {
	Convey("Given a tier of two entries", t, func() {
		m, err := cache.NewMemory(2)
		So(err, ShouldBeNil)

		m.Set("a", 2023, 1)
		m.Set("b", 2024, 2)
		_, _, _ = m.Get("a", 0)
		m.Set("c", 2024, 3)

		Convey("The least recently used entry is evicted", func() {
			So(m.Len(), ShouldEqual, 2)
			_, _, ok := m.Get("b", 0)
			So(ok, ShouldBeFalse)
		})

		Convey("RemoveYear drops only that year", func() {
			So(m.RemoveYear(2024), ShouldEqual, 1)
			_, _, ok := m.Get("a", 0)
			So(ok, ShouldBeTrue)
		})

		Convey("Remove and Purge empty the tier", func() {
			m.Remove("a")
			So(m.Len(), ShouldEqual, 1)
			m.Purge()
			So(m.Len(), ShouldEqual, 0)
		})
	})

	Convey("A non-positive size falls back to the default", t, func() {
		m, err := cache.NewMemory(0)
		So(err, ShouldBeNil)
		So(m, ShouldNotBeNil)
	})
}
