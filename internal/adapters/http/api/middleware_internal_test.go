package api

import (
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIPLimiterBound(t *testing.T) {
	Convey("Given a limiter tracking at most three clients", t, func() {
		l := newIPLimiter(2, time.Minute, 3)

		Convey("When more clients than the bound are seen", func() {
			first := l.get("10.0.0.1")
			for i := 2; i <= 5; i++ {
				l.get(fmt.Sprintf("10.0.0.%d", i))
			}

			Convey("Then the table stays bounded and the oldest client starts fresh", func() {
				So(l.tracked(), ShouldEqual, 3)
				So(l.get("10.0.0.1"), ShouldNotPointTo, first)
			})
		})

		Convey("When the same client returns", func() {
			first := l.get("10.0.0.9")
			So(first.Allow(), ShouldBeTrue)

			Convey("Then it keeps its bucket", func() {
				So(l.get("10.0.0.9"), ShouldPointTo, first)
			})
		})
	})
}
