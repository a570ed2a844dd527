package clock_test

import (
	"math"
	"testing"

	"shulscreen/internal/clock"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTimestamp(t *testing.T) {
	Convey("Given zmanim API timestamps", t, func() {
		Convey("When the value is in UTC notation", func() {
			m, ok := clock.ParseTimestamp("2025-11-20T16:41:00Z")

			Convey("Then the UTC clock time is taken literally", func() {
				So(ok, ShouldBeTrue)
				So(m, ShouldEqual, clock.Minutes(16*60+41))
			})
		})

		Convey("When the value carries seconds", func() {
			m, ok := clock.ParseTimestamp("2025-11-20T06:10:30Z")

			Convey("Then seconds are folded in as a fraction", func() {
				So(ok, ShouldBeTrue)
				So(float64(m), ShouldAlmostEqual, 6*60+10.5, 1e-9)
			})
		})

		Convey("When the value carries an explicit offset", func() {
			m, ok := clock.ParseTimestamp("2025-11-20T16:41:00-05:00")

			Convey("Then it is converted to UTC before extracting the clock", func() {
				So(ok, ShouldBeTrue)
				So(m, ShouldEqual, clock.Minutes(21*60+41))
			})
		})

		Convey("When the value has no zone", func() {
			m, ok := clock.ParseTimestamp("2025-11-20T16:41:00")

			Convey("Then it is read as UTC", func() {
				So(ok, ShouldBeTrue)
				So(m, ShouldEqual, clock.Minutes(16*60+41))
			})
		})

		Convey("When the value has fractional seconds", func() {
			m, ok := clock.ParseTimestamp("2025-11-20T16:41:00.900Z")

			Convey("Then the sub-second part is dropped", func() {
				So(ok, ShouldBeTrue)
				So(m, ShouldEqual, clock.Minutes(16*60+41))
			})
		})

		Convey("When the value is empty or malformed", func() {
			for _, in := range []string{"", "   ", "sunset", "2025-13-40T99:00:00Z", "16:41"} {
				_, ok := clock.ParseTimestamp(in)
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given arbitrary minute values", t, func() {
		inputs := []clock.Minutes{0, 1, 59.5, 1439, 1440, 1441, 2880.25, -1, -15, -1440, -1441.5, 100000}

		Convey("Then every result is in [0,1440) and congruent mod 1440", func() {
			for _, in := range inputs {
				out := clock.Normalize(in)
				So(out, ShouldBeGreaterThanOrEqualTo, 0)
				So(out, ShouldBeLessThan, clock.MinutesPerDay)

				diff := math.Mod(float64(in-out), clock.MinutesPerDay)
				So(math.Abs(diff), ShouldBeLessThan, 1e-9)
			}
		})

		Convey("Then negative values wrap forward", func() {
			So(clock.Normalize(-15), ShouldEqual, clock.Minutes(1425))
		})
	})
}

func TestFormat(t *testing.T) {
	Convey("Given the two display modes", t, func() {
		Convey("When formatting in 24-hour mode", func() {
			So(clock.Format(0, clock.H24), ShouldEqual, "00:00")
			So(clock.Format(985, clock.H24), ShouldEqual, "16:25")
			So(clock.Format(1439, clock.H24), ShouldEqual, "23:59")
		})

		Convey("When formatting in 12-hour mode", func() {
			So(clock.Format(0, clock.H12), ShouldEqual, "12:00 AM")
			So(clock.Format(12*60, clock.H12), ShouldEqual, "12:00 PM")
			So(clock.Format(985, clock.H12), ShouldEqual, "4:25 PM")
			So(clock.Format(6*60+5, clock.H12), ShouldEqual, "6:05 AM")
		})

		Convey("When the value is fractional", func() {
			So(clock.Format(985.49, clock.H24), ShouldEqual, "16:25")
			So(clock.Format(985.5, clock.H24), ShouldEqual, "16:26")
		})

		Convey("When rounding crosses midnight", func() {
			So(clock.Format(1439.6, clock.H24), ShouldEqual, "00:00")
		})

		Convey("When the value is out of range", func() {
			So(clock.Format(-15, clock.H24), ShouldEqual, "23:45")
			So(clock.Format(1445, clock.H12), ShouldEqual, "12:05 AM")
		})
	})
}

func TestParseFixed(t *testing.T) {
	Convey("Given configured H:MM strings", t, func() {
		Convey("Then well-formed values parse", func() {
			m, ok := clock.ParseFixed("7:05")
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, clock.Minutes(425))

			m, ok = clock.ParseFixed("19:30")
			So(ok, ShouldBeTrue)
			So(m, ShouldEqual, clock.Minutes(1170))
		})

		Convey("Then anything outside the strict pattern is rejected", func() {
			for _, in := range []string{"", "7", "7:5", "07:05:00", "7:05 PM", " 7:05", "123:00", "a:bc"} {
				_, ok := clock.ParseFixed(in)
				So(ok, ShouldBeFalse)
			}
		})

		Convey("Then 24-hour output round-trips for whole minutes", func() {
			for m := clock.Minutes(-1500); m < 3000; m += 37 {
				n := clock.Normalize(m)
				back, ok := clock.ParseFixed(clock.Format(n, clock.H24))
				So(ok, ShouldBeTrue)
				So(back, ShouldEqual, n)
			}
		})
	})
}

func TestParseMode(t *testing.T) {
	Convey("Given mode strings", t, func() {
		So(clock.ParseMode("h24"), ShouldEqual, clock.H24)
		So(clock.ParseMode("H24"), ShouldEqual, clock.H24)
		So(clock.ParseMode("h12"), ShouldEqual, clock.H12)
		So(clock.ParseMode(""), ShouldEqual, clock.H12)
		So(clock.ParseMode("military"), ShouldEqual, clock.H12)
	})
}

func TestMax(t *testing.T) {
	Convey("Given two clock values", t, func() {
		So(clock.Max(10, 20), ShouldEqual, clock.Minutes(20))
		So(clock.Max(20, 10), ShouldEqual, clock.Minutes(20))
		So(clock.Max(-5, -10), ShouldEqual, clock.Minutes(-5))
	})
}
