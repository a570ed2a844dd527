package aggregate_test

import (
	"testing"
	"time"

	"shulscreen/internal/aggregate"
	"shulscreen/internal/clock"
	"shulscreen/internal/week"

	. "github.com/smartystreets/goconvey/convey"
)

// sunsetWeek is Sun..Fri 2025-11-16..21 with sunsets 1020 down to 995.
func sunsetWeek() (aggregate.Dataset, []week.Date) {
	rng := week.WeekRange(week.NewDate(2025, time.November, 16), time.Sunday)
	values := []clock.Minutes{1020, 1015, 1010, 1005, 1000, 995}
	ds := aggregate.Dataset{"SunsetDefault": {}}
	for i, v := range values {
		ds["SunsetDefault"][rng[i]] = v
	}
	return ds, rng
}

func TestCompute(t *testing.T) {
	Convey("Given a week of sunset values", t, func() {
		ds, rng := sunsetWeek()
		sunThu := week.ProfileDates(rng, week.DefaultProfiles()["sunThu"].Days)
		sunFri := week.ProfileDates(rng, week.DefaultProfiles()["sunFri"].Days)

		Convey("When aggregating Sunday-Thursday", func() {
			w := aggregate.Compute(ds, sunThu, []string{"SunsetDefault"})

			Convey("Then earliest is Thursday's value", func() {
				e, ok := w.EarliestOf("SunsetDefault")
				So(ok, ShouldBeTrue)
				So(e.Minutes, ShouldEqual, clock.Minutes(1000))
				So(e.Date.Weekday(), ShouldEqual, time.Thursday)
			})

			Convey("Then latest is Sunday's value", func() {
				l, ok := w.LatestOf("SunsetDefault")
				So(ok, ShouldBeTrue)
				So(l.Minutes, ShouldEqual, clock.Minutes(1020))
				So(l.Date.String(), ShouldEqual, "2025-11-16")
			})

			Convey("Then Friday is outside the range and ignored", func() {
				e, _ := w.EarliestOf("SunsetDefault")
				So(e.Minutes, ShouldNotEqual, clock.Minutes(995))
			})
		})

		Convey("When aggregating Sunday-Friday", func() {
			w := aggregate.Compute(ds, sunFri, []string{"SunsetDefault"})
			e, ok := w.EarliestOf("SunsetDefault")
			So(ok, ShouldBeTrue)
			So(e.Minutes, ShouldEqual, clock.Minutes(995))
		})

		Convey("Then every qualifying value lies between earliest and latest", func() {
			w := aggregate.Compute(ds, rng, []string{"SunsetDefault"})
			e, _ := w.EarliestOf("SunsetDefault")
			l, _ := w.LatestOf("SunsetDefault")
			for _, d := range rng {
				if v, ok := ds.Value("SunsetDefault", d); ok {
					So(e.Minutes, ShouldBeLessThanOrEqualTo, v)
					So(v, ShouldBeLessThanOrEqualTo, l.Minutes)
				}
			}
		})
	})
}

func TestComputeMissing(t *testing.T) {
	Convey("Given fields without data", t, func() {
		ds, rng := sunsetWeek()

		Convey("When a field is absent from the dataset", func() {
			w := aggregate.Compute(ds, rng, []string{"Alos16point1"})

			Convey("Then both extremes are absent, not zero", func() {
				_, ok := w.EarliestOf("Alos16point1")
				So(ok, ShouldBeFalse)
				_, ok = w.LatestOf("Alos16point1")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the range has no dates with data", func() {
			sat := []week.Date{rng[6]}
			w := aggregate.Compute(ds, sat, []string{"SunsetDefault"})
			_, ok := w.EarliestOf("SunsetDefault")
			So(ok, ShouldBeFalse)
		})

		Convey("When the range is empty", func() {
			w := aggregate.Compute(ds, nil, []string{"SunsetDefault"})
			So(w.Earliest, ShouldBeEmpty)
			So(w.Latest, ShouldBeEmpty)
		})

		Convey("When some dates are missing", func() {
			delete(ds["SunsetDefault"], rng[4])
			w := aggregate.Compute(ds, rng[:5], []string{"SunsetDefault"})
			e, ok := w.EarliestOf("SunsetDefault")
			So(ok, ShouldBeTrue)
			So(e.Minutes, ShouldEqual, clock.Minutes(1005))
		})
	})
}

func TestComputeTies(t *testing.T) {
	Convey("Given equal values on several dates", t, func() {
		rng := week.WeekRange(week.NewDate(2025, time.November, 16), time.Sunday)
		ds := aggregate.Dataset{"Chatzos": {
			rng[3]: 720,
			rng[1]: 720,
			rng[2]: 720,
		}}

		Convey("When the dates are passed out of order", func() {
			dates := []week.Date{rng[3], rng[2], rng[1]}
			w := aggregate.Compute(ds, dates, []string{"Chatzos"})

			Convey("Then the earliest calendar date wins both extremes", func() {
				e, _ := w.EarliestOf("Chatzos")
				l, _ := w.LatestOf("Chatzos")
				So(e.Date, ShouldResemble, rng[1])
				So(l.Date, ShouldResemble, rng[1])
			})

			Convey("Then the caller's slice is left untouched", func() {
				So(dates[0], ShouldResemble, rng[3])
			})
		})
	})
}

func TestComputeProfiles(t *testing.T) {
	Convey("Given one dataset and two profiles", t, func() {
		ds, rng := sunsetWeek()
		byProfile := map[string][]week.Date{
			"sunThu": week.ProfileDates(rng, week.DefaultProfiles()["sunThu"].Days),
			"sunFri": week.ProfileDates(rng, week.DefaultProfiles()["sunFri"].Days),
		}

		out := aggregate.ComputeProfiles(ds, byProfile, []string{"SunsetDefault"})

		So(len(out), ShouldEqual, 2)
		e1, _ := out["sunThu"].EarliestOf("SunsetDefault")
		e2, _ := out["sunFri"].EarliestOf("SunsetDefault")
		So(e1.Minutes, ShouldEqual, clock.Minutes(1000))
		So(e2.Minutes, ShouldEqual, clock.Minutes(995))
		So(len(out["sunFri"].Dates), ShouldEqual, 6)
	})
}

func TestParse(t *testing.T) {
	Convey("Given raw adapter output", t, func() {
		d := week.NewDate(2025, time.November, 20)
		raw := aggregate.Raw{}
		raw.Set("SunsetDefault", d, "2025-11-20T16:41:00Z")
		raw.Set("Tzais72", d, "not a time")

		ds := aggregate.Parse(raw)

		Convey("Then valid values are parsed", func() {
			v, ok := ds.Value("SunsetDefault", d)
			So(ok, ShouldBeTrue)
			So(v, ShouldEqual, clock.Minutes(1001))
		})

		Convey("Then malformed values become missing", func() {
			_, ok := ds.Value("Tzais72", d)
			So(ok, ShouldBeFalse)
			_, ok = ds.Value("Nope", d)
			So(ok, ShouldBeFalse)
		})
	})
}
