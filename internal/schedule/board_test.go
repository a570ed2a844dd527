package schedule_test

import (
	"fmt"
	"testing"
	"time"

	"shulscreen/internal/clock"
	"shulscreen/internal/model"
	"shulscreen/internal/schedule"
	"shulscreen/internal/week"

	. "github.com/smartystreets/goconvey/convey"
)

func testSettings() schedule.Settings {
	return schedule.Settings{
		Mode:      clock.H12,
		WeekStart: time.Sunday,
		Profiles:  week.DefaultProfiles(),
		Name:      "Beis Medrash",
		Lists: schedule.Lists{
			Shacharis: []schedule.Entry{
				{Label: "Vasikin", Type: "weeklyEarliestZman", BaseField: "SunriseDefault", OffsetMin: -20},
				{Label: "Shacharis", Type: "fixed", Time: "7:00"},
			},
			Mincha: []schedule.Entry{
				{Label: "Mincha", Type: "weeklyEarliestZman", BaseField: "SunsetDefault", OffsetMin: -15},
				{Label: "Erev Shabbos Mincha", Type: "weeklyEarliestZman", BaseField: "SunsetDefault", OffsetMin: -10, WeekProfile: "sunFri"},
				{Label: "Shabbos Mincha", Type: "fixedIfDow", Time: "13:30", Dow: []int{6}},
			},
			Maariv: []schedule.Entry{
				{Label: "Maariv", Type: "weeklyLatestZmanOrFixed", BaseField: "Tzais72", FixedTime: "18:30"},
				{Label: "Late Maariv", Type: "manualNote", Note: "9:30 PM"},
			},
		},
		Zmanim: []schedule.ZmanItem{
			{Label: "Sunrise", Field: "SunriseDefault"},
			{Field: "SunsetDefault"},
			{Label: "Plag", Field: "PlagGra"},
		},
	}
}

// weekDays builds getDay-like payloads for Sun 2025-11-16 .. Sat 2025-11-22.
func weekDays() map[week.Date]model.Day {
	days := map[week.Date]model.Day{}
	sunsets := []int{1020, 1015, 1010, 1005, 1000, 995, 990}
	for i, s := range sunsets {
		d := week.NewDate(2025, time.November, 16+i)
		days[d] = model.Day{
			Date: d.String(),
			Zman: map[string]string{
				"SunsetDefault":  fmt.Sprintf("%sT%02d:%02d:00Z", d, s/60, s%60),
				"SunriseDefault": fmt.Sprintf("%sT06:%02d:00Z", d, 40+i),
				"Tzais72":        fmt.Sprintf("%sT%02d:%02d:00Z", d, (s+72)/60, (s+72)%60),
			},
			Civil: model.DateStrings{CivilLong: "Civil " + d.String(), JewishLong: "Jewish " + d.String()},
		}
	}
	return days
}

func TestNewPlan(t *testing.T) {
	Convey("Given settings that reference two profiles", t, func() {
		s := testSettings()
		today := week.NewDate(2025, time.November, 18)

		p := schedule.NewPlan(s, today)

		Convey("Then the week is the Sunday range around today", func() {
			So(p.Anchor, ShouldResemble, today)
			So(p.Range[0].String(), ShouldEqual, "2025-11-16")
			So(len(p.Range), ShouldEqual, 7)
		})

		Convey("Then both profiles are planned", func() {
			So(len(p.Profiles), ShouldEqual, 2)
			So(len(p.Profiles["sunThu"]), ShouldEqual, 5)
			So(len(p.Profiles["sunFri"]), ShouldEqual, 6)
		})

		Convey("Then the fetch is the sorted union of profile dates", func() {
			So(len(p.Fetch), ShouldEqual, 6)
			So(p.Fetch[0].String(), ShouldEqual, "2025-11-16")
			So(p.Fetch[5].String(), ShouldEqual, "2025-11-21")
		})

		Convey("Then the fields are the weekly base fields plus the badge field", func() {
			So(p.Fields, ShouldResemble, []string{"SunriseDefault", "SunsetDefault", "Tzais72"})
		})
	})

	Convey("Given look-ahead on a Friday", t, func() {
		s := testSettings()
		s.AnchorNextWeek = true
		friday := week.NewDate(2025, time.November, 21)

		p := schedule.NewPlan(s, friday)

		Convey("Then the week is next week's", func() {
			So(p.Anchor.String(), ShouldEqual, "2025-11-28")
			So(p.Range[0].String(), ShouldEqual, "2025-11-23")
		})

		Convey("Then today is still fetched for the header and grid", func() {
			So(p.Fetch[0], ShouldResemble, friday)
			So(len(p.Fetch), ShouldEqual, 7)
		})
	})

	Convey("Given a schedule with no weekly entries", t, func() {
		s := testSettings()
		s.Lists = schedule.Lists{}

		p := schedule.NewPlan(s, week.NewDate(2025, time.November, 18))

		Convey("Then only the default profile and badge field remain", func() {
			So(len(p.Profiles), ShouldEqual, 1)
			So(p.Fields, ShouldResemble, []string{"SunsetDefault"})
		})
	})
}

func TestBuild(t *testing.T) {
	Convey("Given a full week of data", t, func() {
		s := testSettings()
		today := week.NewDate(2025, time.November, 18) // Tuesday
		p := schedule.NewPlan(s, today)

		b := schedule.Build(s, p, weekDays())

		Convey("Then the header comes from today's payload", func() {
			So(b.Header.Name, ShouldEqual, "Beis Medrash")
			So(b.Header.DateLine, ShouldEqual, "Civil 2025-11-18")
			So(b.Header.JewishDate, ShouldEqual, "Jewish 2025-11-18")
		})

		Convey("Then the zmanim grid shows today's values", func() {
			So(len(b.Zmanim), ShouldEqual, 3)
			So(b.Zmanim[0].Display, ShouldEqual, "6:42 AM")
			So(b.Zmanim[1].Label, ShouldEqual, "SunsetDefault")
			So(b.Zmanim[1].Display, ShouldEqual, "4:50 PM")
			So(b.Zmanim[2].Available, ShouldBeFalse)
		})

		Convey("Then the lists resolve per profile", func() {
			So(b.Lists.Shacharis[0].Display, ShouldEqual, "6:20 AM")
			So(b.Lists.Mincha[0].Display, ShouldEqual, "4:25 PM")
			So(b.Lists.Mincha[1].Display, ShouldEqual, "4:25 PM")
			So(len(b.Lists.Mincha), ShouldEqual, 2)
		})

		Convey("Then the floor clamps maariv", func() {
			So(b.Lists.Maariv[0].Display, ShouldEqual, "6:30 PM")
			So(b.Lists.Maariv[0].Source.Clamped, ShouldBeTrue)
			So(b.Lists.Maariv[1].Display, ShouldEqual, "9:30 PM")
		})

		Convey("Then the badge and week diagnostics are filled", func() {
			So(b.Badge.Display, ShouldEqual, "4:25 PM")
			So(b.Week.Start, ShouldEqual, "2025-11-16")
			So(b.Week.End, ShouldEqual, "2025-11-22")
			So(b.Status, ShouldEqual, "Week computed from 2025-11-16")
			So(b.Missing, ShouldEqual, 1)
		})
	})

	Convey("Given no data at all", t, func() {
		s := testSettings()
		today := week.NewDate(2025, time.November, 18)
		b := schedule.Build(s, schedule.NewPlan(s, today), nil)

		Convey("Then computed rows are unavailable but fixed rows still show", func() {
			So(b.Lists.Shacharis[0].Available, ShouldBeFalse)
			So(b.Lists.Shacharis[1].Display, ShouldEqual, "7:00 AM")
			So(b.Badge.Available, ShouldBeFalse)
			So(b.Header.DateLine, ShouldEqual, "2025-11-18")
		})
	})
}
