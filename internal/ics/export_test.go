package ics_test

import (
	"strings"
	"testing"
	"time"

	"shulscreen/internal/ics"
	"shulscreen/internal/model"

	. "github.com/smartystreets/goconvey/convey"
)

func minutes(v float64) *float64 { return &v }

func board() *model.Board {
	return &model.Board{
		UpdatedAt: time.Date(2025, time.November, 18, 15, 0, 0, 0, time.UTC),
		Header:    model.Header{Name: "Beis Medrash", LocationLabel: "Lakewood, NJ"},
		Week:      model.Week{Start: "2025-11-16", End: "2025-11-22"},
		Lists: model.Lists{
			Shacharis: []model.Row{
				{Label: "Shacharis", Display: "7:00 AM", Available: true, Minutes: minutes(420), Days: []int{0, 1, 2, 3, 4, 5, 6}},
				{Label: "Vasikin", Display: model.Unavailable, Days: []int{0, 1, 2, 3, 4}},
			},
			Mincha: []model.Row{
				{
					Label: "Mincha", Display: "4:25 PM", Available: true, Minutes: minutes(985),
					Days:   []int{0, 1, 2, 3, 4},
					Source: &model.Source{Field: "SunsetDefault", Profile: "sunThu", Date: "2025-11-20", OffsetMin: -15},
				},
				{Label: "Daf Yomi", Display: "After Maariv", Available: true},
			},
		},
	}
}

func TestExport(t *testing.T) {
	Convey("Given a board with fixed, weekly, note and missing rows", t, func() {
		loc, _ := time.LoadLocation("America/New_York")
		out, err := ics.Export(board(), ics.ExportOptions{Location: loc})

		Convey("Then one event is written per applicable day", func() {
			So(err, ShouldBeNil)
			So(strings.Count(out, "BEGIN:VEVENT"), ShouldEqual, 7+5)
			So(out, ShouldContainSubstring, "BEGIN:VCALENDAR")
			So(out, ShouldContainSubstring, "METHOD:PUBLISH")
		})

		Convey("Then times are placed on the right dates in the local zone", func() {
			// Sunday 4:25 PM EST is 21:25 UTC.
			So(out, ShouldContainSubstring, "DTSTART:20251116T212500Z")
			// Thursday is the last mincha.
			So(out, ShouldContainSubstring, "DTSTART:20251120T212500Z")
			So(out, ShouldNotContainSubstring, "DTSTART:20251121T212500Z")
			// Shabbos shacharis, 7:00 AM EST.
			So(out, ShouldContainSubstring, "DTSTART:20251122T120000Z")
		})

		Convey("Then computed rows explain their source", func() {
			So(out, ShouldContainSubstring, "SUMMARY:Mincha")
			So(out, ShouldContainSubstring, "Weekly SunsetDefault from 2025-11-20")
			So(out, ShouldNotContainSubstring, "Daf Yomi")
		})
	})

	Convey("Given no board", t, func() {
		_, err := ics.Export(nil, ics.ExportOptions{})
		So(err, ShouldNotBeNil)
	})

	Convey("Given a board without a week", t, func() {
		_, err := ics.Export(&model.Board{}, ics.ExportOptions{})
		So(err, ShouldNotBeNil)
	})
}
