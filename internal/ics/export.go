// Package ics publishes the week's davening times as an iCalendar feed.
package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"shulscreen/internal/clock"
	appLog "shulscreen/internal/log"
	"shulscreen/internal/model"
	"shulscreen/internal/week"
)

const (
	prodID          = "-//shulscreen//davening times//EN"
	defaultDuration = 30 * time.Minute
)

var rruleDays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// ExportOptions controls the generated feed.
type ExportOptions struct {
	Location *time.Location
	// Duration is the length given to every event. Zero means 30 minutes.
	Duration time.Duration
	// Stamp is written as DTSTAMP; zero uses the board's UpdatedAt.
	Stamp time.Time
}

// Export turns every row with a clock time into one event per day the row
// applies to within the board's week. Notes and unavailable rows are skipped.
func Export(b *model.Board, opts ExportOptions) (string, error) {
	if b == nil {
		return "", errors.New("ics: no board")
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	dur := opts.Duration
	if dur <= 0 {
		dur = defaultDuration
	}
	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = b.UpdatedAt
	}

	start, err := week.ParseDate(b.Week.Start)
	if err != nil {
		return "", fmt.Errorf("ics: week start: %w", err)
	}
	end, err := week.ParseDate(b.Week.End)
	if err != nil {
		return "", fmt.Errorf("ics: week end: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetProductId(prodID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetName(b.Header.Name)

	lists := []struct {
		name string
		rows []model.Row
	}{
		{"Shacharis", b.Lists.Shacharis},
		{"Mincha", b.Lists.Mincha},
		{"Maariv", b.Lists.Maariv},
	}

	events := 0
	for _, l := range lists {
		for i, row := range l.rows {
			if !row.Available || row.Minutes == nil {
				continue
			}
			times, err := occurrences(row, start, end, loc)
			if err != nil {
				appLog.Error("ics: row expansion failed", err, "list", l.name, "label", row.Label)
				continue
			}
			for _, t := range times {
				ev := cal.AddEvent(uid(l.name, i, t))
				ev.SetDtStampTime(stamp)
				ev.SetStartAt(t)
				ev.SetEndAt(t.Add(dur))
				ev.SetSummary(summary(l.name, row.Label))
				if b.Header.LocationLabel != "" {
					ev.SetLocation(b.Header.LocationLabel)
				}
				if d := describe(row); d != "" {
					ev.SetDescription(d)
				}
				events++
			}
		}
	}

	appLog.Debug("ics: exported", "week_start", b.Week.Start, "events", events)
	return cal.Serialize(), nil
}

// occurrences expands a row's clock time over its weekdays between start and
// end (inclusive).
func occurrences(row model.Row, start, end week.Date, loc *time.Location) ([]time.Time, error) {
	days := make([]rrule.Weekday, 0, len(row.Days))
	for _, d := range row.Days {
		if d < 0 || d > 6 {
			continue
		}
		days = append(days, rruleDays[d])
	}
	if len(days) == 0 {
		return nil, nil
	}

	h, m := clock.Hours(clock.Minutes(*row.Minutes))
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: days,
		Dtstart:   start.At(loc, h, m),
		Until:     end.At(loc, 23, 59),
	})
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}

func uid(list string, index int, t time.Time) string {
	return fmt.Sprintf("%s-%d-%s@shulscreen", strings.ToLower(list), index, t.UTC().Format("20060102T150405Z"))
}

func summary(list, label string) string {
	if label == "" || strings.EqualFold(label, list) {
		return list
	}
	return fmt.Sprintf("%s: %s", list, label)
}

func describe(row model.Row) string {
	if row.Source == nil {
		return ""
	}
	s := row.Source
	text := fmt.Sprintf("Weekly %s from %s (%s), offset %d min", s.Field, s.Date, s.Profile, s.OffsetMin)
	if s.Clamped {
		text += ", raised to the fixed minimum"
	}
	return text
}
