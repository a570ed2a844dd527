package schedule

import (
	"fmt"
	"slices"
	"time"

	"shulscreen/internal/aggregate"
	"shulscreen/internal/clock"
	appLog "shulscreen/internal/log"
	"shulscreen/internal/model"
	"shulscreen/internal/week"
)

// Resolver turns entries into display rows. It holds no state beyond its
// inputs; every entry resolves independently.
type Resolver struct {
	Mode     clock.Mode
	Today    time.Weekday
	Profiles week.Profiles
	// Weekly holds one aggregate per profile name.
	Weekly map[string]aggregate.Weekly
}

// Resolve returns the row for e and whether it should be shown at all.
// Only fixedIfDow rows are ever hidden.
func (r Resolver) Resolve(e Entry) (model.Row, bool) {
	rule := e.Rule()
	row := model.Row{Label: e.Label, Kind: string(rule.Kind())}

	switch v := rule.(type) {
	case Fixed:
		row.Days = allDays()
		return r.fixed(row, v.Time), true

	case FixedIfDow:
		if !slices.Contains(v.Days, r.Today) {
			return model.Row{}, false
		}
		row.Days = weekdaysToInts(v.Days)
		return r.fixed(row, v.Time), true

	case ManualNote:
		row.Display = v.Note
		row.Available = true
		return row, true

	case WeeklyEarliest:
		ext, name, ok := r.lookup(v.Weekly, aggregate.Weekly.EarliestOf)
		row.Days = r.profileDays(name)
		if !ok {
			return unavailable(row), true
		}
		return r.computed(row, v.Weekly, name, ext, nil), true

	case WeeklyLatest:
		ext, name, ok := r.lookup(v.Weekly, aggregate.Weekly.LatestOf)
		row.Days = r.profileDays(name)
		if !ok {
			return unavailable(row), true
		}
		return r.computed(row, v.Weekly, name, ext, nil), true

	case WeeklyLatestOrFixed:
		ext, name, ok := r.lookup(v.Weekly, aggregate.Weekly.LatestOf)
		row.Days = r.profileDays(name)
		if !ok {
			// The floor clamps a computed value; it never stands in for one.
			return unavailable(row), true
		}
		var floor *clock.Minutes
		if f, ok := clock.ParseFixed(v.Floor); ok {
			floor = &f
		}
		return r.computed(row, v.Weekly, name, ext, floor), true

	case Unknown:
		appLog.Debug("schedule: unknown entry type", "label", e.Label, "type", v.Tag)
		return unavailable(row), true
	}

	return unavailable(row), true
}

// List resolves entries in order, dropping hidden rows.
func (r Resolver) List(entries []Entry) []model.Row {
	out := make([]model.Row, 0, len(entries))
	for _, e := range entries {
		row, show := r.Resolve(e)
		if !show {
			continue
		}
		out = append(out, row)
	}
	return out
}

// weekly returns the aggregate for a profile reference. Unknown names use
// the default profile's aggregate.
func (r Resolver) weekly(ref string) (aggregate.Weekly, string, bool) {
	name := r.Profiles.Name(ref)
	if w, ok := r.Weekly[name]; ok {
		return w, name, true
	}
	w, ok := r.Weekly[week.DefaultProfile]
	return w, week.DefaultProfile, ok
}

func (r Resolver) lookup(ref Weekly, pick func(aggregate.Weekly, string) (aggregate.Extreme, bool)) (aggregate.Extreme, string, bool) {
	w, name, ok := r.weekly(ref.Profile)
	if !ok {
		return aggregate.Extreme{}, name, false
	}
	ext, ok := pick(w, ref.Field)
	return ext, name, ok
}

func (r Resolver) fixed(row model.Row, hhmm string) model.Row {
	m, ok := clock.ParseFixed(hhmm)
	if !ok {
		return unavailable(row)
	}
	return r.withMinutes(row, m)
}

func (r Resolver) computed(row model.Row, ref Weekly, profile string, ext aggregate.Extreme, floor *clock.Minutes) model.Row {
	m := ext.Minutes + clock.Minutes(ref.OffsetMin)
	src := &model.Source{
		Field:     ref.Field,
		Profile:   profile,
		Date:      ext.Date.String(),
		OffsetMin: ref.OffsetMin,
	}
	if floor != nil && *floor > m {
		src.Clamped = true
	}
	if floor != nil {
		m = clock.Max(m, *floor)
	}
	row.Source = src
	return r.withMinutes(row, m)
}

func (r Resolver) withMinutes(row model.Row, m clock.Minutes) model.Row {
	v := float64(clock.Normalize(m))
	row.Minutes = &v
	row.Display = clock.Format(m, r.Mode)
	row.Available = true
	return row
}

func (r Resolver) profileDays(name string) []int {
	return weekdaysToInts(r.Profiles.Resolve(name).Days)
}

func unavailable(row model.Row) model.Row {
	row.Display = model.Unavailable
	row.Available = false
	row.Minutes = nil
	return row
}

func allDays() []int {
	return []int{0, 1, 2, 3, 4, 5, 6}
}

func weekdaysToInts(days []time.Weekday) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	return out
}

// BadgeRule configures the single weekly summary value.
type BadgeRule struct {
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	BaseField   string `yaml:"base_field,omitempty" json:"base_field,omitempty"`
	OffsetMin   *int   `yaml:"offset_min,omitempty" json:"offset_min,omitempty"`
	WeekProfile string `yaml:"week_profile,omitempty" json:"week_profile,omitempty"`
}

const (
	defaultBadgeLabel  = "Mincha/Maariv"
	defaultBadgeField  = "SunsetDefault"
	defaultBadgeOffset = -15
)

// Field returns the configured base field or the sunset default.
func (b BadgeRule) Field() string {
	if b.BaseField == "" {
		return defaultBadgeField
	}
	return b.BaseField
}

// Offset returns the configured offset; an explicit 0 is kept.
func (b BadgeRule) Offset() int {
	if b.OffsetMin == nil {
		return defaultBadgeOffset
	}
	return *b.OffsetMin
}

func (b BadgeRule) label() string {
	if b.Label == "" {
		return defaultBadgeLabel
	}
	return b.Label
}

// Badge resolves the weekly summary with weeklyEarliest semantics and
// explains where the value came from.
func (r Resolver) Badge(rule BadgeRule) model.Badge {
	ref := Weekly{Field: rule.Field(), Profile: rule.WeekProfile, OffsetMin: rule.Offset()}
	ext, _, ok := r.lookup(ref, aggregate.Weekly.EarliestOf)
	if !ok {
		return model.Badge{
			Text:          fmt.Sprintf("%s: %s", rule.label(), model.Unavailable),
			Display:       model.Unavailable,
			Justification: "Weekly rule could not be computed",
		}
	}

	display := clock.Format(ext.Minutes+clock.Minutes(ref.OffsetMin), r.Mode)
	return model.Badge{
		Text:          fmt.Sprintf("%s (weekly): %s", rule.label(), display),
		Display:       display,
		Available:     true,
		Justification: fmt.Sprintf("Based on earliest %s in week (%s), offset %d min", ref.Field, ext.Date, ref.OffsetMin),
	}
}
