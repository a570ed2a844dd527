package schedule

import (
	"sort"
	"time"

	"shulscreen/internal/aggregate"
	"shulscreen/internal/clock"
	"shulscreen/internal/model"
	"shulscreen/internal/week"
)

// Lists are the three davening schedules, each in display order.
type Lists struct {
	Shacharis []Entry `yaml:"shacharis" json:"shacharis" validate:"dive"`
	Mincha    []Entry `yaml:"mincha" json:"mincha" validate:"dive"`
	Maariv    []Entry `yaml:"maariv" json:"maariv" validate:"dive"`
}

func (l Lists) all() []Entry {
	out := make([]Entry, 0, len(l.Shacharis)+len(l.Mincha)+len(l.Maariv))
	out = append(out, l.Shacharis...)
	out = append(out, l.Mincha...)
	return append(out, l.Maariv...)
}

// ZmanItem is one line of today's zmanim grid.
type ZmanItem struct {
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
	Field string `yaml:"field" json:"field"`
}

// Settings is everything the engine needs from configuration.
type Settings struct {
	Mode           clock.Mode
	WeekStart      time.Weekday
	AnchorNextWeek bool
	Profiles       week.Profiles

	Lists  Lists
	Badge  BadgeRule
	Zmanim []ZmanItem

	Name          string
	LocationLabel string
}

// Plan is the date and field set one refresh cycle works on.
type Plan struct {
	Today  week.Date
	Anchor week.Date
	Range  []week.Date
	// Profiles holds the dates of every profile the schedule references.
	Profiles map[string][]week.Date
	// Fields are the zman fields that need weekly aggregation.
	Fields []string
	// Fetch is the single coalesced set of dates to request: the union of all
	// profile dates plus today, ascending.
	Fetch []week.Date
}

// NewPlan works out which dates and fields a cycle needs for today.
func NewPlan(s Settings, today week.Date) Plan {
	anchor := week.Anchor(today, s.WeekStart, s.AnchorNextWeek)
	rng := week.WeekRange(anchor, s.WeekStart)

	used := map[string]struct{}{week.DefaultProfile: {}}
	fields := map[string]struct{}{s.Badge.Field(): {}}
	used[s.Profiles.Name(s.Badge.WeekProfile)] = struct{}{}

	for _, e := range s.Lists.all() {
		w, ok := weeklyRule(e.Rule())
		if !ok {
			continue
		}
		used[s.Profiles.Name(w.Profile)] = struct{}{}
		if w.Field != "" {
			fields[w.Field] = struct{}{}
		}
	}

	p := Plan{
		Today:    today,
		Anchor:   anchor,
		Range:    rng,
		Profiles: make(map[string][]week.Date, len(used)),
	}
	lists := make([][]week.Date, 0, len(used)+1)
	for name := range used {
		dates := week.ProfileDates(rng, s.Profiles.Resolve(name).Days)
		p.Profiles[name] = dates
		lists = append(lists, dates)
	}
	lists = append(lists, []week.Date{today})
	p.Fetch = week.Union(lists...)

	for f := range fields {
		p.Fields = append(p.Fields, f)
	}
	sort.Strings(p.Fields)
	return p
}

// Build is the pure core: it turns settings, a plan and the fetched days into
// a board. Missing days or fields only ever make individual rows unavailable.
func Build(s Settings, p Plan, days map[week.Date]model.Day) model.Board {
	ds := aggregate.Parse(RawFromDays(days))
	weekly := aggregate.ComputeProfiles(ds, p.Profiles, p.Fields)

	r := Resolver{
		Mode:     s.Mode,
		Today:    p.Today.Weekday(),
		Profiles: s.Profiles,
		Weekly:   weekly,
	}

	today := days[p.Today]
	b := model.Board{
		Today:  p.Today.String(),
		Header: header(s, p.Today, today),
		Zmanim: zmanimGrid(s, today),
		Lists: model.Lists{
			Shacharis: r.List(s.Lists.Shacharis),
			Mincha:    r.List(s.Lists.Mincha),
			Maariv:    r.List(s.Lists.Maariv),
		},
		Badge: r.Badge(s.Badge),
		Week:  weekInfo(p),
	}
	b.Status = "Week computed from " + b.Week.Start
	b.Missing = b.CountMissing()
	return b
}

// RawFromDays reshapes per-day payloads into field -> date -> timestamp.
func RawFromDays(days map[week.Date]model.Day) aggregate.Raw {
	raw := aggregate.Raw{}
	for d, day := range days {
		for field, v := range day.Zman {
			if v == "" {
				continue
			}
			raw.Set(field, d, v)
		}
	}
	return raw
}

func header(s Settings, today week.Date, day model.Day) model.Header {
	h := model.Header{
		Name:          s.Name,
		LocationLabel: s.LocationLabel,
		DateLine:      firstNonEmpty(day.Civil.CivilLong, day.Civil.FullShort, today.String()),
		JewishDate:    firstNonEmpty(day.Civil.JewishLong, day.Civil.JewishShort),
	}
	if h.Name == "" {
		h.Name = "Shul Screen"
	}
	return h
}

func zmanimGrid(s Settings, day model.Day) []model.Row {
	rows := make([]model.Row, 0, len(s.Zmanim))
	for _, it := range s.Zmanim {
		row := model.Row{Label: firstNonEmpty(it.Label, it.Field), Kind: "zman"}
		m, ok := clock.ParseTimestamp(day.Zman[it.Field])
		if !ok {
			rows = append(rows, unavailable(row))
			continue
		}
		v := float64(m)
		row.Minutes = &v
		row.Display = clock.Format(m, s.Mode)
		row.Available = true
		rows = append(rows, row)
	}
	return rows
}

func weekInfo(p Plan) model.Week {
	w := model.Week{
		Anchor:   p.Anchor.String(),
		Profiles: make(map[string][]string, len(p.Profiles)),
	}
	if len(p.Range) > 0 {
		w.Start = p.Range[0].String()
		w.End = p.Range[len(p.Range)-1].String()
	}
	for name, dates := range p.Profiles {
		strs := make([]string, 0, len(dates))
		for _, d := range dates {
			strs = append(strs, d.String())
		}
		w.Profiles[name] = strs
	}
	return w
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
