// Package aggregate computes, per zman field, the earliest and latest value
// across the dates of a week profile.
package aggregate

import (
	"slices"

	"shulscreen/internal/clock"
	"shulscreen/internal/week"
)

// Raw is the data-fetch adapter's output: field -> date -> timestamp.
// A missing date key means the source had no value for that day.
type Raw map[string]map[week.Date]string

// Set records a raw timestamp, allocating the inner map on first use.
func (r Raw) Set(field string, d week.Date, value string) {
	byDate, ok := r[field]
	if !ok {
		byDate = make(map[week.Date]string)
		r[field] = byDate
	}
	byDate[d] = value
}

// Dataset holds parsed clock values: field -> date -> minutes.
type Dataset map[string]map[week.Date]clock.Minutes

// Parse converts raw timestamps. Values that fail to parse are left out so
// they read as "no data" rather than midnight.
func Parse(raw Raw) Dataset {
	ds := make(Dataset, len(raw))
	for field, byDate := range raw {
		parsed := make(map[week.Date]clock.Minutes, len(byDate))
		for d, s := range byDate {
			if m, ok := clock.ParseTimestamp(s); ok {
				parsed[d] = m
			}
		}
		ds[field] = parsed
	}
	return ds
}

// Value looks up one field on one date.
func (ds Dataset) Value(field string, d week.Date) (clock.Minutes, bool) {
	byDate, ok := ds[field]
	if !ok {
		return 0, false
	}
	m, ok := byDate[d]
	return m, ok
}

// Extreme is the value that won a min or max scan and the date it came from.
type Extreme struct {
	Minutes clock.Minutes `json:"minutes"`
	Date    week.Date     `json:"date"`
}

// Weekly is the aggregate for one profile. Fields with no data in range are
// absent from both maps.
type Weekly struct {
	Dates    []week.Date        `json:"dates"`
	Earliest map[string]Extreme `json:"earliest"`
	Latest   map[string]Extreme `json:"latest"`
}

// EarliestOf returns the earliest value of field, if any date had one.
func (w Weekly) EarliestOf(field string) (Extreme, bool) {
	e, ok := w.Earliest[field]
	return e, ok
}

// LatestOf returns the latest value of field, if any date had one.
func (w Weekly) LatestOf(field string) (Extreme, bool) {
	e, ok := w.Latest[field]
	return e, ok
}

// Compute scans only the given dates, in ascending order, for each field.
// Comparisons are strict so the first date seen keeps a tie.
func Compute(ds Dataset, dates []week.Date, fields []string) Weekly {
	ordered := slices.Clone(dates)
	week.Sort(ordered)

	w := Weekly{
		Dates:    ordered,
		Earliest: make(map[string]Extreme),
		Latest:   make(map[string]Extreme),
	}

	for _, field := range fields {
		byDate, ok := ds[field]
		if !ok {
			continue
		}
		for _, d := range ordered {
			m, ok := byDate[d]
			if !ok {
				continue
			}
			if e, seen := w.Earliest[field]; !seen || m < e.Minutes {
				w.Earliest[field] = Extreme{Minutes: m, Date: d}
			}
			if l, seen := w.Latest[field]; !seen || m > l.Minutes {
				w.Latest[field] = Extreme{Minutes: m, Date: d}
			}
		}
	}
	return w
}

// ComputeProfiles aggregates every profile from the same dataset so all of
// them describe one consistent fetch.
func ComputeProfiles(ds Dataset, datesByProfile map[string][]week.Date, fields []string) map[string]Weekly {
	out := make(map[string]Weekly, len(datesByProfile))
	for name, dates := range datesByProfile {
		out[name] = Compute(ds, dates, fields)
	}
	return out
}
