package week

import (
	"slices"
	"sort"
	"time"
)

// DefaultProfile is the profile used when an entry names none, or names one
// that is not configured.
const DefaultProfile = "sunThu"

// Days is the length of a week range.
const Days = 7

// WeekRange returns the seven consecutive dates starting at the most recent
// occurrence of start on or before anchor.
func WeekRange(anchor Date, start time.Weekday) []Date {
	back := (int(anchor.Weekday()) - int(start) + Days) % Days
	first := anchor.AddDays(-back)

	out := make([]Date, Days)
	for i := range out {
		out[i] = first.AddDays(i)
	}
	return out
}

// ProfileDates keeps the dates of rng whose weekday is in include,
// preserving order.
func ProfileDates(rng []Date, include []time.Weekday) []Date {
	out := make([]Date, 0, len(rng))
	for _, d := range rng {
		if slices.Contains(include, d.Weekday()) {
			out = append(out, d)
		}
	}
	return out
}

// Anchor picks the date whose week should be displayed. With shift enabled,
// the last two weekdays before the week boundary (Friday and Saturday for a
// Sunday start) look ahead to the upcoming week.
func Anchor(today Date, start time.Weekday, shift bool) Date {
	if !shift {
		return today
	}
	dow := today.Weekday()
	last := (start + Days - 1) % Days
	secondLast := (start + Days - 2) % Days
	if dow == last || dow == secondLast {
		return today.AddDays(Days)
	}
	return today
}

// Union merges date lists into one ascending, de-duplicated list.
func Union(lists ...[]Date) []Date {
	seen := make(map[Date]struct{})
	out := make([]Date, 0)
	for _, l := range lists {
		for _, d := range l {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	Sort(out)
	return out
}

// Sort orders dates ascending in place.
func Sort(dates []Date) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
