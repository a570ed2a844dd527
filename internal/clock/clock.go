// Package clock models a time of day as minutes since local midnight.
//
// Values keep their fractional part (seconds are folded in as 1/60 of a
// minute) until Format, which is the only place rounding happens. That way
// weekly min/max comparisons see full precision.
package clock

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay is the modulus used by Normalize.
const MinutesPerDay = 24 * 60

// Minutes is a clock time expressed as minutes since local midnight.
type Minutes float64

// Mode selects 12-hour or 24-hour display.
type Mode string

const (
	H12 Mode = "h12"
	H24 Mode = "h24"
)

// ParseMode maps a config string to a Mode. Anything unrecognized is H12.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(H24)) {
		return H24
	}
	return H12
}

var fixedPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// timestampLayouts are tried in order. The zoneless layouts are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp extracts the clock time from a zmanim API timestamp such as
// "2025-11-20T16:41:00Z".
//
// The API writes the intended local clock time in UTC notation, so the value
// is converted to UTC and the UTC hour/minute/second are returned as-is.
// Sub-second precision is dropped.
func ParseTimestamp(s string) (Minutes, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.UTC()
		return Minutes(t.Hour()*60+t.Minute()) + Minutes(t.Second())/60, true
	}
	return 0, false
}

// ParseFixed parses a configured "H:MM" time. Hours and minutes are not range
// checked; Format normalizes whatever comes out.
func ParseFixed(s string) (Minutes, bool) {
	m := fixedPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	mm, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	return Minutes(h*60 + mm), true
}

// Normalize wraps m into [0, MinutesPerDay) using floored modulo, so negative
// values wrap forward.
func Normalize(m Minutes) Minutes {
	r := Minutes(math.Mod(float64(m), MinutesPerDay))
	if r < 0 {
		r += MinutesPerDay
	}
	// -0.0000001 + 1440 can round back up to exactly 1440.
	if r >= MinutesPerDay {
		r = 0
	}
	return r
}

// Round rounds half-up to the nearest whole minute.
func Round(m Minutes) Minutes {
	return Minutes(math.Floor(float64(m) + 0.5))
}

// Max returns the later of two clock values without normalizing either.
func Max(a, b Minutes) Minutes {
	if b > a {
		return b
	}
	return a
}

// Format renders m for display. Rounding to whole minutes happens here.
func Format(m Minutes, mode Mode) string {
	total := int(Normalize(Round(m)))
	hh := total / 60
	mm := total % 60

	if mode == H24 {
		return fmt.Sprintf("%02d:%02d", hh, mm)
	}

	ampm := "AM"
	if hh >= 12 {
		ampm = "PM"
	}
	h := hh % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, mm, ampm)
}

// Hours splits a normalized, rounded value into hour and minute for building
// a time.Time on a given date.
func Hours(m Minutes) (int, int) {
	total := int(Normalize(Round(m)))
	return total / 60, total % 60
}
