// Package schedule resolves configured davening entries against weekly
// zman aggregates and assembles the board a display renders.
package schedule

import (
	"time"
)

// Kind is the type tag of a schedule entry.
type Kind string

const (
	KindFixed               Kind = "fixed"
	KindFixedIfDow          Kind = "fixedIfDow"
	KindManualNote          Kind = "manualNote"
	KindWeeklyEarliest      Kind = "weeklyEarliestZman"
	KindWeeklyLatest        Kind = "weeklyLatestZman"
	KindWeeklyLatestOrFixed Kind = "weeklyLatestZmanOrFixed"
	KindUnknown             Kind = "unknown"
)

// kindAliases maps every accepted config spelling to its Kind.
var kindAliases = map[string]Kind{
	"fixed":                   KindFixed,
	"fixedIfDow":              KindFixedIfDow,
	"manualNote":              KindManualNote,
	"weeklyEarliestZman":      KindWeeklyEarliest,
	"weeklyEarliest":          KindWeeklyEarliest,
	"weeklyLatestZman":        KindWeeklyLatest,
	"weeklyLatest":            KindWeeklyLatest,
	"weeklyLatestZmanOrFixed": KindWeeklyLatestOrFixed,
	"weeklyLatestOrFixed":     KindWeeklyLatestOrFixed,
}

// ParseKind maps a type tag to a Kind; unrecognized tags are KindUnknown.
func ParseKind(tag string) Kind {
	if k, ok := kindAliases[tag]; ok {
		return k
	}
	return KindUnknown
}

// Entry is one configured row of a davening list. Which fields matter
// depends on Type; see Rule.
type Entry struct {
	Label string `yaml:"label" json:"label"`
	Type  string `yaml:"type" json:"type"`

	// Time is the "H:MM" value of fixed and fixedIfDow rows.
	Time string `yaml:"time,omitempty" json:"time,omitempty"`
	// Dow is the weekday allow-list (Sunday = 0) of fixedIfDow rows.
	Dow []int `yaml:"dow,omitempty" json:"dow,omitempty" validate:"dive,min=0,max=6"`
	// Note is shown verbatim by manualNote rows.
	Note string `yaml:"note,omitempty" json:"note,omitempty"`

	BaseField   string `yaml:"base_field,omitempty" json:"base_field,omitempty"`
	OffsetMin   int    `yaml:"offset_min,omitempty" json:"offset_min,omitempty"`
	WeekProfile string `yaml:"week_profile,omitempty" json:"week_profile,omitempty"`
	// FixedTime is the floor of weeklyLatestZmanOrFixed rows.
	FixedTime string `yaml:"fixed_time,omitempty" json:"fixed_time,omitempty"`
}

// Rule is the closed set of entry variants. Resolver switches over it
// exhaustively.
type Rule interface {
	Kind() Kind
}

type Fixed struct {
	Time string
}

type FixedIfDow struct {
	Time string
	Days []time.Weekday
}

type ManualNote struct {
	Note string
}

// Weekly is shared by the three aggregate-driven variants.
type Weekly struct {
	Field     string
	Profile   string
	OffsetMin int
}

type WeeklyEarliest struct{ Weekly }

type WeeklyLatest struct{ Weekly }

type WeeklyLatestOrFixed struct {
	Weekly
	Floor string
}

// Unknown carries the unrecognized tag so it can be logged.
type Unknown struct {
	Tag string
}

func (Fixed) Kind() Kind               { return KindFixed }
func (FixedIfDow) Kind() Kind          { return KindFixedIfDow }
func (ManualNote) Kind() Kind          { return KindManualNote }
func (WeeklyEarliest) Kind() Kind      { return KindWeeklyEarliest }
func (WeeklyLatest) Kind() Kind        { return KindWeeklyLatest }
func (WeeklyLatestOrFixed) Kind() Kind { return KindWeeklyLatestOrFixed }
func (Unknown) Kind() Kind             { return KindUnknown }

// Rule converts the config record into its variant.
func (e Entry) Rule() Rule {
	w := Weekly{Field: e.BaseField, Profile: e.WeekProfile, OffsetMin: e.OffsetMin}

	switch ParseKind(e.Type) {
	case KindFixed:
		return Fixed{Time: e.Time}
	case KindFixedIfDow:
		days := make([]time.Weekday, 0, len(e.Dow))
		for _, d := range e.Dow {
			days = append(days, time.Weekday(d))
		}
		return FixedIfDow{Time: e.Time, Days: days}
	case KindManualNote:
		return ManualNote{Note: e.Note}
	case KindWeeklyEarliest:
		return WeeklyEarliest{w}
	case KindWeeklyLatest:
		return WeeklyLatest{w}
	case KindWeeklyLatestOrFixed:
		return WeeklyLatestOrFixed{Weekly: w, Floor: e.FixedTime}
	default:
		return Unknown{Tag: e.Type}
	}
}

// weeklyRule returns the aggregate reference of weekly variants.
func weeklyRule(r Rule) (Weekly, bool) {
	switch v := r.(type) {
	case WeeklyEarliest:
		return v.Weekly, true
	case WeeklyLatest:
		return v.Weekly, true
	case WeeklyLatestOrFixed:
		return v.Weekly, true
	default:
		return Weekly{}, false
	}
}
