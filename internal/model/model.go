package model

import (
	"time"
)

// Unavailable is shown in place of any time that could not be resolved.
const Unavailable = "—"

// Row is one resolved line of a schedule list or of the zmanim grid.
type Row struct {
	Label string `json:"label"`
	// Display is the formatted time, the note text, or Unavailable.
	Display   string `json:"display"`
	Available bool   `json:"available"`
	Kind      string `json:"kind,omitempty"`

	// Minutes is the resolved clock time before formatting. Nil for notes and
	// unavailable rows.
	Minutes *float64 `json:"minutes,omitempty"`

	// Source names the weekly aggregate a computed row came from.
	Source *Source `json:"source,omitempty"`

	// Days lists the weekdays (Sunday = 0) a row applies to within the week.
	Days []int `json:"days,omitempty"`
}

// Source describes where a weekly computed value came from.
type Source struct {
	Field     string `json:"field"`
	Profile   string `json:"profile"`
	Date      string `json:"date"`
	OffsetMin int    `json:"offset_min"`
	// Clamped is true when a fixed floor replaced the computed value.
	Clamped bool `json:"clamped,omitempty"`
}

// Badge is the single-value weekly summary (e.g. weekly mincha/maariv).
type Badge struct {
	Text          string `json:"text"`
	Display       string `json:"display"`
	Available     bool   `json:"available"`
	Justification string `json:"justification"`
}

// Header carries the shul name and today's civil and Jewish dates.
type Header struct {
	Name          string `json:"name"`
	LocationLabel string `json:"location_label"`
	DateLine      string `json:"date_line"`
	JewishDate    string `json:"jewish_date"`
}

// Week describes the date range used for weekly aggregation.
type Week struct {
	Anchor   string              `json:"anchor"`
	Start    string              `json:"start"`
	End      string              `json:"end"`
	Profiles map[string][]string `json:"profiles"`
}

// Lists groups the three davening schedules.
type Lists struct {
	Shacharis []Row `json:"shacharis"`
	Mincha    []Row `json:"mincha"`
	Maariv    []Row `json:"maariv"`
}

// Board is everything one refresh cycle produces for the presentation layer.
type Board struct {
	CycleID   string    `json:"cycle_id"`
	Today     string    `json:"today"`
	UpdatedAt time.Time `json:"updated_at"`
	TimeZone  string    `json:"timezone"`

	Header  Header `json:"header"`
	Zmanim  []Row  `json:"zmanim"`
	Lists   Lists  `json:"lists"`
	Badge   Badge  `json:"badge"`
	Week    Week   `json:"week"`
	Status  string `json:"status"`
	Missing int    `json:"missing"`
}

// CountMissing returns how many time rows on the board are unavailable.
// Notes never count.
func (b *Board) CountMissing() int {
	n := 0
	for _, rows := range [][]Row{b.Zmanim, b.Lists.Shacharis, b.Lists.Mincha, b.Lists.Maariv} {
		for _, r := range rows {
			if !r.Available {
				n++
			}
		}
	}
	if !b.Badge.Available {
		n++
	}
	return n
}

// Day is one date's payload from the zmanim source: raw timestamps keyed by
// field name plus the display strings used for the header.
type Day struct {
	Date  string            `json:"date"`
	Zman  map[string]string `json:"zman"`
	Civil DateStrings       `json:"civil"`
}

// DateStrings are the pre-formatted date strings the source returns.
type DateStrings struct {
	CivilLong   string `json:"civil_long,omitempty"`
	FullShort   string `json:"full_short,omitempty"`
	JewishLong  string `json:"jewish_long,omitempty"`
	JewishShort string `json:"jewish_short,omitempty"`
}
