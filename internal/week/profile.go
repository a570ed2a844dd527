package week

import "time"

// Profile is a named weekday allow-list used to scope weekly aggregation.
type Profile struct {
	Name string
	Days []time.Weekday
}

// Profiles is the configured set of week profiles keyed by name.
type Profiles map[string]Profile

// DefaultProfiles returns the two profiles the display ships with:
// Sunday–Thursday and Sunday–Friday.
func DefaultProfiles() Profiles {
	return Profiles{
		"sunThu": {Name: "sunThu", Days: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday}},
		"sunFri": {Name: "sunFri", Days: []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}},
	}
}

// ProfilesFromInts converts a config map of weekday numbers. Values outside
// 0..6 are dropped.
func ProfilesFromInts(m map[string][]int) Profiles {
	out := make(Profiles, len(m))
	for name, days := range m {
		p := Profile{Name: name, Days: make([]time.Weekday, 0, len(days))}
		for _, d := range days {
			if d < 0 || d > 6 {
				continue
			}
			p.Days = append(p.Days, time.Weekday(d))
		}
		out[name] = p
	}
	return out
}

// Name returns the effective profile name for a reference: empty and unknown
// names collapse to DefaultProfile.
func (p Profiles) Name(ref string) string {
	if ref == "" {
		return DefaultProfile
	}
	if _, ok := p[ref]; !ok {
		return DefaultProfile
	}
	return ref
}

// Resolve returns the profile for ref, falling back to DefaultProfile and
// finally to the built-in Sunday–Thursday set.
func (p Profiles) Resolve(ref string) Profile {
	if prof, ok := p[p.Name(ref)]; ok {
		return prof
	}
	return DefaultProfiles()[DefaultProfile]
}
