package domain

import (
	"fmt"
	"time"
)

// MissingAstroPolicy selects how a weather record with no astronomical
// record for its day is handled.
type MissingAstroPolicy string

const (
	MissingAstroFill MissingAstroPolicy = "fill"
	MissingAstroDrop MissingAstroPolicy = "drop"
	MissingAstroFail MissingAstroPolicy = "fail"
)

// ParseMissingAstroPolicy validates a policy name.
func ParseMissingAstroPolicy(s string) (MissingAstroPolicy, error) {
	switch p := MissingAstroPolicy(s); p {
	case MissingAstroFill, MissingAstroDrop, MissingAstroFail:
		return p, nil
	}
	return "", fmt.Errorf("invalid missing astro policy %q: must be fill, drop, or fail", s)
}

// AstroIndex maps calendar days to sunrise/sunset across every loaded year.
type AstroIndex struct {
	loc        *time.Location
	days       map[Day]AstronomicalRecord
	duplicates []Day
}

// NewAstroIndex indexes records by day. When a day occurs twice the first
// record wins and the day is reported by Duplicates. Weather dates are mapped
// to days in loc.
func NewAstroIndex(records []AstronomicalRecord, loc *time.Location) *AstroIndex {
	if loc == nil {
		loc = time.UTC
	}
	idx := &AstroIndex{loc: loc, days: make(map[Day]AstronomicalRecord, len(records))}
	for _, r := range records {
		if _, ok := idx.days[r.Date]; ok {
			idx.duplicates = append(idx.duplicates, r.Date)
			continue
		}
		idx.days[r.Date] = r
	}
	return idx
}

// Lookup returns the record for day.
func (idx *AstroIndex) Lookup(day Day) (AstronomicalRecord, bool) {
	r, ok := idx.days[day]
	return r, ok
}

// Len returns the number of indexed days.
func (idx *AstroIndex) Len() int {
	return len(idx.days)
}

// Duplicates returns the days that appeared more than once.
func (idx *AstroIndex) Duplicates() []Day {
	return idx.duplicates
}

// Join attaches sunrise and sunset to w. On a miss w is returned unchanged
// with an error wrapping ErrMissingJoinKey.
func (idx *AstroIndex) Join(w WeatherRecord) (WeatherRecord, error) {
	day := DayOf(w.Date, idx.loc)
	r, ok := idx.Lookup(day)
	if !ok {
		return w, fmt.Errorf("%w: no sunrise/sunset for %s", ErrMissingJoinKey, day)
	}
	sunrise, sunset := r.Sunrise, r.Sunset
	w.Sunrise = &sunrise
	w.Sunset = &sunset
	return w, nil
}
