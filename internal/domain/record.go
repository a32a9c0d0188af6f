package domain

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// RawRecord is one source row keyed by its header names, exactly as read.
type RawRecord map[string]string

// Table is a header-row source file loaded into memory. Vintage selects the
// schema used to read it. A row the reader could not split is kept as a nil
// RawRecord with its error in RowErrors, keyed by 1-based row.
type Table struct {
	Name      string
	Vintage   string
	Header    []string
	Rows      []RawRecord
	RowErrors map[int]error
}

// AstroSource is one year-indexed sunrise/sunset table as raw lines. A zero
// Year is read from the table header.
type AstroSource struct {
	Name  string
	Year  int
	Lines []string
}

// IncidentRecord is a normalized road-incident report.
//
// Coordinates is nil when the source coordinates did not parse. Neighborhood
// is nil iff no region contains Coordinates. AccidentType is nil when the
// object pair does not classify.
type IncidentRecord struct {
	ID           string     `json:"id"`
	Date         time.Time  `json:"date"`
	Coordinates  *orb.Point `json:"coordinates"`
	StreetName   *string    `json:"streetName"`
	CrossStreet  *string    `json:"crossStreet"`
	Location     *string    `json:"location"`
	DayOfWeek    *string    `json:"dayOfWeek"`
	Object1      *string    `json:"object1"`
	Object2      *string    `json:"object2"`
	Neighborhood *string    `json:"neighborhood"`
	AccidentType *Category  `json:"accidentType"`
	Source       string     `json:"source"`
}

// HasValidCoordinates reports whether Coordinates is set and finite.
func (r IncidentRecord) HasValidCoordinates() bool {
	if r.Coordinates == nil {
		return false
	}
	for _, v := range r.Coordinates {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CitationRecord is a normalized traffic citation.
type CitationRecord struct {
	ID          string         `json:"id"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Label       *CitationLabel `json:"label"`
	Source      string         `json:"source"`
}

// AstronomicalRecord holds one calendar day's sunrise and sunset.
type AstronomicalRecord struct {
	Date    Day       `json:"date"`
	Sunrise time.Time `json:"sunrise"`
	Sunset  time.Time `json:"sunset"`
}

// Range is a daily min/max/mean triple.
type Range struct {
	Min  int `json:"min"`
	Max  int `json:"max"`
	Mean int `json:"mean"`
}

// WeatherEvents is the closed set of weather events tracked per day.
type WeatherEvents struct {
	Fog          bool `json:"fog"`
	Rain         bool `json:"rain"`
	Thunderstorm bool `json:"thunderstorm"`
	Snow         bool `json:"snow"`
	Hail         bool `json:"hail"`
}

// WeatherRecord is a normalized daily weather observation. Sunrise and
// Sunset are nil when the astronomical tables have no entry for the day.
type WeatherRecord struct {
	Date                time.Time     `json:"date"`
	Sunrise             *time.Time    `json:"sunrise"`
	Sunset              *time.Time    `json:"sunset"`
	Temperature         Range         `json:"temperature"`
	Visibility          Range         `json:"visibility"`
	PrecipitationInches float64       `json:"precipitationInches"`
	PrecipitationTrace  bool          `json:"precipitationTrace"`
	Events              WeatherEvents `json:"events"`
}

// NeighborhoodStat is the accident choropleth value for one region.
type NeighborhoodStat struct {
	ID        string  `json:"id"`
	Accidents int     `json:"accidents"`
	Rating    float64 `json:"accidentRating"`
}
