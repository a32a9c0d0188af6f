package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// traceSentinel is the precipitation value recorded for a trace amount.
const traceSentinel = "T"

// Normalizer converts raw rows into canonical records. Local times in the
// sources are interpreted in loc and stored as UTC.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer returns a Normalizer for sources recorded in loc (UTC when nil).
func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

// Incident normalizes one incident row. Unparseable coordinates leave
// Coordinates nil rather than failing the row; only a bad date is malformed.
// Neighborhood and AccidentType are left for enrichment.
func (n *Normalizer) Incident(b BoundSchema, source string, row int, rec RawRecord) (IncidentRecord, error) {
	raw, ok := b.Value(rec, FieldDate)
	if !ok {
		return IncidentRecord{}, malformed(FamilyIncidents, source, row, errors.New("missing date"))
	}
	date, err := parseLocal(b.Schema.DateLayout, raw, n.loc)
	if err != nil {
		return IncidentRecord{}, malformed(FamilyIncidents, source, row, fmt.Errorf("date %q: %w", raw, err))
	}

	lonRaw, _ := b.Value(rec, FieldLongitude)
	latRaw, _ := b.Value(rec, FieldLatitude)

	out := IncidentRecord{
		Date:        date,
		StreetName:  b.ptr(rec, FieldStreet),
		CrossStreet: b.ptr(rec, FieldCrossStreet),
		Location:    b.ptr(rec, FieldLocation),
		DayOfWeek:   b.ptr(rec, FieldDayOfWeek),
		Object1:     b.ptr(rec, FieldObject1),
		Object2:     b.ptr(rec, FieldObject2),
		Source:      source,
	}
	p := orb.Point{parseCoordinate(lonRaw), parseCoordinate(latRaw)}
	out.Coordinates = &p
	if !out.HasValidCoordinates() {
		out.Coordinates = nil
	}
	out.ID = generateID(string(FamilyIncidents), source, row, date, lonRaw, latRaw)
	return out, nil
}

// Citation normalizes one citation row. The label is left for classification.
func (n *Normalizer) Citation(b BoundSchema, source string, row int, rec RawRecord) (CitationRecord, error) {
	raw, ok := b.Value(rec, FieldDate)
	if !ok {
		return CitationRecord{}, malformed(FamilyCitations, source, row, errors.New("missing date"))
	}
	date, err := parseLocal(b.Schema.DateLayout, raw, n.loc)
	if err != nil {
		return CitationRecord{}, malformed(FamilyCitations, source, row, fmt.Errorf("date %q: %w", raw, err))
	}
	desc, _ := b.Value(rec, FieldCharge)
	return CitationRecord{
		ID:          generateID(string(FamilyCitations), source, row, date, desc),
		Date:        date,
		Description: desc,
		Source:      source,
	}, nil
}

// Weather normalizes one daily weather row. The date is local midnight in the
// source zone. Temperatures are required. Visibility defaults to 0 when
// empty; precipitation defaults to 0 when unparseable, with "T" recorded as a
// trace. The returned fields are the ones that fell back to a default.
func (n *Normalizer) Weather(b BoundSchema, source string, row int, rec RawRecord) (WeatherRecord, []Field, error) {
	raw, ok := b.Value(rec, FieldDate)
	if !ok {
		return WeatherRecord{}, nil, malformed(FamilyWeather, source, row, errors.New("missing date"))
	}
	date, err := parseLocal(b.Schema.DateLayout, raw, n.loc)
	if err != nil {
		return WeatherRecord{}, nil, malformed(FamilyWeather, source, row, fmt.Errorf("date %q: %w", raw, err))
	}

	out := WeatherRecord{Date: date}
	temps := []struct {
		field Field
		dst   *int
	}{
		{FieldTempMax, &out.Temperature.Max},
		{FieldTempMean, &out.Temperature.Mean},
		{FieldTempMin, &out.Temperature.Min},
	}
	for _, t := range temps {
		v, _ := b.Value(rec, t.field)
		parsed, ok := parseIntOr(v, 0)
		if !ok {
			return WeatherRecord{}, nil, malformed(FamilyWeather, source, row, fmt.Errorf("%s %q: not an integer", t.field, v))
		}
		*t.dst = parsed
	}

	var defaulted []Field
	vis := []struct {
		field Field
		dst   *int
	}{
		{FieldVisibilityMax, &out.Visibility.Max},
		{FieldVisibilityAvg, &out.Visibility.Mean},
		{FieldVisibilityMin, &out.Visibility.Min},
	}
	for _, v := range vis {
		s, present := b.Value(rec, v.field)
		if !present {
			continue
		}
		parsed, ok := parseIntOr(s, 0)
		if !ok {
			defaulted = append(defaulted, v.field)
		}
		*v.dst = parsed
	}

	precip, _ := b.Value(rec, FieldPrecipitation)
	switch {
	case strings.EqualFold(precip, traceSentinel):
		out.PrecipitationTrace = true
	default:
		v, ok := parseFloatOr(precip, 0)
		if !ok || v < 0 {
			defaulted = append(defaulted, FieldPrecipitation)
			v = 0
		}
		out.PrecipitationInches = v
	}

	events, _ := b.Value(rec, FieldEvents)
	out.Events = ParseWeatherEvents(events)
	return out, defaulted, nil
}
