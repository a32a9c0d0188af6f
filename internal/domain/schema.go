package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Field is a logical column of a source family, independent of the header
// spelling a particular vintage uses.
type Field string

const (
	FieldDate        Field = "date"
	FieldLongitude   Field = "longitude"
	FieldLatitude    Field = "latitude"
	FieldStreet      Field = "streetName"
	FieldCrossStreet Field = "crossStreet"
	FieldLocation    Field = "location"
	FieldDayOfWeek   Field = "dayOfWeek"
	FieldObject1     Field = "object1"
	FieldObject2     Field = "object2"

	FieldCharge Field = "charge"

	FieldTempMax       Field = "temperature.max"
	FieldTempMean      Field = "temperature.mean"
	FieldTempMin       Field = "temperature.min"
	FieldVisibilityMax Field = "visibility.max"
	FieldVisibilityAvg Field = "visibility.mean"
	FieldVisibilityMin Field = "visibility.min"
	FieldPrecipitation Field = "precipitation"
	FieldEvents        Field = "events"
)

// Schema declares, per logical field, the ordered header names a source
// vintage may use, plus the single date layout of that vintage.
type Schema struct {
	Name       string
	DateLayout string
	Fields     map[Field][]string
}

// BoundSchema is a Schema resolved against one table header: each field keeps
// only the aliases that actually occur, with the header's own spelling.
type BoundSchema struct {
	Schema  Schema
	columns map[Field][]string
}

// Bind resolves the schema's aliases against header. Header names are
// compared after trimming whitespace; the original spelling is kept for
// record lookup.
func (s Schema) Bind(header []string) BoundSchema {
	present := make(map[string]string, len(header))
	for _, h := range header {
		key := strings.TrimSpace(h)
		if _, ok := present[key]; !ok {
			present[key] = h
		}
	}

	b := BoundSchema{Schema: s, columns: make(map[Field][]string, len(s.Fields))}
	for f, aliases := range s.Fields {
		for _, a := range aliases {
			if col, ok := present[a]; ok {
				b.columns[f] = append(b.columns[f], col)
			}
		}
	}
	return b
}

// Value returns the first non-empty trimmed value among the bound aliases of
// f. ok is false when no alias holds a value.
func (b BoundSchema) Value(rec RawRecord, f Field) (string, bool) {
	for _, col := range b.columns[f] {
		if v := strings.TrimSpace(rec[col]); v != "" {
			return v, true
		}
	}
	return "", false
}

// Has reports whether any alias of f occurs in the bound header.
func (b BoundSchema) Has(f Field) bool {
	return len(b.columns[f]) > 0
}

// Require returns an error listing the fields with no matching header.
func (b BoundSchema) Require(fields ...Field) error {
	var missing []string
	for _, f := range fields {
		if !b.Has(f) {
			missing = append(missing, string(f))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("schema %s: no header for %s", b.Schema.Name, strings.Join(missing, ", "))
}

func (b BoundSchema) ptr(rec RawRecord, f Field) *string {
	v, ok := b.Value(rec, f)
	if !ok {
		return nil
	}
	return &v
}

var incidentFields = map[Field][]string{
	FieldDate:        {"Date Time"},
	FieldLongitude:   {"Longitude"},
	FieldLatitude:    {"Latitude"},
	FieldStreet:      {"Steet Name", "Street Name"},
	FieldCrossStreet: {"Cross Street"},
	FieldLocation:    {"Location", "LOCATION"},
	FieldDayOfWeek:   {"Day Of Week", "Day of Week"},
	FieldObject1:     {"Object 1"},
	FieldObject2:     {"Object 2"},
}

// IncidentSchemas are the known incident vintages keyed by name.
var IncidentSchemas = map[string]Schema{
	"2010-2013": {Name: "2010-2013", DateLayout: "1/2/2006 3:04:05 PM", Fields: incidentFields},
	"2014":      {Name: "2014", DateLayout: "1/2/2006 15:04", Fields: incidentFields},
}

// CitationSchema describes the citation table.
var CitationSchema = Schema{
	Name:       "citations",
	DateLayout: "1/2/2006 3:04:05 PM",
	Fields: map[Field][]string{
		FieldDate:   {"Ticket Issued Date", "Date Time", "Date"},
		FieldCharge: {"Charge Description", "Description", "Violation Description"},
	},
}

// WeatherSchema describes the daily weather table. Its headers carry leading
// spaces in the source file.
var WeatherSchema = Schema{
	Name:       "weather",
	DateLayout: "2006-1-2",
	Fields: map[Field][]string{
		FieldDate:          {"EST", "EDT", "Date"},
		FieldTempMax:       {"Max TemperatureF"},
		FieldTempMean:      {"Mean TemperatureF"},
		FieldTempMin:       {"Min TemperatureF"},
		FieldVisibilityMax: {"Max VisibilityMiles"},
		FieldVisibilityAvg: {"Mean VisibilityMiles"},
		FieldVisibilityMin: {"Min VisibilityMiles"},
		FieldPrecipitation: {"PrecipitationIn"},
		FieldEvents:        {"Events"},
	},
}
