package domain

import (
	"fmt"
	"maps"
	"strings"
)

// Category is the closed taxonomy of incident object types.
type Category string

const (
	CategoryAuto          Category = "Auto"
	CategoryMotorcycle    Category = "Motorcycle/Moped"
	CategoryBicycle       Category = "Bicycle"
	CategoryPedestrian    Category = "Pedestrian"
	CategoryParkedVehicle Category = "Parked Vehicle"
	CategoryFixedObject   Category = "Fixed Object"
	CategoryMiscellaneous Category = "Miscellaneous"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryAuto,
	CategoryMotorcycle,
	CategoryBicycle,
	CategoryPedestrian,
	CategoryParkedVehicle,
	CategoryFixedObject,
	CategoryMiscellaneous,
}

var objectCategories = map[string]Category{
	"Auto":           CategoryAuto,
	"Taxi":           CategoryAuto,
	"Truck":          CategoryAuto,
	"Van":            CategoryAuto,
	"School Bus":     CategoryAuto,
	"MBTA Bus":       CategoryAuto,
	"Bus (Other)":    CategoryAuto,
	"Motorcycle":     CategoryMotorcycle,
	"Moped":          CategoryMotorcycle,
	"Bicycle":        CategoryBicycle,
	"Pedestrian":     CategoryPedestrian,
	"Parked Vehicle": CategoryParkedVehicle,
	"Fixed Object":   CategoryFixedObject,
	"Miscellaneous":  CategoryMiscellaneous,
}

// ClassifyObject maps a raw object type to its category. Matching is exact
// after trimming whitespace.
func ClassifyObject(raw string) (Category, bool) {
	c, ok := objectCategories[strings.TrimSpace(raw)]
	return c, ok
}

// AccidentType returns the non-Auto category when exactly one of the two
// objects is Auto and the other is a known category. Every other pairing is
// indeterminate and yields nil.
func AccidentType(object1, object2 string) *Category {
	c1, ok1 := ClassifyObject(object1)
	c2, ok2 := ClassifyObject(object2)
	if !ok1 || !ok2 {
		return nil
	}
	var other Category
	switch {
	case c1 == CategoryAuto && c2 != CategoryAuto:
		other = c2
	case c2 == CategoryAuto && c1 != CategoryAuto:
		other = c1
	default:
		return nil
	}
	return &other
}

// ClassifyIncident sets AccidentType from the record's object pair.
func ClassifyIncident(rec IncidentRecord) IncidentRecord {
	var o1, o2 string
	if rec.Object1 != nil {
		o1 = *rec.Object1
	}
	if rec.Object2 != nil {
		o2 = *rec.Object2
	}
	rec.AccidentType = AccidentType(o1, o2)
	return rec
}

// CitationLabel is the closed set of citation labels.
type CitationLabel string

const (
	LabelSpeeding          CitationLabel = "Speeding"
	LabelFailureToYield    CitationLabel = "Failure to Yield"
	LabelFailureToStop     CitationLabel = "Failure to Stop"
	LabelLaneViolation     CitationLabel = "Lane Violation"
	LabelSignalViolation   CitationLabel = "Signal Violation"
	LabelUnsafeOperation   CitationLabel = "Unsafe Operation"
	LabelLicenseViolation  CitationLabel = "License/Registration"
	LabelEquipment         CitationLabel = "Equipment"
	LabelDistractedDriving CitationLabel = "Distracted Driving"
	LabelSeatBelt          CitationLabel = "Seat Belt"
)

// CitationLabels lists every label in a stable order.
var CitationLabels = []CitationLabel{
	LabelSpeeding,
	LabelFailureToYield,
	LabelFailureToStop,
	LabelLaneViolation,
	LabelSignalViolation,
	LabelUnsafeOperation,
	LabelLicenseViolation,
	LabelEquipment,
	LabelDistractedDriving,
	LabelSeatBelt,
}

// ParseCitationLabel returns the label spelled s, matched exactly.
func ParseCitationLabel(s string) (CitationLabel, error) {
	for _, l := range CitationLabels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown citation label %q", s)
}

var defaultCharges = map[string]CitationLabel{
	"SPEEDING":                            LabelSpeeding,
	"SPEEDING IN VIOL SPECIAL REGULATION": LabelSpeeding,
	"SPEEDING RATE OF SPEED EXCEEDING":    LabelSpeeding,
	"YIELD, FAIL TO":                      LabelFailureToYield,
	"CROSSWALK VIOLATION":                 LabelFailureToYield,
	"STOP/YIELD, FAIL TO":                 LabelFailureToStop,
	"STOP SIGN VIOLATION":                 LabelFailureToStop,
	"RED LIGHT VIOLATION":                 LabelSignalViolation,
	"SIGNAL, FAIL TO OBEY":                LabelSignalViolation,
	"MARKED LANES VIOLATION":              LabelLaneViolation,
	"KEEP RIGHT, FAIL TO":                 LabelLaneViolation,
	"WRONG WAY ON ONE WAY STREET":         LabelLaneViolation,
	"UNSAFE OPERATION OF MV":              LabelUnsafeOperation,
	"NEGLIGENT OPERATION OF MV":           LabelUnsafeOperation,
	"LICENSE NOT IN POSSESSION":           LabelLicenseViolation,
	"UNLICENSED OPERATION OF MV":          LabelLicenseViolation,
	"UNREGISTERED MOTOR VEHICLE":          LabelLicenseViolation,
	"INSPECTION/STICKER, NO":              LabelEquipment,
	"HEADLIGHTS VIOLATION":                LabelEquipment,
	"CELL PHONE, USE WHILE DRIVING":       LabelDistractedDriving,
	"TEXTING WHILE DRIVING":               LabelDistractedDriving,
	"SEAT BELT, FAIL TO WEAR":             LabelSeatBelt,
}

// ChargeClassifier maps verbatim charge descriptions to labels. The table is
// intentionally partial; unmatched descriptions are unmapped.
type ChargeClassifier struct {
	table map[string]CitationLabel
}

// DefaultChargeClassifier returns a classifier over the built-in table.
func DefaultChargeClassifier() *ChargeClassifier {
	return &ChargeClassifier{table: maps.Clone(defaultCharges)}
}

// WithEntries returns a copy of c extended with extra. Existing entries win
// over extra ones.
func (c *ChargeClassifier) WithEntries(extra map[string]CitationLabel) *ChargeClassifier {
	table := maps.Clone(c.table)
	for desc, label := range extra {
		desc = strings.TrimSpace(desc)
		if _, ok := table[desc]; ok || desc == "" {
			continue
		}
		table[desc] = label
	}
	return &ChargeClassifier{table: table}
}

// Classify returns the label for desc after trimming whitespace, or nil.
func (c *ChargeClassifier) Classify(desc string) *CitationLabel {
	label, ok := c.table[strings.TrimSpace(desc)]
	if !ok {
		return nil
	}
	return &label
}

// ClassifyCitation sets Label from the record's description.
func ClassifyCitation(rec CitationRecord, c *ChargeClassifier) CitationRecord {
	rec.Label = c.Classify(rec.Description)
	return rec
}

// ParseWeatherEvents parses a dash-delimited event list such as
// "Rain-Thunderstorm". Unknown tokens are ignored.
func ParseWeatherEvents(s string) WeatherEvents {
	var ev WeatherEvents
	for _, tok := range strings.Split(s, "-") {
		switch strings.TrimSpace(tok) {
		case "Fog":
			ev.Fog = true
		case "Rain":
			ev.Rain = true
		case "Thunderstorm":
			ev.Thunderstorm = true
		case "Snow":
			ev.Snow = true
		case "Hail":
			ev.Hail = true
		}
	}
	return ev
}
