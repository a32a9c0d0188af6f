package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyObject(t *testing.T) {
	tests := []struct {
		raw    string
		want   Category
		wantOK bool
	}{
		{"Auto", CategoryAuto, true},
		{"Taxi", CategoryAuto, true},
		{"School Bus", CategoryAuto, true},
		{" MBTA Bus ", CategoryAuto, true},
		{"Bus (Other)", CategoryAuto, true},
		{"Moped", CategoryMotorcycle, true},
		{"Motorcycle", CategoryMotorcycle, true},
		{"Pedestrian", CategoryPedestrian, true},
		{"Parked Vehicle", CategoryParkedVehicle, true},
		{"Fixed Object", CategoryFixedObject, true},
		{"Miscellaneous", CategoryMiscellaneous, true},
		{"auto", "", false},
		{"Deer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ClassifyObject(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccidentType(t *testing.T) {
	tests := []struct {
		name   string
		o1, o2 string
		want   *Category
	}{
		{"auto and pedestrian", "Auto", "Pedestrian", ptr(CategoryPedestrian)},
		{"order does not matter", "Bicycle", "Taxi", ptr(CategoryBicycle)},
		{"truck and moped", "Truck", "Moped", ptr(CategoryMotorcycle)},
		{"auto and fixed object", "Van", "Fixed Object", ptr(CategoryFixedObject)},
		{"two autos", "Auto", "Auto", nil},
		{"auto family pair", "Taxi", "MBTA Bus", nil},
		{"no auto", "Bicycle", "Miscellaneous", nil},
		{"unknown other", "Auto", "Deer", nil},
		{"missing other", "Auto", "", nil},
		{"both missing", "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AccidentType(tt.o1, tt.o2))
		})
	}
}

func TestClassifyIncident(t *testing.T) {
	rec := ClassifyIncident(IncidentRecord{Object1: ptr("Pedestrian"), Object2: ptr("Auto")})
	require.NotNil(t, rec.AccidentType)
	assert.Equal(t, CategoryPedestrian, *rec.AccidentType)

	rec = ClassifyIncident(IncidentRecord{Object1: ptr("Auto")})
	assert.Nil(t, rec.AccidentType)
}

func TestChargeClassifier(t *testing.T) {
	c := DefaultChargeClassifier()

	label := c.Classify("  SPEEDING ")
	require.NotNil(t, label)
	assert.Equal(t, LabelSpeeding, *label)
	assert.Nil(t, c.Classify("speeding"), "matching is verbatim")
	assert.Nil(t, c.Classify("PARKING IN BIKE LANE"))

	ext := c.WithEntries(map[string]CitationLabel{
		"PARKING IN BIKE LANE": LabelLaneViolation,
		"SPEEDING":             LabelEquipment,
		"  ":                   LabelEquipment,
	})
	assert.Equal(t, LabelLaneViolation, *ext.Classify("PARKING IN BIKE LANE"))
	assert.Equal(t, LabelSpeeding, *ext.Classify("SPEEDING"), "built-in entries win")
	assert.Nil(t, c.Classify("PARKING IN BIKE LANE"), "the original is not modified")

	assert.Equal(t, LabelSeatBelt, *c.Classify(" SEAT BELT, FAIL TO WEAR "))

	cit := ClassifyCitation(CitationRecord{Description: "RED LIGHT VIOLATION"}, c)
	assert.Equal(t, LabelSignalViolation, *cit.Label)
}

func TestParseCitationLabel(t *testing.T) {
	l, err := ParseCitationLabel("License/Registration")
	require.NoError(t, err)
	assert.Equal(t, LabelLicenseViolation, l)

	_, err = ParseCitationLabel("speeding")
	assert.Error(t, err)

	for desc, label := range defaultCharges {
		assert.Contains(t, CitationLabels, label, desc)
	}
}

func TestParseWeatherEvents(t *testing.T) {
	tests := []struct {
		in   string
		want WeatherEvents
	}{
		{"Rain-Thunderstorm", WeatherEvents{Rain: true, Thunderstorm: true}},
		{"Fog-Rain-Snow", WeatherEvents{Fog: true, Rain: true, Snow: true}},
		{"Hail", WeatherEvents{Hail: true}},
		{" Fog - Snow ", WeatherEvents{Fog: true, Snow: true}},
		{"Tornado-Rain", WeatherEvents{Rain: true}},
		{"rain", WeatherEvents{}},
		{"", WeatherEvents{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseWeatherEvents(tt.in))
		})
	}
}

func ptr[T any](v T) *T { return &v }
