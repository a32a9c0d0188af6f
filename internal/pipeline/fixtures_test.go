package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/geo"
	"github.com/HarvardViz/data-processing/internal/pipeline"
)

var est = time.FixedZone("EST", -5*60*60)

// --- mocks ---

type mockExtractor struct {
	in  pipeline.Inputs
	err error
}

func (m *mockExtractor) Extract(_ context.Context) (pipeline.Inputs, error) {
	return m.in, m.err
}

type recordingLoader struct {
	mu            sync.Mutex
	incidents     []domain.IncidentRecord
	citations     []domain.CitationRecord
	weather       []domain.WeatherRecord
	neighborhoods []domain.NeighborhoodStat
	reports       []domain.RunReport
	calls         []string
	err           error
	failOn        map[string]error
}

func (l *recordingLoader) record(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
	if err, ok := l.failOn[name]; ok {
		return err
	}
	return l.err
}

func (l *recordingLoader) LoadIncidents(_ context.Context, records []domain.IncidentRecord) error {
	l.incidents = records
	return l.record("incidents")
}

func (l *recordingLoader) LoadCitations(_ context.Context, records []domain.CitationRecord) error {
	l.citations = records
	return l.record("citations")
}

func (l *recordingLoader) LoadWeather(_ context.Context, records []domain.WeatherRecord) error {
	l.weather = records
	return l.record("weather")
}

func (l *recordingLoader) LoadNeighborhoods(_ context.Context, stats []domain.NeighborhoodStat) error {
	l.neighborhoods = stats
	return l.record("neighborhoods")
}

func (l *recordingLoader) LoadReport(_ context.Context, report domain.RunReport) error {
	l.reports = append(l.reports, report)
	return l.record("report")
}

// --- fixtures ---

func square(minLon, minLat, maxLon, maxLat float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}}
}

// testRegions are two adjacent neighborhoods sharing the lon=-71.10 edge.
func testRegions() []geo.Region {
	return []geo.Region{
		{ID: "N1", Boundary: square(-71.11, 42.38, -71.10, 42.39)},
		{ID: "N2", Boundary: square(-71.10, 42.38, -71.09, 42.39)},
	}
}

var header2010 = []string{"Date Time", "Day Of Week", "Object 1", "Object 2", "Steet Name", "Cross Street", "Location", "Latitude", "Longitude"}

var header2014 = []string{"Date Time", "Day of Week", "Object 1", "Object 2", "Street Name", "Cross Street", "LOCATION", "Latitude", "Longitude"}

func incident2010(date, o1, o2, lat, lon string) domain.RawRecord {
	return domain.RawRecord{
		"Date Time": date, "Day Of Week": "Monday", "Object 1": o1, "Object 2": o2,
		"Steet Name": "MASSACHUSETTS AVE", "Location": "MASSACHUSETTS AVE & MAIN ST",
		"Latitude": lat, "Longitude": lon,
	}
}

func incident2014(date, o1, o2, lat, lon string) domain.RawRecord {
	return domain.RawRecord{
		"Date Time": date, "Day of Week": "Friday", "Object 1": o1, "Object 2": o2,
		"Street Name": "BROADWAY", "LOCATION": "BROADWAY & AMES ST",
		"Latitude": lat, "Longitude": lon,
	}
}

var weatherHeader = []string{
	"EST", "Max TemperatureF", " Mean TemperatureF", " Min TemperatureF",
	" Max VisibilityMiles", " Mean VisibilityMiles", " Min VisibilityMiles",
	" PrecipitationIn", " Events",
}

func weatherRow(date, precip, events string) domain.RawRecord {
	return domain.RawRecord{
		"EST": date, "Max TemperatureF": "50", " Mean TemperatureF": "40", " Min TemperatureF": "30",
		" Max VisibilityMiles": "10", " Mean VisibilityMiles": "9", " Min VisibilityMiles": "5",
		" PrecipitationIn": precip, " Events": events,
	}
}

// astroLines renders a sunrise/sunset table holding only the given cells,
// keyed by {month, day}.
func astroLines(year int, cells map[[2]int]string) []string {
	lines := []string{
		"",
		fmt.Sprintf("Location: W071 06, N42 22          Rise and Set for the Sun for %d", year),
		"", "", "", "", "", "", "",
	}
	for d := 1; d <= 31; d++ {
		buf := []byte(strings.Repeat(" ", 4+11*12))
		copy(buf, fmt.Sprintf("%02d", d))
		for m := 1; m <= 12; m++ {
			if cell, ok := cells[[2]int{m, d}]; ok {
				copy(buf[4+11*(m-1):], cell)
			}
		}
		lines = append(lines, strings.TrimRight(string(buf), " "))
	}
	return lines
}

// testInputs is a small corpus covering both incident vintages, a weather
// day with and without sunrise data, and one malformed row per family.
func testInputs() pipeline.Inputs {
	return pipeline.Inputs{
		Regions: testRegions(),
		Incidents: []domain.Table{
			{
				Name:    "ACCIDENT-2010-2013.csv",
				Vintage: "2010-2013",
				Header:  header2010,
				Rows: []domain.RawRecord{
					incident2010("03/02/2012 05:30:00 PM", "Auto", "Pedestrian", "42.385", "-71.105"),
					incident2010("01/15/2011 08:00:00 AM", "Auto", "Auto", "42.385", "-71.095"),
					incident2010("not a date", "Auto", "Bicycle", "42.385", "-71.105"),
					incident2010("06/01/2013 12:00:00 PM", "Taxi", "Bicycle", "", ""),
				},
			},
			{
				Name:    "ACCIDENT-2014.csv",
				Vintage: "2014",
				Header:  header2014,
				Rows: []domain.RawRecord{
					incident2014("2/1/2014 9:15", "Moped", "Auto", "42.385", "-71.102"),
					incident2014("3/2/2012 17:30", "Auto", "Fixed Object", "40.0", "-70.0"),
				},
			},
		},
		Citations: domain.Table{
			Name:   "CITATIONS-2010-2014.csv",
			Header: []string{"Ticket Issued Date", "Charge Description"},
			Rows: []domain.RawRecord{
				{"Ticket Issued Date": "07/04/2013 11:00:00 AM", "Charge Description": "SPEEDING"},
				{"Ticket Issued Date": "01/01/2010 01:00:00 AM", "Charge Description": "JAYWALKING"},
				{"Ticket Issued Date": "", "Charge Description": "SPEEDING"},
			},
		},
		Weather: domain.Table{
			Name:   "weather-2010-2014.csv",
			Header: weatherHeader,
			Rows: []domain.RawRecord{
				weatherRow("2012-3-8", "T", "Fog"),
				weatherRow("2012-3-7", "0.10", "Rain-Thunderstorm"),
				weatherRow("2012-3-9", "x", ""),
			},
		},
		Astronomical: []domain.AstroSource{{
			Name:  "sun/2012.txt",
			Year:  2012,
			Lines: astroLines(2012, map[[2]int]string{{3, 7}: "0613 1748", {3, 9}: "0610 1750"}),
		}},
	}
}
