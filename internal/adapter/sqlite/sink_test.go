package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HarvardViz/data-processing/internal/domain"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "out", "cambridge.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSink_LoadIncidents(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()
	date := time.Date(2012, 3, 2, 22, 30, 0, 0, time.UTC)

	records := []domain.IncidentRecord{
		{
			ID:           "inc-1",
			Date:         date,
			Coordinates:  &orb.Point{-71.105, 42.385},
			StreetName:   ptr("MAIN ST"),
			Neighborhood: ptr("N1"),
			AccidentType: ptr(domain.CategoryPedestrian),
			Source:       "ACCIDENT-2010-2013.csv",
		},
		{ID: "inc-2", Date: date.Add(time.Hour), Source: "ACCIDENT-2014.csv"},
	}
	require.NoError(t, s.LoadIncidents(ctx, records))
	assert.Equal(t, 2, count(t, s.DB(), "incidents"))

	var (
		gotDate, neighborhood, accidentType string
		lon, lat                            float64
	)
	require.NoError(t, s.DB().QueryRow(
		`SELECT date, longitude, latitude, neighborhood, accident_type FROM incidents WHERE id = 'inc-1'`,
	).Scan(&gotDate, &lon, &lat, &neighborhood, &accidentType))
	assert.Equal(t, "2012-03-02T22:30:00Z", gotDate)
	assert.Equal(t, -71.105, lon)
	assert.Equal(t, 42.385, lat)
	assert.Equal(t, "N1", neighborhood)
	assert.Equal(t, "Pedestrian", accidentType)

	var nullLon sql.NullFloat64
	var nullHood sql.NullString
	require.NoError(t, s.DB().QueryRow(
		`SELECT longitude, neighborhood FROM incidents WHERE id = 'inc-2'`,
	).Scan(&nullLon, &nullHood))
	assert.False(t, nullLon.Valid)
	assert.False(t, nullHood.Valid)
}

func TestSink_ReplacesOnRerun(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.LoadCitations(ctx, []domain.CitationRecord{
		{ID: "cit-1", Description: "SPEEDING", Label: ptr(domain.LabelSpeeding), Source: "c.csv"},
		{ID: "cit-2", Description: "JAYWALKING", Source: "c.csv"},
	}))
	require.NoError(t, s.LoadCitations(ctx, []domain.CitationRecord{
		{ID: "cit-3", Description: "SPEEDING", Source: "c.csv"},
	}))

	assert.Equal(t, 1, count(t, s.DB(), "citations"))
}

func TestSink_FailedLoadKeepsPreviousRows(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()

	require.NoError(t, s.LoadNeighborhoods(ctx, []domain.NeighborhoodStat{{ID: "N1", Accidents: 2, Rating: 1}}))
	err := s.LoadNeighborhoods(ctx, []domain.NeighborhoodStat{{ID: "N2"}, {ID: "N2"}})
	require.Error(t, err, "duplicate primary key")

	var accidents int
	require.NoError(t, s.DB().QueryRow(`SELECT accidents FROM neighborhood_stats WHERE id = 'N1'`).Scan(&accidents))
	assert.Equal(t, 2, accidents)
}

func TestSink_LoadWeather(t *testing.T) {
	s := openTestSink(t)
	sunrise := time.Date(2012, 3, 7, 11, 13, 0, 0, time.UTC)

	require.NoError(t, s.LoadWeather(context.Background(), []domain.WeatherRecord{
		{
			Date:                time.Date(2012, 3, 7, 5, 0, 0, 0, time.UTC),
			Sunrise:             &sunrise,
			Temperature:         domain.Range{Min: 30, Max: 50, Mean: 40},
			PrecipitationInches: 0,
			PrecipitationTrace:  true,
			Events:              domain.WeatherEvents{Rain: true},
		},
	}))

	var (
		gotSunrise   string
		sunset       sql.NullString
		trace, rain  bool
		tempMax, fog int
	)
	require.NoError(t, s.DB().QueryRow(
		`SELECT sunrise, sunset, precipitation_trace, rain, temperature_max, fog FROM weather`,
	).Scan(&gotSunrise, &sunset, &trace, &rain, &tempMax, &fog))
	assert.Equal(t, "2012-03-07T11:13:00Z", gotSunrise)
	assert.False(t, sunset.Valid)
	assert.True(t, trace)
	assert.True(t, rain)
	assert.Equal(t, 50, tempMax)
	assert.Equal(t, 0, fog)
}

func TestSink_LoadReportKeepsHistory(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"run-1", "run-2"} {
		require.NoError(t, s.LoadReport(ctx, domain.RunReport{
			RunID:      id,
			StartedAt:  started,
			FinishedAt: started.Add(time.Second),
			Families:   []*domain.FamilyReport{{Family: domain.FamilyIncidents, Read: 3, Written: 2}},
		}))
	}
	assert.Equal(t, 2, count(t, s.DB(), "runs"))

	var raw string
	require.NoError(t, s.DB().QueryRow(`SELECT report FROM runs WHERE run_id = 'run-2'`).Scan(&raw))
	var report domain.RunReport
	require.NoError(t, json.Unmarshal([]byte(raw), &report))
	assert.Equal(t, 2, report.Family(domain.FamilyIncidents).Written)
}
