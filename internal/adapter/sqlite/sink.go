package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HarvardViz/data-processing/internal/domain"
)

// schema.sql creates one table per output collection plus a runs table
// holding every run report.
//
//go:embed schema.sql
var schemaSQL string

// Sink stores the output collections in a SQLite database. Each collection
// load replaces the table contents in one transaction, so a rerun never
// leaves a mix of old and new rows. It implements pipeline.Loader.
type Sink struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Sink, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	logger.Info("sqlite sink ready", "path", path)
	return &Sink{db: db, logger: logger}, nil
}

// DB exposes the underlying handle for queries.
func (s *Sink) DB() *sql.DB {
	return s.db
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func (s *Sink) LoadIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	return replace(ctx, s, "incidents",
		`INSERT INTO incidents (id, date, longitude, latitude, street_name, cross_street, location,
			day_of_week, object1, object2, neighborhood, accident_type, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		records,
		func(r domain.IncidentRecord) []any {
			var lon, lat sql.NullFloat64
			if r.Coordinates != nil {
				lon = sql.NullFloat64{Float64: r.Coordinates.Lon(), Valid: true}
				lat = sql.NullFloat64{Float64: r.Coordinates.Lat(), Valid: true}
			}
			var accidentType *string
			if r.AccidentType != nil {
				v := string(*r.AccidentType)
				accidentType = &v
			}
			return []any{
				r.ID, timestamp(r.Date), lon, lat, r.StreetName, r.CrossStreet, r.Location,
				r.DayOfWeek, r.Object1, r.Object2, r.Neighborhood, accidentType, r.Source,
			}
		})
}

func (s *Sink) LoadCitations(ctx context.Context, records []domain.CitationRecord) error {
	return replace(ctx, s, "citations",
		`INSERT INTO citations (id, date, description, label, source) VALUES (?, ?, ?, ?, ?)`,
		records,
		func(r domain.CitationRecord) []any {
			var label *string
			if r.Label != nil {
				v := string(*r.Label)
				label = &v
			}
			return []any{r.ID, timestamp(r.Date), r.Description, label, r.Source}
		})
}

func (s *Sink) LoadWeather(ctx context.Context, records []domain.WeatherRecord) error {
	return replace(ctx, s, "weather",
		`INSERT INTO weather (date, sunrise, sunset,
			temperature_min, temperature_max, temperature_mean,
			visibility_min, visibility_max, visibility_mean,
			precipitation_inches, precipitation_trace,
			fog, rain, thunderstorm, snow, hail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		records,
		func(r domain.WeatherRecord) []any {
			return []any{
				timestamp(r.Date), optionalTimestamp(r.Sunrise), optionalTimestamp(r.Sunset),
				r.Temperature.Min, r.Temperature.Max, r.Temperature.Mean,
				r.Visibility.Min, r.Visibility.Max, r.Visibility.Mean,
				r.PrecipitationInches, r.PrecipitationTrace,
				r.Events.Fog, r.Events.Rain, r.Events.Thunderstorm, r.Events.Snow, r.Events.Hail,
			}
		})
}

func (s *Sink) LoadNeighborhoods(ctx context.Context, stats []domain.NeighborhoodStat) error {
	return replace(ctx, s, "neighborhood_stats",
		`INSERT INTO neighborhood_stats (id, accidents, accident_rating) VALUES (?, ?, ?)`,
		stats,
		func(r domain.NeighborhoodStat) []any { return []any{r.ID, r.Accidents, r.Rating} })
}

// LoadReport appends the run report; earlier runs are kept.
func (s *Sink) LoadReport(ctx context.Context, report domain.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (run_id, started_at, finished_at, report) VALUES (?, ?, ?, ?)`,
		report.RunID, timestamp(report.StartedAt), timestamp(report.FinishedAt), string(data))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", report.RunID, err)
	}
	return nil
}

// replace deletes every row of table and inserts records in one transaction.
func replace[T any](ctx context.Context, s *Sink, table, insert string, records []T, args func(T) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", table, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare %s: %w", table, err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.ExecContext(ctx, args(records[i])...); err != nil {
			return fmt.Errorf("insert %s row %d: %w", table, i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	s.logger.Info("table replaced", "table", table, "rows", len(records))
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := timestamp(*t)
	return &s
}
