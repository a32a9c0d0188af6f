package blobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gocloud.dev/blob"

	"github.com/HarvardViz/data-processing/internal/domain"
)

// Output object keys.
const (
	IncidentsKey     = "incidents.json"
	CitationsKey     = "citations.json"
	WeatherKey       = "weather.json"
	NeighborhoodsKey = "neighborhoods.json"
	ReportKey        = "run-report.json"
)

// Sink writes each collection as one indented JSON array. It implements
// pipeline.Loader. Objects are replaced whole on every run.
type Sink struct {
	bucket *blob.Bucket
	logger *slog.Logger
}

// NewSink creates a Sink writing into bucket.
func NewSink(bucket *blob.Bucket, logger *slog.Logger) *Sink {
	return &Sink{bucket: bucket, logger: logger}
}

func (s *Sink) LoadIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	return writeCollection(ctx, s, IncidentsKey, records)
}

func (s *Sink) LoadCitations(ctx context.Context, records []domain.CitationRecord) error {
	return writeCollection(ctx, s, CitationsKey, records)
}

func (s *Sink) LoadWeather(ctx context.Context, records []domain.WeatherRecord) error {
	return writeCollection(ctx, s, WeatherKey, records)
}

func (s *Sink) LoadNeighborhoods(ctx context.Context, stats []domain.NeighborhoodStat) error {
	return writeCollection(ctx, s, NeighborhoodsKey, stats)
}

func (s *Sink) LoadReport(ctx context.Context, report domain.RunReport) error {
	return s.write(ctx, ReportKey, report)
}

// writeCollection writes records as a JSON array; an empty collection is
// written as [] rather than null.
func writeCollection[T any](ctx context.Context, s *Sink, key string, records []T) error {
	if records == nil {
		records = []T{}
	}
	if err := s.write(ctx, key, records); err != nil {
		return err
	}
	s.logger.Info("collection written", "key", key, "records", len(records))
	return nil
}

func (s *Sink) write(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	data = append(data, '\n')
	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
