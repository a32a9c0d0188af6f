package pipeline

import (
	"context"
	"errors"

	"github.com/HarvardViz/data-processing/internal/domain"
)

// MultiSink fans every load out to several loaders in order. All loaders are
// attempted; their errors are joined.
type MultiSink []Loader

func (m MultiSink) each(fn func(Loader) error) error {
	var errs []error
	for _, l := range m {
		if err := fn(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) LoadIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	return m.each(func(l Loader) error { return l.LoadIncidents(ctx, records) })
}

func (m MultiSink) LoadCitations(ctx context.Context, records []domain.CitationRecord) error {
	return m.each(func(l Loader) error { return l.LoadCitations(ctx, records) })
}

func (m MultiSink) LoadWeather(ctx context.Context, records []domain.WeatherRecord) error {
	return m.each(func(l Loader) error { return l.LoadWeather(ctx, records) })
}

func (m MultiSink) LoadNeighborhoods(ctx context.Context, stats []domain.NeighborhoodStat) error {
	return m.each(func(l Loader) error { return l.LoadNeighborhoods(ctx, stats) })
}

func (m MultiSink) LoadReport(ctx context.Context, report domain.RunReport) error {
	return m.each(func(l Loader) error { return l.LoadReport(ctx, report) })
}
