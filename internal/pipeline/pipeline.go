package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/geo"
	"github.com/HarvardViz/data-processing/internal/observability"
)

// Inputs is every source the pipeline reads, already loaded into memory.
type Inputs struct {
	Regions      []geo.Region
	Incidents    []domain.Table
	Citations    domain.Table
	Weather      domain.Table
	Astronomical []domain.AstroSource
}

// Extractor loads all inputs for a run.
type Extractor interface {
	Extract(ctx context.Context) (Inputs, error)
}

// Loader writes the output collections of a run.
type Loader interface {
	LoadIncidents(ctx context.Context, records []domain.IncidentRecord) error
	LoadCitations(ctx context.Context, records []domain.CitationRecord) error
	LoadWeather(ctx context.Context, records []domain.WeatherRecord) error
	LoadNeighborhoods(ctx context.Context, stats []domain.NeighborhoodStat) error
	LoadReport(ctx context.Context, report domain.RunReport) error
}

// Pipeline orchestrates one extract-transform-load run.
type Pipeline struct {
	extractor Extractor
	loader    Loader
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, l Loader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		loader:    l,
		opts:      opts.withDefaults(),
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has written every family, or an
// error describing why the outputs are not yet available.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a successful run yet")
	}
	return nil
}

// Run extracts, processes and loads once. Source errors abort before anything
// is written. A family that failed processing is not written while its
// siblings are; a family whose write fails is marked failed in the report.
// The report is always attempted and the returned error joins every failure.
func (p *Pipeline) Run(ctx context.Context) (domain.RunReport, error) {
	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: clock.Now().UTC()}
	logger := p.logger.With("run_id", report.RunID)

	logger.Info("pipeline started",
		"workers", p.opts.Workers,
		"spatial_index", p.opts.SpatialIndex,
		"missing_astro_policy", p.opts.MissingAstro,
		"strict_accident_type", p.opts.StrictAccidentType,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	p.metrics.LastRunSuccess.Set(0)

	in, err := p.extractor.Extract(ctx)
	if err != nil {
		logger.Error("extract failed", "error", err)
		return report, fmt.Errorf("extract: %w", err)
	}
	logger.Info("inputs loaded",
		"regions", len(in.Regions),
		"incident_tables", len(in.Incidents),
		"astronomical_tables", len(in.Astronomical),
	)

	res, err := p.Process(ctx, in)
	if err != nil {
		logger.Error("process failed", "error", err)
		return report, err
	}
	report.Families = res.Families

	var failed []error
	for _, fr := range report.Families {
		if fr.Failed() {
			failed = append(failed, fmt.Errorf("%s: %s", fr.Family, fr.Err))
		}
	}
	if err := p.load(ctx, res); err != nil {
		logger.Error("load failed", "error", err)
		failed = append(failed, fmt.Errorf("load: %w", err))
	}

	report.FinishedAt = clock.Now().UTC()
	if err := p.loader.LoadReport(ctx, report); err != nil {
		logger.Error("load report failed", "error", err)
		failed = append(failed, fmt.Errorf("load report: %w", err))
	}
	if len(failed) > 0 {
		err := errors.Join(failed...)
		logger.Error("pipeline finished with failed families", "error", err)
		return report, err
	}

	p.metrics.LastRunSuccess.Set(1)
	p.ready.Store(true)
	logger.Info("pipeline finished", "duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

// load writes every family that did not fail. Each family is attempted even
// when an earlier one could not be written; a write failure is recorded on
// that family's report so the run report still goes out.
func (p *Pipeline) load(ctx context.Context, res Result) error {
	var errs []error
	write := func(f domain.Family, n int, fn func() error) {
		if res.failed(f) {
			return
		}
		fr := res.family(f)
		if err := fn(); err != nil {
			err = fmt.Errorf("%s: %w", f, err)
			errs = append(errs, err)
			if fr != nil {
				fr.Err = "load: " + err.Error()
			}
			return
		}
		p.metrics.RecordsWritten.WithLabelValues(string(f)).Add(float64(n))
		if fr != nil {
			fr.Written = n
		}
	}

	write(domain.FamilyIncidents, len(res.Incidents), func() error {
		return p.loader.LoadIncidents(ctx, res.Incidents)
	})
	if !res.failed(domain.FamilyIncidents) {
		write(domain.FamilyNeighborhoods, len(res.Neighborhoods), func() error {
			return p.loader.LoadNeighborhoods(ctx, res.Neighborhoods)
		})
	}
	write(domain.FamilyCitations, len(res.Citations), func() error {
		return p.loader.LoadCitations(ctx, res.Citations)
	})
	write(domain.FamilyWeather, len(res.Weather), func() error {
		return p.loader.LoadWeather(ctx, res.Weather)
	})
	return errors.Join(errs...)
}
