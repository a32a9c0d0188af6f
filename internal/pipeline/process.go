package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/geo"
)

// Skip reasons reported in metrics.
const (
	reasonMalformed   = "malformed"
	reasonUnreadable  = "unreadable"
	reasonMissingJoin = "missing_join"
	reasonStrict      = "strict_accident_type"
	reasonDuplicate   = "duplicate"
)

// Result holds the processed collections of one run. A family that failed has
// a nil collection and a report with Err set.
type Result struct {
	Incidents     []domain.IncidentRecord
	Citations     []domain.CitationRecord
	Weather       []domain.WeatherRecord
	Neighborhoods []domain.NeighborhoodStat
	Families      []*domain.FamilyReport
}

func (r Result) family(f domain.Family) *domain.FamilyReport {
	for _, fr := range r.Families {
		if fr.Family == f {
			return fr
		}
	}
	return nil
}

func (r Result) failed(f domain.Family) bool {
	fr := r.family(f)
	return fr != nil && fr.Failed()
}

type boundTable struct {
	table  domain.Table
	schema domain.BoundSchema
}

// prepared is everything validated and built before any family runs.
type prepared struct {
	norm      *domain.Normalizer
	incidents []boundTable
	citations boundTable
	weather   boundTable
	astro     *domain.AstroIndex
	locator   domain.RegionLocator
	cache     *geo.CachedLocator
	regionIDs []string
	astroRep  *domain.FamilyReport
}

// Process normalizes, enriches, classifies and sorts every family. It does no
// I/O. Structural source problems return an error wrapping
// domain.ErrSourceUnavailable before any family is processed; per-record
// problems are counted in the family reports.
func (p *Pipeline) Process(ctx context.Context, in Inputs) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	prep, err := p.prepare(in)
	if err != nil {
		return Result{}, err
	}

	var (
		res    Result
		incRep = domain.NewFamilyReport(domain.FamilyIncidents)
		citRep = domain.NewFamilyReport(domain.FamilyCitations)
		weaRep = domain.NewFamilyReport(domain.FamilyWeather)
		nbhRep = domain.NewFamilyReport(domain.FamilyNeighborhoods)
	)

	// Families are independent: a family failure is recorded in its report
	// and never cancels the others. Only cancellation is returned.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		res.Incidents, err = timed(p, domain.FamilyIncidents, func() ([]domain.IncidentRecord, error) {
			return p.processIncidents(ctx, prep, incRep)
		})
		return err
	})
	g.Go(func() error {
		var err error
		res.Citations, err = timed(p, domain.FamilyCitations, func() ([]domain.CitationRecord, error) {
			return p.processCitations(ctx, prep, citRep)
		})
		return err
	})
	g.Go(func() error {
		var err error
		res.Weather, err = timed(p, domain.FamilyWeather, func() ([]domain.WeatherRecord, error) {
			return p.processWeather(ctx, prep, weaRep)
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	counts := domain.CountByNeighborhood(prep.regionIDs, res.Incidents)
	res.Neighborhoods = counts.Stats(prep.regionIDs)
	nbhRep.Read = len(prep.regionIDs)

	if prep.cache != nil {
		hits, misses := prep.cache.Stats()
		p.metrics.LocatorCache.WithLabelValues("hit").Add(float64(hits))
		p.metrics.LocatorCache.WithLabelValues("miss").Add(float64(misses))
	}

	res.Families = []*domain.FamilyReport{incRep, citRep, weaRep, prep.astroRep, nbhRep}
	return res, nil
}

// timed runs fn and records its duration for family f.
func timed[T any](p *Pipeline, f domain.Family, fn func() ([]T, error)) ([]T, error) {
	start := time.Now()
	out, err := fn()
	p.metrics.FamilyDuration.WithLabelValues(string(f)).Observe(time.Since(start).Seconds())
	return out, err
}

// prepare validates every source and builds the shared lookup structures.
func (p *Pipeline) prepare(in Inputs) (*prepared, error) {
	if len(in.Regions) == 0 {
		return nil, fmt.Errorf("%w: no neighborhood regions loaded", domain.ErrSourceUnavailable)
	}
	if len(in.Incidents) == 0 {
		return nil, fmt.Errorf("%w: no incident tables loaded", domain.ErrSourceUnavailable)
	}

	prep := &prepared{
		norm:      domain.NewNormalizer(p.opts.SourceZone),
		regionIDs: geo.IDs(in.Regions),
		astroRep:  domain.NewFamilyReport(domain.FamilyAstronomical),
	}

	for _, t := range in.Incidents {
		schema, ok := p.opts.IncidentSchemas[t.Vintage]
		if !ok {
			return nil, fmt.Errorf("%w: %s: unknown incident vintage %q", domain.ErrSourceUnavailable, t.Name, t.Vintage)
		}
		bt, err := bind(t, schema, domain.FieldDate)
		if err != nil {
			return nil, err
		}
		prep.incidents = append(prep.incidents, bt)
	}

	var err error
	if prep.citations, err = bind(in.Citations, domain.CitationSchema, domain.FieldDate, domain.FieldCharge); err != nil {
		return nil, err
	}
	if prep.weather, err = bind(in.Weather, domain.WeatherSchema,
		domain.FieldDate, domain.FieldTempMax, domain.FieldTempMean, domain.FieldTempMin); err != nil {
		return nil, err
	}

	if prep.astro, err = p.indexAstronomical(in.Astronomical, prep.astroRep); err != nil {
		return nil, err
	}

	prep.locator, prep.cache = p.buildLocator(in.Regions)
	return prep, nil
}

func bind(t domain.Table, schema domain.Schema, required ...domain.Field) (boundTable, error) {
	b := schema.Bind(t.Header)
	if err := b.Require(required...); err != nil {
		return boundTable{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, t.Name, err)
	}
	return boundTable{table: t, schema: b}, nil
}

// indexAstronomical parses every table and indexes the days. A table that is
// structurally unusable aborts the run; bad cells are skipped and counted.
func (p *Pipeline) indexAstronomical(sources []domain.AstroSource, rep *domain.FamilyReport) (*domain.AstroIndex, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no astronomical tables loaded", domain.ErrSourceUnavailable)
	}

	var all []domain.AstronomicalRecord
	for _, src := range sources {
		recs, recErrs, err := domain.ParseAstronomicalTable(src, p.opts.AstroZone)
		if err != nil {
			return nil, err
		}
		rep.Read += len(recs) + len(recErrs)
		for _, re := range recErrs {
			p.skip(rep, reasonMalformed, re)
		}
		all = append(all, recs...)
	}

	idx := domain.NewAstroIndex(all, p.opts.SourceZone)
	for _, day := range idx.Duplicates() {
		rep.Duplicates++
		p.metrics.RecordsSkipped.WithLabelValues(string(rep.Family), reasonDuplicate).Inc()
		p.logger.Warn("duplicate astronomical day, keeping first", "family", rep.Family, "date", day.String())
	}
	rep.Written = idx.Len()
	p.metrics.RecordsRead.WithLabelValues(string(rep.Family)).Add(float64(rep.Read))
	return idx, nil
}

func (p *Pipeline) buildLocator(regions []geo.Region) (domain.RegionLocator, *geo.CachedLocator) {
	var base geo.Locator
	switch p.opts.SpatialIndex {
	case SpatialIndexNone:
		base = geo.NewLocator(regions)
	default:
		base = geo.NewIndexedLocator(regions)
	}
	if p.opts.LocatorCacheSize <= 0 {
		return base, nil
	}
	cached := geo.NewCachedLocator(base, p.opts.LocatorCacheSize)
	return cached, cached
}

// skip counts, samples and logs a record that will not be emitted.
func (p *Pipeline) skip(rep *domain.FamilyReport, reason string, err *domain.RecordError) {
	rep.Skipped++
	rep.Record(err)
	p.metrics.RecordsSkipped.WithLabelValues(string(rep.Family), reason).Inc()
	p.logger.Warn("record skipped",
		"family", err.Family,
		"source", err.Source,
		"row", err.Row,
		"reason", reason,
		"error", err.Err,
	)
}

// asRecordError returns err as a RecordError, wrapping foreign errors as
// malformed rows of family/source/row.
func asRecordError(err error, family domain.Family, source string, row int) *domain.RecordError {
	var re *domain.RecordError
	if errors.As(err, &re) {
		return re
	}
	return &domain.RecordError{Family: family, Source: source, Row: row, Kind: domain.ErrMalformedRecord, Err: err}
}
