package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HarvardViz/data-processing/internal/domain"
)

// cancelCheckInterval is how many rows a loop processes between context checks.
const cancelCheckInterval = 1024

type incidentJob struct {
	table int
	row   int // 1-based
}

type incidentSlot struct {
	rec     domain.IncidentRecord
	outcome domain.LocateOutcome
	err     *domain.RecordError
	reason  string
}

// processIncidents normalizes, locates and classifies every incident row.
// Rows are sharded across workers writing into index-addressed slots, so the
// merged order is the input order regardless of scheduling.
func (p *Pipeline) processIncidents(ctx context.Context, prep *prepared, rep *domain.FamilyReport) ([]domain.IncidentRecord, error) {
	var jobs []incidentJob
	for ti, bt := range prep.incidents {
		for i := range bt.table.Rows {
			jobs = append(jobs, incidentJob{table: ti, row: i + 1})
		}
	}
	rep.Read = len(jobs)
	p.metrics.RecordsRead.WithLabelValues(string(rep.Family)).Add(float64(len(jobs)))

	slots := make([]incidentSlot, len(jobs))
	workers := min(p.opts.Workers, len(jobs))
	if workers > 0 {
		chunk := (len(jobs) + workers - 1) / workers
		g, gctx := errgroup.WithContext(ctx)
		for lo := 0; lo < len(jobs); lo += chunk {
			hi := min(lo+chunk, len(jobs))
			g.Go(func() error {
				for i := lo; i < hi; i++ {
					if (i-lo)%cancelCheckInterval == 0 {
						if err := gctx.Err(); err != nil {
							return err
						}
					}
					slots[i] = p.transformIncident(prep, jobs[i])
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]domain.IncidentRecord, 0, len(slots))
	for _, s := range slots {
		if s.err != nil {
			p.skip(rep, s.reason, s.err)
			continue
		}
		p.metrics.RegionLookups.WithLabelValues(string(s.outcome)).Inc()
		switch s.outcome {
		case domain.LocateNoCoords:
			rep.Unlocated++
		case domain.LocateNotFound, domain.LocateNoLocator:
			rep.Unresolved++
		}
		if s.rec.AccidentType == nil {
			rep.Unclassified++
			if p.opts.StrictAccidentType {
				rep.Dropped++
				p.metrics.RecordsSkipped.WithLabelValues(string(rep.Family), reasonStrict).Inc()
				continue
			}
		}
		out = append(out, s.rec)
	}

	sortByDate(out, func(r domain.IncidentRecord) time.Time { return r.Date })
	p.logger.Info("family processed",
		"family", rep.Family,
		"read", rep.Read,
		"emitted", len(out),
		"skipped", rep.Skipped,
		"dropped", rep.Dropped,
		"unlocated", rep.Unlocated,
		"unresolved", rep.Unresolved,
	)
	return out, nil
}

func (p *Pipeline) transformIncident(prep *prepared, job incidentJob) incidentSlot {
	bt := prep.incidents[job.table]
	raw := bt.table.Rows[job.row-1]
	if raw == nil {
		return incidentSlot{err: unreadable(domain.FamilyIncidents, bt.table, job.row), reason: reasonUnreadable}
	}
	rec, err := prep.norm.Incident(bt.schema, bt.table.Name, job.row, raw)
	if err != nil {
		return incidentSlot{err: asRecordError(err, domain.FamilyIncidents, bt.table.Name, job.row), reason: reasonMalformed}
	}
	rec, outcome := domain.EnrichWithNeighborhood(rec, prep.locator)
	return incidentSlot{rec: domain.ClassifyIncident(rec), outcome: outcome}
}

// processCitations normalizes and labels every citation row.
func (p *Pipeline) processCitations(ctx context.Context, prep *prepared, rep *domain.FamilyReport) ([]domain.CitationRecord, error) {
	bt := prep.citations
	rep.Read = len(bt.table.Rows)
	p.metrics.RecordsRead.WithLabelValues(string(rep.Family)).Add(float64(rep.Read))

	out := make([]domain.CitationRecord, 0, len(bt.table.Rows))
	for i, raw := range bt.table.Rows {
		row := i + 1
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if raw == nil {
			p.skip(rep, reasonUnreadable, unreadable(domain.FamilyCitations, bt.table, row))
			continue
		}
		rec, err := prep.norm.Citation(bt.schema, bt.table.Name, row, raw)
		if err != nil {
			p.skip(rep, reasonMalformed, asRecordError(err, domain.FamilyCitations, bt.table.Name, row))
			continue
		}
		rec = domain.ClassifyCitation(rec, p.opts.Charges)
		if rec.Label == nil {
			rep.Unclassified++
		}
		out = append(out, rec)
	}

	sortByDate(out, func(r domain.CitationRecord) time.Time { return r.Date })
	p.logger.Info("family processed",
		"family", rep.Family,
		"read", rep.Read,
		"emitted", len(out),
		"skipped", rep.Skipped,
		"unclassified", rep.Unclassified,
	)
	return out, nil
}

// processWeather normalizes every weather row and joins it with the
// astronomical index under the configured missing-day policy. Under the fail
// policy the first missing day fails the family: the report carries the
// error and no weather collection is produced.
func (p *Pipeline) processWeather(ctx context.Context, prep *prepared, rep *domain.FamilyReport) ([]domain.WeatherRecord, error) {
	bt := prep.weather
	rep.Read = len(bt.table.Rows)
	p.metrics.RecordsRead.WithLabelValues(string(rep.Family)).Add(float64(rep.Read))

	out := make([]domain.WeatherRecord, 0, len(bt.table.Rows))
	for i, raw := range bt.table.Rows {
		row := i + 1
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if raw == nil {
			p.skip(rep, reasonUnreadable, unreadable(domain.FamilyWeather, bt.table, row))
			continue
		}
		rec, defaulted, err := prep.norm.Weather(bt.schema, bt.table.Name, row, raw)
		if err != nil {
			p.skip(rep, reasonMalformed, asRecordError(err, domain.FamilyWeather, bt.table.Name, row))
			continue
		}
		for _, f := range defaulted {
			rep.Default(f)
			p.logger.Warn("field defaulted",
				"family", rep.Family, "source", bt.table.Name, "row", row, "field", f)
		}

		joined, err := prep.astro.Join(rec)
		if err != nil {
			rep.MissingJoin++
			re := &domain.RecordError{
				Family: domain.FamilyWeather,
				Source: bt.table.Name,
				Row:    row,
				Kind:   domain.ErrMissingJoinKey,
				Err:    fmt.Errorf("no sunrise/sunset for %s", domain.DayOf(rec.Date, p.opts.SourceZone)),
			}
			switch p.opts.MissingAstro {
			case domain.MissingAstroFail:
				rep.Record(re)
				rep.Err = re.Error()
				p.logger.Error("weather family failed", "family", rep.Family, "error", re)
				return nil, nil
			case domain.MissingAstroDrop:
				rep.Dropped++
				rep.Record(re)
				p.metrics.RecordsSkipped.WithLabelValues(string(rep.Family), reasonMissingJoin).Inc()
				p.logger.Warn("record dropped", "family", rep.Family, "source", re.Source, "row", row, "error", re.Err)
				continue
			default:
				rep.Record(re)
				p.logger.Warn("sunrise/sunset unavailable", "family", rep.Family, "source", re.Source, "row", row, "error", re.Err)
			}
		}
		out = append(out, joined)
	}

	sortByDate(out, func(r domain.WeatherRecord) time.Time { return r.Date })
	p.logger.Info("family processed",
		"family", rep.Family,
		"read", rep.Read,
		"emitted", len(out),
		"skipped", rep.Skipped,
		"missing_join", rep.MissingJoin,
	)
	return out, nil
}

// sortByDate sorts records by ascending date, keeping input order for ties.
func sortByDate[T any](records []T, date func(T) time.Time) {
	slices.SortStableFunc(records, func(a, b T) int {
		return date(a).Compare(date(b))
	})
}

func unreadable(family domain.Family, t domain.Table, row int) *domain.RecordError {
	err := t.RowErrors[row]
	if err == nil {
		err = errors.New("row could not be read")
	}
	return &domain.RecordError{Family: family, Source: t.Name, Row: row, Kind: domain.ErrMalformedRecord, Err: err}
}
