package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"gocloud.dev/blob"

	"github.com/HarvardViz/data-processing/internal/adapter/blobstore"
	"github.com/HarvardViz/data-processing/internal/domain"
)

// ratingTolerance absorbs float formatting in the written JSON.
const ratingTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// outputs is one run's written collections.
type outputs struct {
	incidents     []domain.IncidentRecord
	citations     []domain.CitationRecord
	weather       []domain.WeatherRecord
	neighborhoods []domain.NeighborhoodStat
	report        domain.RunReport
}

func loadOutputs(ctx context.Context, bucket *blob.Bucket) (outputs, error) {
	var out outputs
	loads := []struct {
		key string
		dst any
	}{
		{blobstore.IncidentsKey, &out.incidents},
		{blobstore.CitationsKey, &out.citations},
		{blobstore.WeatherKey, &out.weather},
		{blobstore.NeighborhoodsKey, &out.neighborhoods},
		{blobstore.ReportKey, &out.report},
	}
	for _, l := range loads {
		data, err := bucket.ReadAll(ctx, l.key)
		if err != nil {
			return outputs{}, fmt.Errorf("read %s: %w", l.key, err)
		}
		if err := json.Unmarshal(data, l.dst); err != nil {
			return outputs{}, fmt.Errorf("decode %s: %w", l.key, err)
		}
	}
	return out, nil
}

// validate runs every phase. regionIDs, when given, is the authoritative
// region set; otherwise the ids in neighborhoods.json are used.
func validate(out outputs, regionIDs []string) []*phase {
	if regionIDs == nil {
		for _, s := range out.neighborhoods {
			regionIDs = append(regionIDs, s.ID)
		}
	}
	return []*phase{
		checkOrdering(out),
		checkIncidents(out.incidents, regionIDs),
		checkCitations(out.citations),
		checkWeather(out.weather),
		checkNeighborhoods(out.neighborhoods, out.incidents, regionIDs),
		checkReport(out),
	}
}

func checkOrdering(out outputs) *phase {
	p := &phase{name: "Phase 1: Date Ordering"}
	checkSorted(p, "incidents", out.incidents, func(r domain.IncidentRecord) time.Time { return r.Date })
	checkSorted(p, "citations", out.citations, func(r domain.CitationRecord) time.Time { return r.Date })
	checkSorted(p, "weather", out.weather, func(r domain.WeatherRecord) time.Time { return r.Date })
	return p
}

func checkSorted[T any](p *phase, name string, records []T, date func(T) time.Time) {
	for i := 1; i < len(records); i++ {
		if date(records[i]).Before(date(records[i-1])) {
			p.errorf("%s[%d]: %s sorts before previous %s", name, i,
				date(records[i]).Format(time.RFC3339), date(records[i-1]).Format(time.RFC3339))
		}
	}
}

func checkIncidents(incidents []domain.IncidentRecord, regionIDs []string) *phase {
	p := &phase{name: "Phase 2: Incident Integrity"}
	seen := make(map[string]int, len(incidents))
	for i, r := range incidents {
		if r.ID == "" {
			p.errorf("incident %d: missing id", i)
		} else if prev, dup := seen[r.ID]; dup {
			p.errorf("incident %d: id %s duplicates incident %d", i, r.ID, prev)
		} else {
			seen[r.ID] = i
		}
		if r.Coordinates != nil && !r.HasValidCoordinates() {
			p.errorf("incident %s: non-finite coordinates", r.ID)
		}
		if r.Neighborhood != nil {
			if r.Coordinates == nil {
				p.errorf("incident %s: neighborhood %q without coordinates", r.ID, *r.Neighborhood)
			}
			if !slices.Contains(regionIDs, *r.Neighborhood) {
				p.errorf("incident %s: unknown neighborhood %q", r.ID, *r.Neighborhood)
			}
		}
		if r.AccidentType != nil && !slices.Contains(domain.Categories, *r.AccidentType) {
			p.errorf("incident %s: unknown accident type %q", r.ID, *r.AccidentType)
		}
	}
	return p
}

func checkCitations(citations []domain.CitationRecord) *phase {
	p := &phase{name: "Phase 3: Citation Labels"}
	for i, r := range citations {
		if r.ID == "" {
			p.errorf("citation %d: missing id", i)
		}
		if r.Label != nil && !slices.Contains(domain.CitationLabels, *r.Label) {
			p.errorf("citation %s: unknown label %q", r.ID, *r.Label)
		}
	}
	return p
}

func checkWeather(weather []domain.WeatherRecord) *phase {
	p := &phase{name: "Phase 4: Weather Days"}
	seen := make(map[int64]bool, len(weather))
	for i, w := range weather {
		if seen[w.Date.Unix()] {
			p.errorf("weather %d: duplicate day %s", i, w.Date.Format(time.RFC3339))
		}
		seen[w.Date.Unix()] = true
		if (w.Sunrise == nil) != (w.Sunset == nil) {
			p.errorf("weather %s: only one of sunrise/sunset set", w.Date.Format(time.RFC3339))
		}
		if w.Sunrise != nil && w.Sunset != nil && !w.Sunrise.Before(*w.Sunset) {
			p.errorf("weather %s: sunrise %s not before sunset %s", w.Date.Format(time.RFC3339),
				w.Sunrise.Format(time.RFC3339), w.Sunset.Format(time.RFC3339))
		}
		if w.PrecipitationInches < 0 {
			p.errorf("weather %s: negative precipitation %v", w.Date.Format(time.RFC3339), w.PrecipitationInches)
		}
		if w.PrecipitationTrace && w.PrecipitationInches != 0 {
			p.errorf("weather %s: trace precipitation with amount %v", w.Date.Format(time.RFC3339), w.PrecipitationInches)
		}
	}
	return p
}

// checkNeighborhoods recomputes the choropleth from the written incidents and
// compares it with neighborhoods.json.
func checkNeighborhoods(stats []domain.NeighborhoodStat, incidents []domain.IncidentRecord, regionIDs []string) *phase {
	p := &phase{name: "Phase 5: Neighborhood Choropleth"}

	got := make([]string, 0, len(stats))
	for _, s := range stats {
		got = append(got, s.ID)
	}
	if !slices.Equal(got, regionIDs) {
		p.errorf("neighborhood ids %v, want %v in region order", got, regionIDs)
	}

	want := domain.CountByNeighborhood(regionIDs, incidents)
	for _, s := range stats {
		if s.Rating < 0 || s.Rating > 1 {
			p.errorf("neighborhood %s: rating %v outside [0, 1]", s.ID, s.Rating)
		}
		if n := want.Counts[s.ID]; n != s.Accidents {
			p.errorf("neighborhood %s: %d accidents, incidents tally %d", s.ID, s.Accidents, n)
		}
		if r := want.Rating(s.ID); math.Abs(r-s.Rating) > ratingTolerance {
			p.errorf("neighborhood %s: rating %v, want %v", s.ID, s.Rating, r)
		}
	}
	return p
}

func checkReport(out outputs) *phase {
	p := &phase{name: "Phase 6: Run Report"}
	if out.report.RunID == "" {
		p.errorf("run report has no run id")
	}
	if out.report.FinishedAt.Before(out.report.StartedAt) {
		p.errorf("run finished %s before it started %s",
			out.report.FinishedAt.Format(time.RFC3339), out.report.StartedAt.Format(time.RFC3339))
	}
	written := []struct {
		family domain.Family
		n      int
	}{
		{domain.FamilyIncidents, len(out.incidents)},
		{domain.FamilyCitations, len(out.citations)},
		{domain.FamilyWeather, len(out.weather)},
		{domain.FamilyNeighborhoods, len(out.neighborhoods)},
	}
	for _, w := range written {
		f, n := w.family, w.n
		fr := out.report.Family(f)
		if fr == nil {
			p.errorf("run report has no %s family", f)
			continue
		}
		if fr.Failed() {
			p.errorf("%s family failed: %s", f, fr.Err)
			continue
		}
		if fr.Written != n {
			p.errorf("%s: report says %d written, collection has %d", f, fr.Written, n)
		}
	}
	return p
}
