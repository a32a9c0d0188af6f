package blobstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sfomuseum/go-csvdict"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"
	"golang.org/x/sync/errgroup"

	"github.com/HarvardViz/data-processing/internal/config"
	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/geo"
	"github.com/HarvardViz/data-processing/internal/pipeline"
)

// Source reads every input of a run from a bucket. It implements
// pipeline.Extractor.
type Source struct {
	bucket *blob.Bucket
	cfg    *config.Config
	logger *slog.Logger
}

// NewSource creates a Source over bucket using the keys in cfg.
func NewSource(bucket *blob.Bucket, cfg *config.Config, logger *slog.Logger) *Source {
	return &Source{bucket: bucket, cfg: cfg, logger: logger}
}

// Extract loads all sources concurrently. Any missing or unreadable object
// fails the whole extraction with an error wrapping
// domain.ErrSourceUnavailable; per-row CSV problems are kept on the table.
func (s *Source) Extract(ctx context.Context) (pipeline.Inputs, error) {
	in := pipeline.Inputs{
		Incidents:    make([]domain.Table, len(s.cfg.IncidentSources)),
		Astronomical: make([]domain.AstroSource, len(s.cfg.AstroYears)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.read(gctx, s.cfg.NeighborhoodsKey)
		if err != nil {
			return err
		}
		in.Regions, err = geo.LoadRegions(data, s.cfg.NeighborhoodProperty)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, s.cfg.NeighborhoodsKey, err)
		}
		return nil
	})
	for i, src := range s.cfg.IncidentSources {
		g.Go(func() error {
			var err error
			in.Incidents[i], err = s.readTable(gctx, src.Key, src.Vintage)
			return err
		})
	}
	g.Go(func() error {
		var err error
		in.Citations, err = s.readTable(gctx, s.cfg.CitationsKey, "")
		return err
	})
	g.Go(func() error {
		var err error
		in.Weather, err = s.readTable(gctx, s.cfg.WeatherKey, "")
		return err
	})
	for i, year := range s.cfg.AstroYears {
		g.Go(func() error {
			key := s.cfg.AstroKey(year)
			data, err := s.read(gctx, key)
			if err != nil {
				return err
			}
			in.Astronomical[i] = domain.AstroSource{Name: key, Year: year, Lines: splitLines(data)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Inputs{}, err
	}
	return in, nil
}

func (s *Source) read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s: not found", domain.ErrSourceUnavailable, key)
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, key, err)
	}
	s.logger.Debug("source read", "key", key, "bytes", len(data))
	return data, nil
}

// readTable reads a CSV with a header row. A row the CSV reader rejects is
// kept as a nil record with its error in RowErrors.
func (s *Source) readTable(ctx context.Context, key, vintage string) (domain.Table, error) {
	data, err := s.read(ctx, key)
	if err != nil {
		return domain.Table{}, err
	}
	r, err := csvdict.NewReader(bytes.NewReader(data))
	if err != nil {
		return domain.Table{}, fmt.Errorf("%w: %s: header: %w", domain.ErrSourceUnavailable, key, err)
	}
	if len(r.Fieldnames) > 0 {
		r.Fieldnames[0] = strings.TrimPrefix(r.Fieldnames[0], "\ufeff")
	}

	t := domain.Table{
		Name:    key,
		Vintage: vintage,
		Header:  append([]string(nil), r.Fieldnames...),
	}
	for row := 1; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			if t.RowErrors == nil {
				t.RowErrors = make(map[int]error)
			}
			t.Rows = append(t.Rows, nil)
			t.RowErrors[row] = err
			continue
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, key, err)
		}
		t.Rows = append(t.Rows, domain.RawRecord(rec))
	}
	if len(t.RowErrors) > 0 {
		s.logger.Warn("unreadable csv rows", "key", key, "rows", len(t.RowErrors))
	}
	return t, nil
}

func splitLines(data []byte) []string {
	lines := strings.Split(string(data), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}
