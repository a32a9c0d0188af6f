// Command etl runs the Cambridge incident, citation and weather pipeline once:
// it reads every source, writes the configured sinks and exits non-zero when
// a source is unusable or a family failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/HarvardViz/data-processing/internal/adapter/blobstore"
	httpadapter "github.com/HarvardViz/data-processing/internal/adapter/http"
	kafkaadapter "github.com/HarvardViz/data-processing/internal/adapter/kafka"
	"github.com/HarvardViz/data-processing/internal/adapter/sqlite"
	"github.com/HarvardViz/data-processing/internal/config"
	"github.com/HarvardViz/data-processing/internal/domain"
	"github.com/HarvardViz/data-processing/internal/observability"
	"github.com/HarvardViz/data-processing/internal/pipeline"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	opts, err := pipelineOptions(cfg)
	if err != nil {
		return err
	}

	sources, err := blobstore.OpenBucket(ctx, cfg.SourceURL)
	if err != nil {
		return err
	}
	defer sources.Close()

	sink, closers, err := openSinks(ctx, cfg, logger)
	defer closeAll(closers, logger)
	if err != nil {
		return err
	}

	p := pipeline.New(blobstore.NewSource(sources, cfg, logger), sink, opts, logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("run complete",
		"run_id", report.RunID,
		"duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	return nil
}

func pipelineOptions(cfg *config.Config) (pipeline.Options, error) {
	policy, err := domain.ParseMissingAstroPolicy(cfg.MissingAstroPolicy)
	if err != nil {
		return pipeline.Options{}, err
	}
	extra := make(map[string]domain.CitationLabel, len(cfg.ExtraChargeLabels))
	for desc, name := range cfg.ExtraChargeLabels {
		label, err := domain.ParseCitationLabel(name)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("EXTRA_CHARGE_LABELS %q: %w", desc, err)
		}
		extra[desc] = label
	}
	return pipeline.Options{
		SourceZone:         cfg.SourceZone,
		AstroZone:          cfg.AstroZone,
		StrictAccidentType: cfg.StrictAccidentType,
		MissingAstro:       policy,
		SpatialIndex:       cfg.SpatialIndex,
		LocatorCacheSize:   cfg.LocatorCacheSize,
		Workers:            cfg.Workers,
		Charges:            domain.DefaultChargeClassifier().WithEntries(extra),
	}, nil
}

// openSinks builds one loader per configured sink, in configuration order.
// The returned closers must be closed even when err is set.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.MultiSink, []io.Closer, error) {
	var (
		sinks   pipeline.MultiSink
		closers []io.Closer
	)
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkJSON:
			out, err := blobstore.OpenBucket(ctx, cfg.OutputURL)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, out)
			sinks = append(sinks, blobstore.NewSink(out, logger))
		case config.SinkKafka:
			k := kafkaadapter.NewSink(cfg, logger)
			closers = append(closers, k)
			sinks = append(sinks, k)
		case config.SinkSQLite:
			db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, db)
			sinks = append(sinks, db)
		}
	}
	logger.Info("sinks configured", "sinks", cfg.Sinks)
	return sinks, closers, nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("close error", "error", err)
		}
	}
}
