package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/fdsn"
	httpadapter "github.com/couchcryptid/quake-catalog-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-catalog-etl/internal/adapter/kafka"
	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/s3"
	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/quake-catalog-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/quake-catalog-etl/internal/observability"
	"github.com/couchcryptid/quake-catalog-etl/internal/pipeline"
	"github.com/couchcryptid/quake-catalog-etl/internal/render"
	"github.com/couchcryptid/quake-catalog-etl/internal/waveform"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, tabulate and map the catalog, then list waveforms",
	Long: `Run queries the configured catalog, writes the spreadsheet and map into
OUTPUT_DIR and prints a summary of every waveform file in WAVEFORM_DIR.

With RUN_INTERVAL set, the pipeline repeats on that interval and serves
/healthz, /readyz, /status and /metrics on HTTP_ADDR until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd.Context(), cmd.OutOrStdout())
	},
}

func runPipeline(ctx context.Context, out io.Writer) error {
	metrics := observability.NewMetrics()

	fetcher, err := fdsn.NewClient(cfg.Catalog, cfg.CatalogTimeout, logger)
	if err != nil {
		return err
	}
	renderer := render.NewMapRenderer(cfg.OutputDir, cfg.MapLandPath, cfg.MapBordersPath, cfg.MapDPI, logger)

	opts, closers, err := optionalStages(ctx, metrics)
	defer func() {
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				logger.Error("close error", "error", cerr)
			}
		}
	}()
	if err != nil {
		return err
	}
	opts = append(opts, pipeline.WithFailOnFetchError(cfg.FailOnFetchError))

	p := pipeline.New(cfg.Query(), cfg.SpreadsheetPath(), fetcher, xlsx.NewWriter(cfg.SheetName), renderer, logger, metrics, opts...)

	if cfg.RunInterval > 0 {
		return serve(ctx, p)
	}

	if _, err := p.RunOnce(ctx); err != nil {
		return err
	}
	waveform.NewLister(cfg.WaveformDir, cfg.WaveformExt, out, logger, metrics).Run(ctx)
	return nil
}

// optionalStages builds the geocoder, sinks and archiver enabled by the
// configuration. The returned closers must be closed even on error.
func optionalStages(ctx context.Context, metrics *observability.Metrics) ([]pipeline.Option, []io.Closer, error) {
	var (
		opts    []pipeline.Option
		sinks   []pipeline.Sink
		closers []io.Closer
	)

	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, cfg.MapboxRateLimit, metrics, logger)
		opts = append(opts, pipeline.WithGeocoder(mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)))
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "rate_limit", cfg.MapboxRateLimit)
	}

	if cfg.KafkaTopic != "" {
		w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		sinks = append(sinks, w)
		closers = append(closers, w)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.ArchiveDBPath != "" {
		store, err := sqlite.NewStore(cfg.ArchiveDBPath)
		if err != nil {
			return nil, closers, fmt.Errorf("open event archive: %w", err)
		}
		sinks = append(sinks, store)
		closers = append(closers, store)
		logger.Info("event archive enabled", "path", store.Path())
	}

	if cfg.S3Bucket != "" {
		a, err := s3.NewArchiver(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint, logger)
		if err != nil {
			return nil, closers, err
		}
		opts = append(opts, pipeline.WithArchiver(a))
		logger.Info("artifact archiving enabled", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
	}

	if len(sinks) > 0 {
		opts = append(opts, pipeline.WithSinks(sinks...))
	}
	return opts, closers, nil
}

func serve(ctx context.Context, p *pipeline.Pipeline) error {
	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.RunEvery(ctx, cfg.RunInterval)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}
