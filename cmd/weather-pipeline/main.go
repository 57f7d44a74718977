// Command weather-pipeline cleans, transforms and analyzes a weather
// observation CSV and writes the results to the configured sinks.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/chart"
	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/weather-data-pipeline/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/weather-data-pipeline/internal/adapter/kafka"
	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/report"
	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/xlsx"
	"github.com/couchcryptid/weather-data-pipeline/internal/config"
	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/observability"
	"github.com/couchcryptid/weather-data-pipeline/internal/pipeline"
)

var cli struct {
	Input     string `help:"Source CSV file. Overrides INPUT_FILE." placeholder:"PATH"`
	OutputDir string `help:"Artifact directory. Overrides OUTPUT_DIR." placeholder:"DIR"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("weather-pipeline"),
		kong.Description("Clean, transform and analyze weather observations."),
	)
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if cli.Input != "" {
		cfg.InputFile = cli.Input
	}
	if cli.OutputDir != "" {
		cfg.OutputDir = cli.OutputDir
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid flags", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporters, closers, err := buildExporters(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up exporters", "error", err)
		return 1
	}
	defer func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Error("close exporter", "error", err)
			}
		}
	}()

	loader := csvfile.NewLoader(cfg.InputFile, csvfile.Options{
		Delimiter:  cfg.Delimiter,
		NullTokens: domain.NewNullTokens(cfg.NullTokens),
	})
	p := pipeline.New(loader, exporters, logger, metrics, pipeline.Options{
		TopN:      cfg.TopN,
		OutputDir: cfg.OutputDir,
	})

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	res := p.Run(ctx)

	if srv != nil {
		serveResults(ctx, srv, res, cfg.ShutdownTimeout, logger)
	}

	if !res.Success {
		return 1
	}
	logger.Info("pipeline completed successfully", "output_dir", cfg.OutputDir)
	return 0
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// serveResults keeps the server up after a successful run until ctx ends,
// then drains it. A failed run shuts it down straight away.
func serveResults(ctx context.Context, srv shutdowner, res pipeline.Result, timeout time.Duration, logger *slog.Logger) {
	if res.Success {
		<-ctx.Done()
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
}

// buildExporters wires the file artifacts plus the optional sinks enabled in
// cfg, returning the close funcs of the sinks that hold connections.
func buildExporters(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]pipeline.Exporter, []func() error, error) {
	exporters := []pipeline.Exporter{
		csvfile.NewWriter(cfg.OutputDir, logger),
		report.NewWriter(cfg.OutputDir, cfg.TopN, logger),
		chart.NewWriter(cfg.OutputDir, cfg.ChartWidth, cfg.ChartHeight, logger),
	}
	var closers []func() error

	if cfg.XLSXEnabled {
		exporters = append(exporters, xlsx.NewWriter(cfg.OutputDir, logger))
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		exporters = append(exporters, store)
		closers = append(closers, store.Close)
		logger.Info("sqlite archive enabled", "path", cfg.SQLitePath)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		exporters = append(exporters, publisher)
		closers = append(closers, publisher.Close)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}
	return exporters, closers, nil
}
