// Package pipeline runs the Loader, Cleaner, Transformer, Analyzer and
// Exporter stages over one source table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
	"github.com/couchcryptid/weather-data-pipeline/internal/observability"
)

// Loader reads the source table.
type Loader interface {
	Load() (*domain.Table, error)
}

// Exporter persists or publishes the results of a run.
type Exporter interface {
	Name() string
	Export(ctx context.Context, run domain.Run, table *domain.Table, analysis *domain.Analysis) error
}

// Options tune a Pipeline. Zero values select the defaults.
type Options struct {
	TopN int
	// OutputDir, when set, receives the file artifacts of a run only once
	// every exporter has succeeded. Until then they live in a hidden staging
	// directory inside it, which a failed run removes.
	OutputDir string
}

// Result describes the outcome of one run.
type Result struct {
	Run       domain.Run
	Success   bool
	Err       error
	Clean     domain.CleanReport
	Transform domain.TransformReport
	Analysis  *domain.Analysis
}

// Pipeline owns the table of one run at a time. Runs are sequential.
type Pipeline struct {
	loader    Loader
	exporters []Exporter
	logger    *slog.Logger
	metrics   *observability.Metrics
	opts      Options

	ready  atomic.Bool
	latest atomic.Pointer[domain.Analysis]
}

// New creates a Pipeline with the given stages and observability.
func New(loader Loader, exporters []Exporter, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Pipeline {
	if opts.TopN <= 0 {
		opts.TopN = domain.DefaultTopN
	}
	return &Pipeline{
		loader:    loader,
		exporters: exporters,
		logger:    logger,
		metrics:   metrics,
		opts:      opts,
	}
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LatestAnalysis returns the analysis of the last successful run, or nil.
func (p *Pipeline) LatestAnalysis() *domain.Analysis {
	return p.latest.Load()
}

// Run executes every stage once. Stage failures are logged and reported in
// the Result; Run itself never panics on bad input.
func (p *Pipeline) Run(ctx context.Context) Result {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	res := Result{Run: domain.Run{ID: uuid.NewString(), StartedAt: domain.Now()}}
	if src, ok := p.loader.(interface{ Path() string }); ok {
		res.Run.InputPath = src.Path()
	}
	logger := p.logger.With("run_id", res.Run.ID)
	logger.Info("pipeline started", "input", res.Run.InputPath, "exporters", len(p.exporters))

	res.Err = p.run(ctx, logger, &res)
	if res.Run.FinishedAt.IsZero() {
		res.Run.FinishedAt = domain.Now()
	}
	elapsed := domain.Now().Sub(res.Run.StartedAt)

	if res.Err != nil {
		p.metrics.Runs.WithLabelValues("failure").Inc()
		logger.Error("pipeline failed", "error", res.Err, "duration", elapsed)
		return res
	}

	res.Success = true
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.latest.Store(res.Analysis)
	p.ready.Store(true)
	logger.Info("pipeline finished",
		"rows_loaded", res.Run.RowsLoaded,
		"rows_out", res.Run.RowsOut,
		"duration", elapsed,
	)
	return res
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, res *Result) error {
	var table *domain.Table
	err := p.stage("load", func() error {
		var err error
		table, err = p.loader.Load()
		return err
	})
	if err != nil {
		return fmt.Errorf("load table: %w", err)
	}
	if table == nil {
		return fmt.Errorf("load table: %w", domain.ErrNotLoaded)
	}
	res.Run.RowsLoaded = table.Len()
	p.metrics.RowsLoaded.Add(float64(table.Len()))
	logger.Info("loaded table", "rows", table.Len(), "columns", len(table.Header))

	err = p.stage("clean", func() error {
		var err error
		table, res.Clean, err = domain.Clean(table)
		return err
	})
	if err != nil {
		return fmt.Errorf("clean table: %w", err)
	}
	p.recordClean(logger, res.Clean)

	err = p.stage("transform", func() error {
		var err error
		table, res.Transform, err = domain.Transform(table)
		return err
	})
	if err != nil {
		return fmt.Errorf("transform table: %w", err)
	}
	if res.Transform.InvalidDates > 0 {
		p.metrics.RowsDropped.WithLabelValues("invalid_date").Add(float64(res.Transform.InvalidDates))
		logger.Info("dropped rows with invalid dates after transform", "count", res.Transform.InvalidDates, "reason", "invalid_date")
	}
	res.Run.RowsOut = table.Len()
	logger.Info("transformed table", "rows", table.Len())

	err = p.stage("analyze", func() error {
		var err error
		res.Analysis, err = domain.Analyze(table, p.opts.TopN)
		return err
	})
	if err != nil {
		return fmt.Errorf("analyze table: %w", err)
	}
	logger.Info("analyzed table",
		"cities", len(res.Analysis.CityStats),
		"conditions", len(res.Analysis.WeatherFreq),
	)

	res.Run.FinishedAt = domain.Now()
	return p.export(ctx, logger, res.Run, table, res.Analysis)
}

// export hands the results to every exporter once, in order. The first
// failure aborts the run and discards the staged file artifacts.
func (p *Pipeline) export(ctx context.Context, logger *slog.Logger, run domain.Run, table *domain.Table, analysis *domain.Analysis) (err error) {
	if p.opts.OutputDir != "" {
		staging, serr := fsutil.NewStage(p.opts.OutputDir)
		if serr != nil {
			return fmt.Errorf("stage artifacts: %w", serr)
		}
		defer func() {
			if err == nil {
				if err = staging.Commit(); err != nil {
					err = fmt.Errorf("commit artifacts: %w", err)
				}
			}
			if err != nil {
				if derr := staging.Discard(); derr != nil {
					logger.Warn("discard staged artifacts", "error", derr)
				}
			}
		}()
		run.ArtifactDir = staging.Dir()
	}

	for _, e := range p.exporters {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if eerr := p.stage("export_"+e.Name(), func() error {
			return e.Export(ctx, run, table, analysis)
		}); eerr != nil {
			return fmt.Errorf("export %s: %w", e.Name(), eerr)
		}
		p.metrics.Artifacts.WithLabelValues(e.Name()).Inc()
	}
	return nil
}

func (p *Pipeline) recordClean(logger *slog.Logger, r domain.CleanReport) {
	drops := []struct {
		reason string
		msg    string
		count  int
		level  slog.Level
	}{
		{"invalid_date", "dropped rows with invalid/missing dates", r.InvalidDates, slog.LevelInfo},
		{"unknown_condition", "dropped rows with unknown/empty weather conditions", r.UnknownConditions, slog.LevelInfo},
		// A column with no values at all empties the table.
		{"unimputable", "dropped rows with no value to impute", r.Unimputable, slog.LevelWarn},
	}
	for _, d := range drops {
		p.metrics.RowsDropped.WithLabelValues(d.reason).Add(float64(d.count))
		if d.count > 0 {
			logger.Log(context.Background(), d.level, d.msg, "count", d.count, "reason", d.reason)
		}
	}

	for _, col := range domain.ImputedColumns {
		group, global := r.GroupImputed[col], r.GlobalImputed[col]
		p.metrics.ValuesImputed.WithLabelValues(col, "city_median").Add(float64(group))
		p.metrics.ValuesImputed.WithLabelValues(col, "global_median").Add(float64(global))
		if group+global > 0 {
			logger.Debug("imputed missing values", "column", col, "city_median", group, "global_median", global)
		}
	}
	logger.Info("cleaned table", "rows_in", r.RowsIn, "rows_out", r.RowsOut)
}

// stage times fn under the given stage label.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	return err
}
