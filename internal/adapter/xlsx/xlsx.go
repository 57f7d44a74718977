// Package xlsx writes the processed table and aggregate views as one
// spreadsheet workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
	"github.com/xuri/excelize/v2"
)

// FileName is the workbook artifact name.
const FileName = "weather_analysis.xlsx"

// Sheet names, in workbook order.
const (
	SheetProcessed   = "processed"
	SheetBasicStats  = "basic_stats"
	SheetCityStats   = "city_stats"
	SheetWeatherFreq = "weather_freq"
	SheetTopCities   = "top_cities"
)

var basicStatsLabels = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Writer saves the workbook. It implements pipeline.Exporter.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a workbook Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (w *Writer) Name() string { return "xlsx" }

// Export writes weather_analysis.xlsx.
func (w *Writer) Export(_ context.Context, run domain.Run, table *domain.Table, analysis *domain.Analysis) error {
	if table == nil || analysis == nil {
		return domain.ErrNotLoaded
	}

	f, err := Build(run, table, analysis)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck // in-memory workbook

	path := run.ArtifactPath(w.dir, FileName)
	if err := fsutil.WriteAtomic(path, func(out io.Writer) error {
		return f.Write(out)
	}); err != nil {
		return err
	}
	w.logger.Info("saved artifact", "path", path)
	return nil
}

// Build assembles the workbook in memory.
func Build(run domain.Run, table *domain.Table, analysis *domain.Analysis) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetProcessed); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, err
	}
	for _, name := range []string{SheetBasicStats, SheetCityStats, SheetWeatherFreq, SheetTopCities} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close() //nolint:errcheck // already failing
			return nil, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, err
	}

	b := &builder{f: f, header: header}
	b.processed(table)
	b.basicStats(analysis.BasicStats)
	b.cityStats(analysis.CityStats)
	b.weatherFreq(analysis.WeatherFreq)
	b.topCities(analysis.TopCities)
	if b.err == nil {
		props := &excelize.DocProperties{Title: "Weather Data Analysis", Description: "run " + run.ID}
		if !analysis.GeneratedAt.IsZero() {
			props.Created = analysis.GeneratedAt.UTC().Format(time.RFC3339)
		}
		b.err = f.SetDocProps(props)
	}
	if b.err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, b.err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// builder writes rows sheet by sheet and keeps the first error.
type builder struct {
	f      *excelize.File
	header int
	err    error
}

func (b *builder) row(sheet string, n int, values []any) {
	if b.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		b.err = err
		return
	}
	b.err = b.f.SetSheetRow(sheet, cell, &values)
}

func (b *builder) headerRow(sheet string, names []string) {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	b.row(sheet, 1, values)
	if b.err == nil {
		b.err = b.f.SetRowStyle(sheet, 1, 1, b.header)
	}
	if b.err == nil {
		b.err = b.f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
}

func (b *builder) processed(t *domain.Table) {
	b.headerRow(SheetProcessed, t.Columns())
	for i := range t.Rows {
		values := t.Values(&t.Rows[i])
		for j, v := range values {
			if d, ok := v.(time.Time); ok {
				values[j] = domain.FormatDate(d)
			}
		}
		b.row(SheetProcessed, i+2, values)
	}
}

func (b *builder) basicStats(stats []domain.ColumnSummary) {
	names := []string{"statistic"}
	for _, s := range stats {
		names = append(names, s.Column)
	}
	b.headerRow(SheetBasicStats, names)

	for i, label := range basicStatsLabels {
		values := []any{label}
		for _, s := range stats {
			values = append(values, summaryValue(s.Summary, label))
		}
		b.row(SheetBasicStats, i+2, values)
	}
}

func summaryValue(s domain.Summary, label string) any {
	switch label {
	case "count":
		return s.Count
	case "mean":
		return number(s.Mean)
	case "std":
		return number(s.Std)
	case "min":
		return number(s.Min)
	case "25%":
		return number(s.Q25)
	case "50%":
		return number(s.Median)
	case "75%":
		return number(s.Q75)
	default:
		return number(s.Max)
	}
}

func (b *builder) cityStats(stats []domain.CityStats) {
	names := []string{domain.ColCity}
	for _, col := range domain.StatColumns {
		names = append(names, col+"_mean", col+"_median", col+"_min", col+"_max")
	}
	b.headerRow(SheetCityStats, names)

	for i, cs := range stats {
		values := []any{cs.City}
		for _, agg := range cs.Aggregates {
			values = append(values, number(agg.Mean), number(agg.Median), number(agg.Min), number(agg.Max))
		}
		b.row(SheetCityStats, i+2, values)
	}
}

func (b *builder) weatherFreq(freq []domain.ConditionCount) {
	b.headerRow(SheetWeatherFreq, []string{domain.ColWeatherCondition, "count"})
	for i, c := range freq {
		b.row(SheetWeatherFreq, i+2, []any{c.Condition, c.Count})
	}
}

func (b *builder) topCities(top []domain.CityTemperature) {
	b.headerRow(SheetTopCities, []string{"rank", domain.ColCity, domain.ColTemperatureCelsius})
	for i, c := range top {
		b.row(SheetTopCities, i+2, []any{i + 1, c.City, number(c.Temperature)})
	}
}

// number maps NaN to an empty cell.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
