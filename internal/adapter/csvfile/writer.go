package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
)

// Artifact file names.
const (
	TransformedFile = "transformed_weather_data.csv"
	BasicStatsFile  = "basic_stats.csv"
	CityStatsFile   = "city_stats.csv"
	WeatherFreqFile = "weather_freq.csv"
)

// BasicStatsLabels are the row labels of basic_stats.csv.
var BasicStatsLabels = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Writer saves the processed table and the aggregate views as CSV files.
// It implements pipeline.Exporter.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (w *Writer) Name() string { return "csv" }

// Export writes the four CSV artifacts. Each file is replaced atomically.
func (w *Writer) Export(ctx context.Context, run domain.Run, table *domain.Table, analysis *domain.Analysis) error {
	if table == nil || analysis == nil {
		return domain.ErrNotLoaded
	}

	files := []struct {
		name  string
		write func(*csv.Writer) error
	}{
		{TransformedFile, func(cw *csv.Writer) error { return writeTable(cw, table) }},
		{BasicStatsFile, func(cw *csv.Writer) error { return writeBasicStats(cw, analysis.BasicStats) }},
		{CityStatsFile, func(cw *csv.Writer) error { return writeCityStats(cw, analysis.CityStats) }},
		{WeatherFreqFile, func(cw *csv.Writer) error { return writeWeatherFreq(cw, analysis.WeatherFreq) }},
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := run.ArtifactPath(w.dir, f.name)
		err := fsutil.WriteAtomic(path, func(out io.Writer) error {
			cw := csv.NewWriter(out)
			if err := f.write(cw); err != nil {
				return err
			}
			cw.Flush()
			return cw.Error()
		})
		if err != nil {
			return err
		}
		w.logger.Info("saved artifact", "path", path)
	}
	return nil
}

func writeTable(cw *csv.Writer, t *domain.Table) error {
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	var record []string
	for i := range t.Rows {
		record = record[:0]
		for _, v := range t.Values(&t.Rows[i]) {
			record = append(record, formatCell(v))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return FormatFloat(v)
	case time.Time:
		return domain.FormatDate(v)
	default:
		return fmt.Sprint(v)
	}
}

// FormatFloat renders a value in its shortest exact form, or "" for NaN.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeBasicStats(cw *csv.Writer, stats []domain.ColumnSummary) error {
	header := make([]string, 0, len(stats)+1)
	header = append(header, "statistic")
	for _, s := range stats {
		header = append(header, s.Column)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, label := range BasicStatsLabels {
		record := make([]string, 0, len(header))
		record = append(record, label)
		for _, s := range stats {
			record = append(record, summaryField(s.Summary, label))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func summaryField(s domain.Summary, label string) string {
	switch label {
	case "count":
		return strconv.Itoa(s.Count)
	case "mean":
		return FormatFloat(s.Mean)
	case "std":
		return FormatFloat(s.Std)
	case "min":
		return FormatFloat(s.Min)
	case "25%":
		return FormatFloat(s.Q25)
	case "50%":
		return FormatFloat(s.Median)
	case "75%":
		return FormatFloat(s.Q75)
	case "max":
		return FormatFloat(s.Max)
	}
	return ""
}

// CityStatsHeader returns the flattened city_stats.csv header, e.g.
// temperature_celsius_mean.
func CityStatsHeader() []string {
	header := []string{domain.ColCity}
	for _, col := range domain.StatColumns {
		header = append(header, col+"_mean", col+"_median", col+"_min", col+"_max")
	}
	return header
}

func writeCityStats(cw *csv.Writer, stats []domain.CityStats) error {
	if err := cw.Write(CityStatsHeader()); err != nil {
		return err
	}
	for _, cs := range stats {
		record := []string{cs.City}
		for _, agg := range cs.Aggregates {
			record = append(record,
				FormatFloat(agg.Mean),
				FormatFloat(agg.Median),
				FormatFloat(agg.Min),
				FormatFloat(agg.Max),
			)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	return nil
}

func writeWeatherFreq(cw *csv.Writer, freq []domain.ConditionCount) error {
	if err := cw.Write([]string{domain.ColWeatherCondition, "count"}); err != nil {
		return err
	}
	for _, c := range freq {
		if err := cw.Write([]string{c.Condition, strconv.Itoa(c.Count)}); err != nil {
			return err
		}
	}
	return nil
}
