// Package report renders the warmest-cities ranking as a markdown document.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
	"github.com/olekukonko/tablewriter"
)

// FileName is the report artifact name.
const FileName = "top_cities_report.md"

// Writer saves the markdown report. It implements pipeline.Exporter.
type Writer struct {
	dir    string
	topN   int
	logger *slog.Logger
}

// NewWriter creates a report Writer. topN only sets the section title; the
// ranking itself comes from the analysis.
func NewWriter(dir string, topN int, logger *slog.Logger) *Writer {
	if topN <= 0 {
		topN = domain.DefaultTopN
	}
	return &Writer{dir: dir, topN: topN, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (w *Writer) Name() string { return "report" }

// Export writes top_cities_report.md.
func (w *Writer) Export(_ context.Context, run domain.Run, _ *domain.Table, analysis *domain.Analysis) error {
	if analysis == nil {
		return domain.ErrNotLoaded
	}
	path := run.ArtifactPath(w.dir, FileName)
	if err := fsutil.WriteAtomic(path, func(out io.Writer) error {
		_, err := out.Write(Render(run, analysis, w.topN))
		return err
	}); err != nil {
		return err
	}
	w.logger.Info("saved artifact", "path", path)
	return nil
}

// Render builds the markdown document.
func Render(run domain.Run, analysis *domain.Analysis, topN int) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Weather Data Analysis Report\n\n")
	fmt.Fprintf(&buf, "Generated: %s\n\n", analysis.GeneratedAt.UTC().Format(time.RFC3339))
	if run.ID != "" {
		fmt.Fprintf(&buf, "Run `%s`: %d rows loaded, %d rows processed.\n\n", run.ID, run.RowsLoaded, run.RowsOut)
	}
	fmt.Fprintf(&buf, "## Top %d Warmest Cities\n\n", topN)

	if len(analysis.TopCities) == 0 {
		buf.WriteString("No city has temperature data.\n")
		return buf.Bytes()
	}

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Rank", "City", "Average Temperature (°C)"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	rows := make([][]string, len(analysis.TopCities))
	for i, c := range analysis.TopCities {
		rows[i] = []string{strconv.Itoa(i + 1), c.City, strconv.FormatFloat(c.Temperature, 'f', 2, 64)}
	}
	table.AppendBulk(rows)
	table.Render()
	return buf.Bytes()
}
