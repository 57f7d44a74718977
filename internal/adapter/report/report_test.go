package report

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnalysis() *domain.Analysis {
	return &domain.Analysis{
		GeneratedAt: time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC),
		TopCities: []domain.CityTemperature{
			{City: "Cairo", Temperature: 35},
			{City: "Delhi", Temperature: 33.456},
			{City: "Perth", Temperature: 20.67},
		},
	}
}

func TestRender(t *testing.T) {
	out := string(Render(domain.Run{ID: "run-1", RowsLoaded: 7, RowsOut: 6}, testAnalysis(), 5))
	lines := strings.Split(out, "\n")

	assert.Equal(t, "# Weather Data Analysis Report", lines[0])
	assert.Contains(t, out, "Generated: 2024-03-01T09:00:00Z")
	assert.Contains(t, out, "Run `run-1`: 7 rows loaded, 6 rows processed.")
	assert.Contains(t, out, "## Top 5 Warmest Cities")

	var tableLines []string
	for _, l := range lines {
		if strings.HasPrefix(l, "|") {
			tableLines = append(tableLines, l)
		}
	}
	require.Len(t, tableLines, 5, "header, separator and three rows")
	assert.Regexp(t, `^\|\s*Rank\s*\|\s*City\s*\|\s*Average Temperature \(°C\)\s*\|$`, tableLines[0])
	assert.Regexp(t, `^\|-+\|-+\|-+\|$`, tableLines[1])
	assert.Regexp(t, `^\|\s*1\s*\|\s*Cairo\s*\|\s*35\.00\s*\|$`, tableLines[2])
	assert.Regexp(t, `^\|\s*2\s*\|\s*Delhi\s*\|\s*33\.46\s*\|$`, tableLines[3])
	assert.Regexp(t, `^\|\s*3\s*\|\s*Perth\s*\|\s*20\.67\s*\|$`, tableLines[4])
}

func TestRender_NoCities(t *testing.T) {
	out := string(Render(domain.Run{}, &domain.Analysis{}, 5))
	assert.Contains(t, out, "No city has temperature data.")
	assert.NotContains(t, out, "|")
	assert.NotContains(t, out, "Run `")
}

func TestWriter_Export(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "report", w.Name())

	require.NoError(t, w.Export(context.Background(), domain.Run{}, nil, testAnalysis()))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Top 5 Warmest Cities")
	assert.Contains(t, string(data), "Cairo")

	err = w.Export(context.Background(), domain.Run{}, nil, nil)
	require.ErrorIs(t, err, domain.ErrNotLoaded)
}
