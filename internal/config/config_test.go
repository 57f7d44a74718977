package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

var envKeys = []string{
	"INPUT_FILE", "OUTPUT_DIR", "CSV_DELIMITER", "NULL_TOKENS", "TOP_N",
	"CHART_WIDTH", "CHART_HEIGHT", "XLSX_ENABLED", "SQLITE_PATH",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT",
	"SHUTDOWN_TIMEOUT",
}

// clearEnv blanks every variable Load reads; empty counts as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/weather_data.csv", cfg.InputFile)
	assert.Equal(t, "outputs", cfg.OutputDir)
	assert.Equal(t, ',', cfg.Delimiter)
	assert.Equal(t, domain.DefaultNullTokens, cfg.NullTokens)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 1200, cfg.ChartWidth)
	assert.Equal(t, 600, cfg.ChartHeight)
	assert.False(t, cfg.XLSXEnabled)
	assert.Empty(t, cfg.SQLitePath)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "processed-weather-observations", cfg.KafkaTopic)
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("INPUT_FILE", "/data/in.csv")
	t.Setenv("OUTPUT_DIR", "/data/out")
	t.Setenv("CSV_DELIMITER", ";")
	t.Setenv("NULL_TOKENS", "<blank>, -, n/a,<space>")
	t.Setenv("TOP_N", "10")
	t.Setenv("CHART_WIDTH", "800")
	t.Setenv("CHART_HEIGHT", "400")
	t.Setenv("XLSX_ENABLED", "true")
	t.Setenv("SQLITE_PATH", "/data/archive.db")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-sink")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/in.csv", cfg.InputFile)
	assert.Equal(t, "/data/out", cfg.OutputDir)
	assert.Equal(t, ';', cfg.Delimiter)
	assert.Equal(t, []string{"", "-", "n/a", " "}, cfg.NullTokens)
	assert.Equal(t, 10, cfg.TopN)
	assert.Equal(t, 800, cfg.ChartWidth)
	assert.Equal(t, 400, cfg.ChartHeight)
	assert.True(t, cfg.XLSXEnabled)
	assert.Equal(t, "/data/archive.db", cfg.SQLitePath)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaTopic)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_TabDelimiter(t *testing.T) {
	clearEnv(t)
	t.Setenv("CSV_DELIMITER", `\t`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, '\t', cfg.Delimiter)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"shutdown timeout not a duration", "SHUTDOWN_TIMEOUT", "not-a-duration", "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s", "SHUTDOWN_TIMEOUT"},
		{"multi-character delimiter", "CSV_DELIMITER", ";;", "CSV_DELIMITER"},
		{"quote delimiter", "CSV_DELIMITER", `"`, "CSV_DELIMITER"},
		{"top n not a number", "TOP_N", "five", "TOP_N"},
		{"top n zero", "TOP_N", "0", "TOP_N"},
		{"top n too large", "TOP_N", "51", "TOP_N"},
		{"chart too narrow", "CHART_WIDTH", "10", "CHART_WIDTH"},
		{"chart too tall", "CHART_HEIGHT", "90000", "CHART_HEIGHT"},
		{"xlsx flag", "XLSX_ENABLED", "maybe", "XLSX_ENABLED"},
		{"http addr", "HTTP_ADDR", "not an address", "HTTP_ADDR"},
		{"log level", "LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"log format", "LOG_FORMAT", "xml", "LOG_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_AfterOverride(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.InputFile = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INPUT_FILE is required")

	cfg.InputFile = "other.csv"
	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaTopic = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_TOPIC")
}
