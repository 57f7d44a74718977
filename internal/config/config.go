package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	InputFile   string   `env:"INPUT_FILE" validate:"required"`
	OutputDir   string   `env:"OUTPUT_DIR" validate:"required"`
	Delimiter   rune     `env:"CSV_DELIMITER" validate:"required"`
	NullTokens  []string `env:"NULL_TOKENS"`
	TopN        int      `env:"TOP_N" validate:"min=1,max=50"`
	ChartWidth  int      `env:"CHART_WIDTH" validate:"min=200,max=8000"`
	ChartHeight int      `env:"CHART_HEIGHT" validate:"min=150,max=8000"`

	// Optional sinks; zero values disable them.
	XLSXEnabled  bool
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string `env:"KAFKA_TOPIC" validate:"required_with=KafkaBrokers"`
	HTTPAddr     string `env:"HTTP_ADDR" validate:"omitempty,hostname_port"`

	LogLevel        string `env:"LOG_LEVEL" validate:"oneof=debug info warn warning error"`
	LogFormat       string `env:"LOG_FORMAT" validate:"oneof=json text"`
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	delimiter, err := parseDelimiter(sharedcfg.EnvOrDefault("CSV_DELIMITER", ","))
	if err != nil {
		return nil, err
	}

	topN, err := parseInt("TOP_N", domain.DefaultTopN)
	if err != nil {
		return nil, err
	}
	chartWidth, err := parseInt("CHART_WIDTH", 1200)
	if err != nil {
		return nil, err
	}
	chartHeight, err := parseInt("CHART_HEIGHT", 600)
	if err != nil {
		return nil, err
	}
	xlsxEnabled, err := parseBool("XLSX_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		InputFile:       sharedcfg.EnvOrDefault("INPUT_FILE", "data/weather_data.csv"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "outputs"),
		Delimiter:       delimiter,
		NullTokens:      parseNullTokens(os.Getenv("NULL_TOKENS")),
		TopN:            topN,
		ChartWidth:      chartWidth,
		ChartHeight:     chartHeight,
		XLSXEnabled:     xlsxEnabled,
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "processed-weather-observations"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks field constraints. Call it again after overriding fields
// from command-line flags.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_with":
		return fmt.Sprintf("%s is required when KAFKA_BROKERS is set", field)
	case "min":
		return fmt.Sprintf("invalid %s: must be at least %s", field, param)
	case "max":
		return fmt.Sprintf("invalid %s: must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("invalid %s: must be one of %s", field, strings.ReplaceAll(param, " ", ", "))
	case "hostname_port":
		return fmt.Sprintf("invalid %s: must be host:port", field)
	default:
		return fmt.Sprintf("invalid %s: failed %s", field, fe.Tag())
	}
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q is not an integer", key, s)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %q is not a boolean", key, s)
	}
	return b, nil
}

func parseDelimiter(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid CSV_DELIMITER: %q must be a single character", s)
	}
	return r, nil
}

// parseNullTokens splits a comma-separated token list. The empty and
// single-space tokens are spelled <blank> and <space>.
func parseNullTokens(s string) []string {
	if s == "" {
		return append([]string(nil), domain.DefaultNullTokens...)
	}
	parts := strings.Split(s, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		switch tok := strings.TrimSpace(p); tok {
		case "<blank>":
			tokens = append(tokens, "")
		case "<space>":
			tokens = append(tokens, " ")
		case "":
		default:
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
