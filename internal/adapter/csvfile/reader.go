// Package csvfile reads the source observation table and writes the CSV
// artifacts of a pipeline run.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

// Options control how the source table is parsed.
type Options struct {
	Delimiter  rune // defaults to ','
	NullTokens domain.NullTokens
}

// DefaultOptions returns comma-delimited parsing with the default null tokens.
func DefaultOptions() Options {
	return Options{Delimiter: ',', NullTokens: domain.NewNullTokens(domain.DefaultNullTokens)}
}

// Loader reads the table from a fixed path. It implements pipeline.Loader.
type Loader struct {
	path string
	opts Options
}

// NewLoader creates a Loader for path.
func NewLoader(path string, opts Options) *Loader {
	return &Loader{path: path, opts: opts}
}

// Path returns the source path.
func (l *Loader) Path() string { return l.path }

// Load reads and parses the source table.
func (l *Loader) Load() (*domain.Table, error) {
	return Load(l.path, l.opts)
}

// Load opens path and parses it as an observation table. Open and read
// failures are *domain.IOError; a header lacking required columns is a
// *domain.SchemaError.
func Load(path string, opts Options) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.IOError{Op: "read", Path: path, Err: err}
	}
	defer f.Close() //nolint:errcheck // read-only

	t, err := Parse(f, opts)
	if err != nil {
		var ioErr *domain.IOError
		if errors.As(err, &ioErr) && ioErr.Path == "" {
			ioErr.Path = path
		}
		return nil, err
	}
	return t, nil
}

// Parse reads a delimited table with a header row. Rows shorter than the
// header are padded with missing cells; longer rows are rejected.
func Parse(r io.Reader, opts Options) (*domain.Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.NullTokens == nil {
		opts.NullTokens = domain.NewNullTokens(domain.DefaultNullTokens)
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.SchemaError{Missing: append([]string(nil), domain.RequiredColumns...)}
	}
	if err != nil {
		return nil, &domain.IOError{Op: "read", Err: fmt.Errorf("read header: %w", err)}
	}
	header = normalizeHeader(header)
	if err := domain.CheckSchema(header); err != nil {
		return nil, err
	}

	t := &domain.Table{Header: header}
	idx := newColumnIndex(header)
	for _, name := range header {
		if !domain.IsRequired(name) {
			t.Extras = append(t.Extras, name)
		}
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.IOError{Op: "read", Err: err}
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, &domain.IOError{Op: "read", Err: fmt.Errorf("line %d: %d fields, header has %d", line, len(record), len(header))}
		}
		t.Rows = append(t.Rows, idx.observation(record, opts.NullTokens))
	}
	return t, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// columnIndex maps schema columns to record positions.
type columnIndex struct {
	date, city, temp, hum, wind, cond int
	extras                            []int
}

func newColumnIndex(header []string) columnIndex {
	pos := make(map[string]int, len(header))
	var extras []int
	for i, name := range header {
		if _, dup := pos[name]; !dup {
			pos[name] = i
		}
		if !domain.IsRequired(name) {
			extras = append(extras, i)
		}
	}
	return columnIndex{
		date:   pos[domain.ColDate],
		city:   pos[domain.ColCity],
		temp:   pos[domain.ColTemperatureCelsius],
		hum:    pos[domain.ColHumidityPercent],
		wind:   pos[domain.ColWindSpeedKPH],
		cond:   pos[domain.ColWeatherCondition],
		extras: extras,
	}
}

func (c columnIndex) observation(record []string, nulls domain.NullTokens) domain.Observation {
	cell := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}

	o := domain.Observation{
		RawDate:     nulls.Text(cell(c.date)),
		Date:        nulls.Date(cell(c.date)),
		City:        strings.TrimSpace(nulls.Text(cell(c.city))),
		Temperature: nulls.Number(cell(c.temp)),
		Humidity:    nulls.Number(cell(c.hum)),
		WindSpeed:   nulls.Number(cell(c.wind)),
		Condition:   nulls.Text(cell(c.cond)),
	}
	if len(c.extras) > 0 {
		o.Extra = make([]string, len(c.extras))
		for i, pos := range c.extras {
			o.Extra[i] = cell(pos)
		}
	}
	return o
}
