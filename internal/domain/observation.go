package domain

import (
	"database/sql"
	"path/filepath"
	"time"
)

// Column names of the observation schema.
const (
	ColDate                  = "date"
	ColCity                  = "city"
	ColTemperatureCelsius    = "temperature_celsius"
	ColHumidityPercent       = "humidity_percent"
	ColWindSpeedKPH          = "wind_speed_kph"
	ColWeatherCondition      = "weather_condition"
	ColYear                  = "year"
	ColMonth                 = "month"
	ColDay                   = "day"
	ColTemperatureFahrenheit = "temperature_fahrenheit"
)

// UnknownCondition is the condition label treated as "no observation".
const UnknownCondition = "unknown"

// RequiredColumns lists the columns every source table must provide.
var RequiredColumns = []string{
	ColDate,
	ColCity,
	ColTemperatureCelsius,
	ColHumidityPercent,
	ColWindSpeedKPH,
	ColWeatherCondition,
}

// DerivedColumns lists the columns added by Transform, in output order.
var DerivedColumns = []string{ColYear, ColMonth, ColDay, ColTemperatureFahrenheit}

// ImputedColumns are the numeric source columns Clean fills in.
var ImputedColumns = []string{ColTemperatureCelsius, ColHumidityPercent, ColWindSpeedKPH}

// StatColumns are the numeric columns summarized by Analyze.
var StatColumns = []string{ColTemperatureCelsius, ColHumidityPercent, ColWindSpeedKPH, ColTemperatureFahrenheit}

// DefaultNullTokens are the raw cell values read as missing.
var DefaultNullTokens = []string{"", " ", "NA", "N/A", "NaN", "None", "unknown", "Unknown"}

// Observation is one row of the observation table.
//
// Nullable columns use the database/sql null wrappers so "missing" is explicit
// rather than encoded as a zero value.
type Observation struct {
	// RawDate is the source text of the date cell, kept so Clean can re-coerce it.
	RawDate     string
	Date        sql.NullTime
	City        string // empty when missing
	Temperature sql.NullFloat64
	Humidity    sql.NullFloat64
	WindSpeed   sql.NullFloat64
	Condition   string // empty when missing

	// Extra holds pass-through cells aligned with Table.Extras.
	Extra []string

	// Derived by Transform.
	Year                  int
	Month                 int
	Day                   int
	TemperatureFahrenheit float64
}

// Numeric returns a pointer to the nullable value backing an imputed column,
// or nil for any other column name.
func (o *Observation) Numeric(column string) *sql.NullFloat64 {
	switch column {
	case ColTemperatureCelsius:
		return &o.Temperature
	case ColHumidityPercent:
		return &o.Humidity
	case ColWindSpeedKPH:
		return &o.WindSpeed
	default:
		return nil
	}
}

// Stat returns the value of a summarized column and whether it is present.
func (o *Observation) Stat(column string) (float64, bool) {
	if column == ColTemperatureFahrenheit {
		return o.TemperatureFahrenheit, o.Temperature.Valid
	}
	v := o.Numeric(column)
	if v == nil || !v.Valid {
		return 0, false
	}
	return v.Float64, true
}

// Table is the in-memory observation table owned by a single pipeline run.
type Table struct {
	// Header is the source header in its original order.
	Header []string
	// Extras names the non-schema columns, in header order.
	Extras []string
	Rows   []Observation
	// Derived is set once Transform has populated the derived columns.
	Derived bool
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Columns returns the output column order: the source header followed by the
// derived columns when present.
func (t *Table) Columns() []string {
	cols := make([]string, 0, len(t.Header)+len(DerivedColumns))
	cols = append(cols, t.Header...)
	if t.Derived {
		cols = append(cols, DerivedColumns...)
	}
	return cols
}

// ExtraIndex returns the position of an extra column in Observation.Extra.
func (t *Table) ExtraIndex(column string) int {
	for i, name := range t.Extras {
		if name == column {
			return i
		}
	}
	return -1
}

// Run identifies one pipeline execution.
type Run struct {
	ID         string
	InputPath  string
	StartedAt  time.Time
	FinishedAt time.Time
	RowsLoaded int
	RowsOut    int
	// ArtifactDir, when set, is where file exporters write this run's
	// artifacts instead of their own directory.
	ArtifactDir string
}

// ArtifactPath places an artifact in the run's artifact directory, or in dir
// when the run has none.
func (r Run) ArtifactPath(dir, name string) string {
	if r.ArtifactDir != "" {
		dir = r.ArtifactDir
	}
	return filepath.Join(dir, name)
}

// Values returns the cells of row o in Columns order. Missing values are nil,
// dates are time.Time, measurements float64 and calendar parts int. Extra
// cells are returned as their source text.
func (t *Table) Values(o *Observation) []any {
	cols := t.Columns()
	out := make([]any, len(cols))
	extra := 0
	for i, col := range cols {
		if i < len(t.Header) && !IsRequired(col) {
			if extra < len(o.Extra) {
				out[i] = o.Extra[extra]
			} else {
				out[i] = ""
			}
			extra++
			continue
		}
		out[i] = o.value(col)
	}
	return out
}

func (o *Observation) value(col string) any {
	switch col {
	case ColDate:
		if !o.Date.Valid {
			return nil
		}
		return o.Date.Time
	case ColCity:
		return o.City
	case ColWeatherCondition:
		return o.Condition
	case ColYear:
		return o.Year
	case ColMonth:
		return o.Month
	case ColDay:
		return o.Day
	}
	v, ok := o.Stat(col)
	if !ok {
		return nil
	}
	return v
}

// IsRequired reports whether name is one of RequiredColumns.
func IsRequired(name string) bool {
	for _, col := range RequiredColumns {
		if col == name {
			return true
		}
	}
	return false
}

// FormatDate renders a date as YYYY-MM-DD, adding the time of day when set.
func FormatDate(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.DateTime)
}
