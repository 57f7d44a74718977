package domain

import (
	"slices"
)

// TransformReport carries the diagnostic counts of one Transform call.
type TransformReport struct {
	// InvalidDates counts rows whose date failed re-validation. It is zero
	// whenever the table came from Clean.
	InvalidDates int
	RowsOut      int
}

// Transform orders the table by date and derives the calendar parts and the
// Fahrenheit temperature. Rows sharing a date keep their relative order.
func Transform(t *Table) (*Table, TransformReport, error) {
	if t == nil {
		return nil, TransformReport{}, ErrNotLoaded
	}

	var report TransformReport
	for i := range t.Rows {
		coerceDate(&t.Rows[i])
	}
	before := len(t.Rows)
	t.Rows = filterRows(t.Rows, func(o *Observation) bool { return o.Date.Valid })
	report.InvalidDates = before - len(t.Rows)

	slices.SortStableFunc(t.Rows, func(a, b Observation) int {
		return a.Date.Time.Compare(b.Date.Time)
	})

	for i := range t.Rows {
		deriveColumns(&t.Rows[i])
	}
	t.Derived = true
	report.RowsOut = len(t.Rows)

	return t, report, nil
}

func deriveColumns(o *Observation) {
	d := o.Date.Time
	o.Year = d.Year()
	o.Month = int(d.Month())
	o.Day = d.Day()
	if o.Temperature.Valid {
		o.TemperatureFahrenheit = CelsiusToFahrenheit(o.Temperature.Float64)
	}
}

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}
