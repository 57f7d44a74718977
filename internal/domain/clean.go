package domain

import (
	"database/sql"
	"math"
	"strings"
)

// CleanReport carries the diagnostic counts of one Clean call.
type CleanReport struct {
	RowsIn            int
	InvalidDates      int // rows dropped for a missing or unparseable date
	UnknownConditions int // rows dropped for an empty or "unknown" condition
	// GroupImputed and GlobalImputed count filled values per column.
	GroupImputed  map[string]int
	GlobalImputed map[string]int
	// Unimputable counts rows dropped because a column had no values at all,
	// leaving no median to impute from.
	Unimputable int
	RowsOut     int
}

// Clean repairs the table in place so that every row has a date, a
// normalized condition and fully populated numeric columns. It never fails on
// bad data: rows are either dropped or imputed, and the report says which.
func Clean(t *Table) (*Table, CleanReport, error) {
	if t == nil {
		return nil, CleanReport{}, ErrNotLoaded
	}

	report := CleanReport{
		RowsIn:        len(t.Rows),
		GroupImputed:  make(map[string]int, len(ImputedColumns)),
		GlobalImputed: make(map[string]int, len(ImputedColumns)),
	}

	for i := range t.Rows {
		coerceDate(&t.Rows[i])
	}
	before := len(t.Rows)
	t.Rows = filterRows(t.Rows, func(o *Observation) bool { return o.Date.Valid })
	report.InvalidDates = before - len(t.Rows)

	for i := range t.Rows {
		t.Rows[i].Condition = normalizeCondition(t.Rows[i].Condition)
	}
	before = len(t.Rows)
	t.Rows = filterRows(t.Rows, func(o *Observation) bool {
		return o.Condition != "" && o.Condition != UnknownCondition
	})
	report.UnknownConditions = before - len(t.Rows)

	for _, col := range ImputedColumns {
		report.GroupImputed[col] = imputeByCity(t.Rows, col)
	}
	for _, col := range ImputedColumns {
		report.GlobalImputed[col] = imputeGlobal(t.Rows, col)
	}

	before = len(t.Rows)
	t.Rows = filterRows(t.Rows, func(o *Observation) bool {
		for _, col := range ImputedColumns {
			if !o.Numeric(col).Valid {
				return false
			}
		}
		return true
	})
	report.Unimputable = before - len(t.Rows)
	report.RowsOut = len(t.Rows)

	return t, report, nil
}

// coerceDate re-parses the raw date text of rows whose date is not set.
func coerceDate(o *Observation) {
	if o.Date.Valid {
		return
	}
	if ts, ok := ParseDate(o.RawDate); ok {
		o.Date = sql.NullTime{Time: ts, Valid: true}
	}
}

func normalizeCondition(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// imputeByCity fills missing values of col with the median of the values the
// same city had before this call. Rows without a city are left alone.
func imputeByCity(rows []Observation, col string) int {
	groups := make(map[string][]float64)
	for i := range rows {
		if rows[i].City == "" {
			continue
		}
		if v := rows[i].Numeric(col); v.Valid {
			groups[rows[i].City] = append(groups[rows[i].City], v.Float64)
		}
	}

	medians := make(map[string]float64, len(groups))
	for city, values := range groups {
		medians[city] = median(values)
	}

	filled := 0
	for i := range rows {
		v := rows[i].Numeric(col)
		if v.Valid {
			continue
		}
		m, ok := medians[rows[i].City]
		if !ok {
			continue
		}
		*v = sql.NullFloat64{Float64: m, Valid: true}
		filled++
	}
	return filled
}

// imputeGlobal fills whatever imputeByCity left with the median of the whole
// column, group-imputed values included.
func imputeGlobal(rows []Observation, col string) int {
	var values []float64
	missing := 0
	for i := range rows {
		if v := rows[i].Numeric(col); v.Valid {
			values = append(values, v.Float64)
		} else {
			missing++
		}
	}
	if missing == 0 || len(values) == 0 {
		return 0
	}

	m := median(values)
	if math.IsNaN(m) {
		return 0
	}
	for i := range rows {
		if v := rows[i].Numeric(col); !v.Valid {
			*v = sql.NullFloat64{Float64: m, Valid: true}
		}
	}
	return missing
}

// filterRows keeps rows matching keep, reusing the backing array.
func filterRows(rows []Observation, keep func(*Observation) bool) []Observation {
	out := rows[:0]
	for i := range rows {
		if keep(&rows[i]) {
			out = append(out, rows[i])
		}
	}
	clear(rows[len(out):])
	return out
}
