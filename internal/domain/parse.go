package domain

import (
	"database/sql"
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. ISO layouts come first so "2023-01-05" is
// never read day-first; the numeric day-first layouts only ever match
// day/month/year. Single-digit layout elements also accept two digits.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2T15:04:05",
	time.RFC3339,
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2-1-2006 15:04:05",
}

// ParseDate parses a date cell, preferring day-first readings of numeric
// dates. It reports false for anything it cannot read; it never errors.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			// Keep the recorded wall clock; an offset never moves the calendar day.
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC), true
		}
	}
	return time.Time{}, false
}

// NullTokens is the set of raw cell values that mean "missing".
type NullTokens map[string]struct{}

// NewNullTokens builds a token set. Tokens match raw cell text exactly, so
// " " and "" are distinct entries.
func NewNullTokens(tokens []string) NullTokens {
	set := make(NullTokens, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// IsNull reports whether raw is a null sentinel.
func (n NullTokens) IsNull(raw string) bool {
	_, ok := n[raw]
	return ok
}

// Text returns raw unless it is a null sentinel, in which case it returns "".
func (n NullTokens) Text(raw string) string {
	if n.IsNull(raw) {
		return ""
	}
	return raw
}

// Number parses a numeric cell. Sentinels, unparseable text and non-finite
// values are all missing.
func (n NullTokens) Number(raw string) sql.NullFloat64 {
	if n.IsNull(raw) {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Date parses a date cell, treating sentinels as missing.
func (n NullTokens) Date(raw string) sql.NullTime {
	if n.IsNull(raw) {
		return sql.NullTime{}
	}
	t, ok := ParseDate(raw)
	if !ok {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
