// Package domain models tabular weather observations and the cleaning,
// transformation and analysis stages applied to them.
//
// # Input Conventions
//
// Source tables are delimited text with a header row. Six columns are
// required, in any order:
//
//	date, city, temperature_celsius, humidity_percent, wind_speed_kph, weather_condition
//
// Any other column is carried through every stage untouched and reappears in
// the processed output in its original header position.
//
// Date format:
//
//	Day-first numeric dates are preferred when a value is ambiguous:
//	"03/04/2023" is 3 April 2023, never 4 March. ISO dates ("2023-04-03",
//	"2023/04/03") and ISO date-times are also accepted. See [ParseDate].
//
// Missing values:
//
//	A cell whose raw text matches one of the null-sentinel tokens
//	(default: "", " ", "NA", "N/A", "NaN", "None", "unknown", "Unknown") is
//	missing, whatever its column. Numeric cells that do not parse as a finite
//	real number are also missing. See [DefaultNullTokens].
//
// # Stages
//
// The table flows through [Clean], [Transform] and [Analyze] in that order.
// Each stage takes the table produced by the previous one; passing a nil
// table returns [ErrNotLoaded].
//
// Cleaning never fails on bad data. Rows without a usable date or with an
// empty or "unknown" condition are dropped; missing numeric values are
// imputed in two passes:
//
//	1. median of the column within the row's city, computed once per column
//	   from the values present before imputation;
//	2. median of the whole column after pass 1, for cities that had no value
//	   at all.
//
// Rows with an empty city never join a city group, so they are only filled
// by pass 2.
//
// # Aggregates
//
// Statistics follow the usual descriptive conventions: sample standard
// deviation (n-1), linearly interpolated quartiles, and every reported value
// rounded half-to-even to two decimals. City groups are ordered by name, and
// that order breaks ties in the top-cities ranking.
package domain
