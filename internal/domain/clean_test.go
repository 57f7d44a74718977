package domain

import (
	"database/sql"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCityA = "CityA"
	testCityB = "CityB"
)

// obs builds a loaded row the way the CSV loader would: NaN means missing.
func obs(rawDate, city string, temp, hum, wind float64, condition string) Observation {
	o := Observation{
		RawDate:   rawDate,
		City:      city,
		Condition: condition,
	}
	if d, ok := ParseDate(rawDate); ok {
		o.Date = sql.NullTime{Time: d, Valid: true}
	}
	o.Temperature = nullable(temp)
	o.Humidity = nullable(hum)
	o.WindSpeed = nullable(wind)
	return o
}

func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

var missing = math.NaN()

func newTable(rows ...Observation) *Table {
	return &Table{Header: append([]string(nil), RequiredColumns...), Rows: rows}
}

func TestClean_NotLoaded(t *testing.T) {
	_, _, err := Clean(nil)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestClean_DropsInvalidDateAndImputesFromCity(t *testing.T) {
	table := newTable(
		obs("2023-01-01", testCityA, 25.0, 60, 10, "sunny"),
		obs("2023-01-02", testCityA, missing, 65, 12, "cloudy"),
		obs("invalid_date", testCityA, 15, 80, 20, "unknown"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)

	require.Len(t, cleaned.Rows, 2)
	assert.Equal(t, 1, report.InvalidDates)
	assert.Equal(t, 0, report.UnknownConditions)
	assert.True(t, cleaned.Rows[1].Temperature.Valid)
	assert.Equal(t, 25.0, cleaned.Rows[1].Temperature.Float64)
	assert.Equal(t, 1, report.GroupImputed[ColTemperatureCelsius])
	assert.Equal(t, 0, report.GlobalImputed[ColTemperatureCelsius])
	assert.Equal(t, 3, report.RowsIn)
	assert.Equal(t, 2, report.RowsOut)
}

func TestClean_ReferenceDataset(t *testing.T) {
	table := newTable(
		obs("2023-01-01", "TestCity", 25.0, 60, 10, "sunny"),
		obs("2023-01-02", "TestCity", missing, 65, 12, "cloudy"),
		obs("2023-01-03", "TestCity", 22, missing, 8, "rainy"),
		obs("2023-01-04", "TestCity", 20, 70, missing, "cloudy"),
		obs("2023-01-05", "TestCity", 18, 75, 15, "sunny"),
		obs("invalid_date", "TestCity", 15, 80, 20, "unknown"),
		obs("2023-01-06", "TestCity", 19, 85, 25, "sunny"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)
	require.Len(t, cleaned.Rows, 6)
	assert.Equal(t, 1, report.InvalidDates)

	// Medians of the values present before imputation.
	assert.Equal(t, 20.0, cleaned.Rows[1].Temperature.Float64) // {25,22,20,18,19}
	assert.Equal(t, 70.0, cleaned.Rows[2].Humidity.Float64)    // {60,65,70,75,85}
	assert.Equal(t, 12.0, cleaned.Rows[3].WindSpeed.Float64)   // {10,12,8,15,25}
	assertCleanInvariants(t, cleaned)
}

func TestClean_NormalizesAndDropsConditions(t *testing.T) {
	table := newTable(
		obs("2023-01-01", testCityA, 20, 50, 5, "  Sunny "),
		obs("2023-01-02", testCityA, 21, 50, 5, "UNKNOWN"),
		obs("2023-01-03", testCityA, 22, 50, 5, ""),
		obs("2023-01-04", testCityA, 23, 50, 5, "   "),
		obs("2023-01-05", testCityA, 24, 50, 5, "Partly Cloudy"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)

	require.Len(t, cleaned.Rows, 2)
	assert.Equal(t, 3, report.UnknownConditions)
	assert.Equal(t, "sunny", cleaned.Rows[0].Condition)
	assert.Equal(t, "partly cloudy", cleaned.Rows[1].Condition)
}

func TestClean_GlobalMedianFallback(t *testing.T) {
	// CityB has no humidity at all, so it falls back to the global median of
	// the column after the city pass: CityA's missing value becomes 50 first,
	// then the global median of {40,50,60} is 50.
	table := newTable(
		obs("2023-01-01", testCityA, 10, 40, 5, "sunny"),
		obs("2023-01-02", testCityA, 12, missing, 5, "sunny"),
		obs("2023-01-03", testCityA, 14, 60, 5, "sunny"),
		obs("2023-01-04", testCityB, 30, missing, 5, "rainy"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)

	assert.Equal(t, 50.0, cleaned.Rows[1].Humidity.Float64)
	assert.Equal(t, 50.0, cleaned.Rows[3].Humidity.Float64)
	assert.Equal(t, 1, report.GroupImputed[ColHumidityPercent])
	assert.Equal(t, 1, report.GlobalImputed[ColHumidityPercent])
	assertCleanInvariants(t, cleaned)
}

func TestClean_GroupMedianUsesOnlyOwnCity(t *testing.T) {
	table := newTable(
		obs("2023-01-01", testCityA, 10, 40, 5, "sunny"),
		obs("2023-01-02", testCityA, missing, 40, 5, "sunny"),
		obs("2023-01-03", testCityB, 30, 40, 5, "rainy"),
		obs("2023-01-04", testCityB, 34, 40, 5, "rainy"),
		obs("2023-01-05", testCityB, missing, 40, 5, "rainy"),
	)

	cleaned, _, err := Clean(table)
	require.NoError(t, err)

	assert.Equal(t, 10.0, cleaned.Rows[1].Temperature.Float64)
	assert.Equal(t, 32.0, cleaned.Rows[4].Temperature.Float64)
}

func TestClean_RowWithoutCityUsesGlobalMedian(t *testing.T) {
	table := newTable(
		obs("2023-01-01", testCityA, 10, 40, 5, "sunny"),
		obs("2023-01-02", testCityA, 20, 40, 5, "sunny"),
		obs("2023-01-03", testCityA, 30, 40, 5, "sunny"),
		obs("2023-01-04", "", missing, 40, 5, "sunny"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)

	assert.Equal(t, 20.0, cleaned.Rows[3].Temperature.Float64)
	assert.Equal(t, 0, report.GroupImputed[ColTemperatureCelsius])
	assert.Equal(t, 1, report.GlobalImputed[ColTemperatureCelsius])
}

func TestClean_DropsRowsWhenColumnIsEntirelyMissing(t *testing.T) {
	table := newTable(
		obs("2023-01-01", testCityA, 10, 40, missing, "sunny"),
		obs("2023-01-02", testCityB, 20, 40, missing, "sunny"),
	)

	cleaned, report, err := Clean(table)
	require.NoError(t, err)

	assert.Empty(t, cleaned.Rows)
	assert.Equal(t, 2, report.Unimputable)
	assertCleanInvariants(t, cleaned)
}

func TestClean_RecoercesRawDate(t *testing.T) {
	row := obs("2023-01-01", testCityA, 10, 40, 5, "sunny")
	row.Date = sql.NullTime{} // loader could not parse it; the raw text is valid

	cleaned, report, err := Clean(newTable(row))
	require.NoError(t, err)

	require.Len(t, cleaned.Rows, 1)
	assert.Equal(t, 0, report.InvalidDates)
	assert.Equal(t, date(2023, 1, 1), cleaned.Rows[0].Date.Time)
}

func TestClean_PreservesExtras(t *testing.T) {
	row := obs("2023-01-01", testCityA, 10, 40, 5, "sunny")
	row.Extra = []string{"station-7"}
	table := newTable(row)
	table.Header = append(table.Header, "station")
	table.Extras = []string{"station"}

	cleaned, _, err := Clean(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"station-7"}, cleaned.Rows[0].Extra)
	assert.Equal(t, []string{"station"}, cleaned.Extras)
}

func assertCleanInvariants(t *testing.T, table *Table) {
	t.Helper()
	for i, row := range table.Rows {
		assert.True(t, row.Date.Valid, "row %d date", i)
		assert.NotEmpty(t, row.Condition, "row %d condition", i)
		assert.NotEqual(t, UnknownCondition, row.Condition, "row %d condition", i)
		for _, col := range ImputedColumns {
			assert.True(t, row.Numeric(col).Valid, "row %d %s", i, col)
		}
	}
}
