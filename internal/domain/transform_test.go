package domain

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransform_NotLoaded(t *testing.T) {
	_, _, err := Transform(nil)
	require.ErrorIs(t, err, ErrNotLoaded)
}

func TestTransform_SortsStablyByDate(t *testing.T) {
	table := newTable(
		obs("2023-01-03", testCityA, 1, 40, 5, "a"),
		obs("2023-01-01", testCityA, 2, 40, 5, "b"),
		obs("2023-01-03", testCityB, 3, 40, 5, "c"),
		obs("02/01/2023", testCityB, 4, 40, 5, "d"),
		obs("2023-01-01", testCityB, 5, 40, 5, "e"),
	)

	out, report, err := Transform(table)
	require.NoError(t, err)
	assert.Equal(t, 5, report.RowsOut)

	var order []string
	for _, row := range out.Rows {
		order = append(order, row.Condition)
	}
	assert.Equal(t, []string{"b", "e", "d", "a", "c"}, order)

	for i := 1; i < len(out.Rows); i++ {
		assert.False(t, out.Rows[i].Date.Time.Before(out.Rows[i-1].Date.Time), "row %d out of order", i)
	}
}

func TestTransform_DerivesColumns(t *testing.T) {
	table := newTable(
		obs("25/12/2023", testCityA, 25.0, 40, 5, "sunny"),
		obs("2024-02-29", testCityA, -40, 40, 5, "snow"),
		obs("2024-07-04", testCityA, 36.6, 40, 5, "sunny"),
	)

	out, _, err := Transform(table)
	require.NoError(t, err)
	require.True(t, out.Derived)

	first := out.Rows[0]
	assert.Equal(t, 2023, first.Year)
	assert.Equal(t, 12, first.Month)
	assert.Equal(t, 25, first.Day)
	assert.InDelta(t, 77.0, first.TemperatureFahrenheit, 1e-9)

	assert.Equal(t, 29, out.Rows[1].Day)
	assert.InDelta(t, -40.0, out.Rows[1].TemperatureFahrenheit, 1e-9)

	for _, row := range out.Rows {
		assert.InDelta(t, row.Temperature.Float64*1.8+32, row.TemperatureFahrenheit, 1e-9)
	}
}

func TestTransform_DropsRowsThatLostTheirDate(t *testing.T) {
	bad := obs("never", testCityA, 1, 40, 5, "a")
	bad.Date = sql.NullTime{}

	out, report, err := Transform(newTable(obs("2023-01-01", testCityA, 1, 40, 5, "a"), bad))
	require.NoError(t, err)
	assert.Len(t, out.Rows, 1)
	assert.Equal(t, 1, report.InvalidDates)
}

func TestTable_Columns(t *testing.T) {
	table := &Table{Header: []string{"date", "station", "city"}}
	assert.Equal(t, []string{"date", "station", "city"}, table.Columns())

	table.Derived = true
	assert.Equal(t, []string{"date", "station", "city", "year", "month", "day", "temperature_fahrenheit"}, table.Columns())
}

func TestCheckSchema(t *testing.T) {
	require.NoError(t, CheckSchema(append([]string{"extra"}, RequiredColumns...)))

	err := CheckSchema([]string{"date", "temperature_celsius", "humidity_percent", "wind_speed_kph"})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"city", "weather_condition"}, schemaErr.Missing)
	assert.Equal(t, "missing required columns: city, weather_condition", err.Error())
}

func TestCelsiusToFahrenheit(t *testing.T) {
	assert.Equal(t, 32.0, CelsiusToFahrenheit(0))
	assert.Equal(t, 212.0, CelsiusToFahrenheit(100))
	assert.InDelta(t, 98.6, CelsiusToFahrenheit(37), 1e-9)
}

func TestTable_Values(t *testing.T) {
	row := obs("2023-01-05", testCityA, 10, missing, 5, "sunny")
	row.Extra = []string{"S1"}
	table := &Table{
		Header: []string{"station", "date", "city", "temperature_celsius", "humidity_percent", "wind_speed_kph", "weather_condition"},
		Extras: []string{"station"},
		Rows:   []Observation{row},
	}
	assert.Equal(t, []any{"S1", date(2023, 1, 5), testCityA, 10.0, nil, 5.0, "sunny"}, table.Values(&table.Rows[0]))

	out, _, err := Transform(table)
	require.NoError(t, err)
	values := out.Values(&out.Rows[0])
	assert.Equal(t, []any{2023, 1, 5, 50.0}, values[len(values)-4:])
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2023-01-05", FormatDate(date(2023, 1, 5)))
	d, ok := ParseDate("2023-01-05 14:30:00")
	require.True(t, ok)
	assert.Equal(t, "2023-01-05 14:30:00", FormatDate(d))
}

func TestRun_ArtifactPath(t *testing.T) {
	assert.Equal(t, filepath.Join("outputs", "a.csv"), Run{}.ArtifactPath("outputs", "a.csv"))
	assert.Equal(t, filepath.Join("outputs", ".run-1", "a.csv"),
		Run{ArtifactDir: filepath.Join("outputs", ".run-1")}.ArtifactPath("outputs", "a.csv"))
}
