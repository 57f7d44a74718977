package domain

import (
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected time.Time
		ok       bool
	}{
		{"iso", "2023-01-05", date(2023, time.January, 5), true},
		{"iso single digits", "2023-1-5", date(2023, time.January, 5), true},
		{"iso slashes", "2023/01/05", date(2023, time.January, 5), true},
		{"day first slashes", "05/01/2023", date(2023, time.January, 5), true},
		{"day first is not month first", "03/04/2023", date(2023, time.April, 3), true},
		{"day first dashes", "25-12-2023", date(2023, time.December, 25), true},
		{"day first dots", "1.2.2023", date(2023, time.February, 1), true},
		{"surrounding whitespace", "  2023-01-05 ", date(2023, time.January, 5), true},
		{"iso datetime", "2023-01-05 14:30:00", time.Date(2023, time.January, 5, 14, 30, 0, 0, time.UTC), true},
		{"rfc3339", "2023-01-05T14:30:00Z", time.Date(2023, time.January, 5, 14, 30, 0, 0, time.UTC), true},
		{"rfc3339 offset keeps calendar day", "2023-01-31T22:00:00-05:00", time.Date(2023, time.January, 31, 22, 0, 0, 0, time.UTC), true},
		{"rfc3339 positive offset keeps calendar day", "2023-03-01T01:30:00+09:00", time.Date(2023, time.March, 1, 1, 30, 0, 0, time.UTC), true},
		{"month 13 is not a day-first date", "01/13/2023", time.Time{}, false},
		{"impossible day", "31/02/2023", time.Time{}, false},
		{"garbage", "invalid_date", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNullTokens(t *testing.T) {
	nulls := NewNullTokens(DefaultNullTokens)

	t.Run("sentinels are missing", func(t *testing.T) {
		for _, tok := range DefaultNullTokens {
			assert.True(t, nulls.IsNull(tok), "token %q", tok)
			assert.Empty(t, nulls.Text(tok))
			assert.False(t, nulls.Number(tok).Valid)
			assert.False(t, nulls.Date(tok).Valid)
		}
	})

	t.Run("matching is exact", func(t *testing.T) {
		assert.False(t, nulls.IsNull("UNKNOWN"))
		assert.False(t, nulls.IsNull("  "))
		assert.Equal(t, "UNKNOWN", nulls.Text("UNKNOWN"))
	})

	t.Run("numbers", func(t *testing.T) {
		assert.Equal(t, 21.5, nulls.Number(" 21.5 ").Float64)
		assert.True(t, nulls.Number("-3").Valid)
		assert.False(t, nulls.Number("warm").Valid)
		assert.False(t, nulls.Number("nan").Valid)
		assert.False(t, nulls.Number("+Inf").Valid)
	})

	t.Run("dates", func(t *testing.T) {
		d := nulls.Date("05/01/2023")
		require.True(t, d.Valid)
		assert.Equal(t, date(2023, time.January, 5), d.Time)
		assert.False(t, nulls.Date("not a date").Valid)
	})
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 21.33, Round2(21.3333))
	assert.Equal(t, 21.67, Round2(21.6666))
	assert.Equal(t, -4.5, Round2(-4.5))
	assert.Equal(t, 0.12, Round2(0.125))
	assert.True(t, math.IsNaN(Round2(math.NaN())))
}

func TestStats(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	assert.InDelta(t, 2.5, mean(values), 1e-9)
	assert.InDelta(t, 2.5, median(values), 1e-9)
	assert.InDelta(t, 1.290994, stddev(values), 1e-6)
	assert.Equal(t, []float64{4, 1, 3, 2}, values, "median must not reorder its input")

	sorted := sortedCopy(values)
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-9)
	assert.Equal(t, 1.0, quantile(sorted, 0))
	assert.Equal(t, 4.0, quantile(sorted, 1))

	assert.True(t, math.IsNaN(mean(nil)))
	assert.True(t, math.IsNaN(median(nil)))
	assert.True(t, math.IsNaN(stddev([]float64{1})))
	assert.Equal(t, 7.0, median([]float64{7}))
}

func TestSetClock(t *testing.T) {
	t.Run("set custom clock", func(t *testing.T) {
		fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(fixedTime))
		t.Cleanup(func() { SetClock(nil) })

		assert.Equal(t, fixedTime, Now())
	})

	t.Run("reset to real clock", func(t *testing.T) {
		SetClock(clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
		SetClock(nil)

		assert.Less(t, time.Since(Now()), time.Second)
	})
}
