package domain

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"
	"time"
)

// DefaultTopN is the size of the warmest-cities ranking.
const DefaultTopN = 5

// Summary describes one numeric column. Std is NaN below two values and every
// field except Count is NaN for an empty column.
type Summary struct {
	Count  int
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
}

// MarshalJSON encodes NaN fields as null, which encoding/json cannot do itself.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count  int      `json:"count"`
		Mean   *float64 `json:"mean"`
		Std    *float64 `json:"std"`
		Min    *float64 `json:"min"`
		Q25    *float64 `json:"q25"`
		Median *float64 `json:"median"`
		Q75    *float64 `json:"q75"`
		Max    *float64 `json:"max"`
	}{s.Count, finite(s.Mean), finite(s.Std), finite(s.Min), finite(s.Q25), finite(s.Median), finite(s.Q75), finite(s.Max)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ColumnSummary is one column of the basic_stats view.
type ColumnSummary struct {
	Column  string  `json:"column"`
	Summary Summary `json:"summary"`
}

// Aggregate holds the per-city figures of one column.
type Aggregate struct {
	Column string  `json:"column"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// MarshalJSON encodes NaN fields as null.
func (a Aggregate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Column string   `json:"column"`
		Mean   *float64 `json:"mean"`
		Median *float64 `json:"median"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
	}{a.Column, finite(a.Mean), finite(a.Median), finite(a.Min), finite(a.Max)})
}

// CityStats is one row of the city_stats view.
type CityStats struct {
	City       string      `json:"city"`
	Aggregates []Aggregate `json:"aggregates"` // in StatColumns order
}

// ConditionCount is one row of the weather_freq view.
type ConditionCount struct {
	Condition string `json:"weather_condition"`
	Count     int    `json:"count"`
}

// CityTemperature is a city's mean temperature in Celsius.
type CityTemperature struct {
	City        string  `json:"city"`
	Temperature float64 `json:"temperature_celsius"`
}

// Analysis is the full set of aggregate views computed from a transformed table.
type Analysis struct {
	GeneratedAt time.Time         `json:"generated_at"`
	BasicStats  []ColumnSummary   `json:"basic_stats"`
	CityStats   []CityStats       `json:"city_stats"`
	WeatherFreq []ConditionCount  `json:"weather_freq"`
	TopCities   []CityTemperature `json:"top_cities"`
	// CityAverages ranks every city by unrounded mean temperature, warmest
	// first. Charts use it; TopCities is its rounded prefix.
	CityAverages []CityTemperature `json:"city_averages"`
}

// Analyze computes the aggregate views. It only reads the table. A topN of
// zero or less falls back to DefaultTopN.
func Analyze(t *Table, topN int) (*Analysis, error) {
	if t == nil {
		return nil, ErrNotLoaded
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	groups := groupByCity(t.Rows)

	a := &Analysis{
		GeneratedAt: Now(),
		BasicStats:  basicStats(t.Rows),
		CityStats:   cityStats(groups),
		WeatherFreq: weatherFrequency(t.Rows),
	}
	a.CityAverages = cityAverages(groups)
	for i := 0; i < len(a.CityAverages) && i < topN; i++ {
		c := a.CityAverages[i]
		a.TopCities = append(a.TopCities, CityTemperature{City: c.City, Temperature: Round2(c.Temperature)})
	}
	return a, nil
}

func columnValues(rows []*Observation, col string) []float64 {
	values := make([]float64, 0, len(rows))
	for _, o := range rows {
		if v, ok := o.Stat(col); ok {
			values = append(values, v)
		}
	}
	return values
}

func basicStats(rows []Observation) []ColumnSummary {
	ptrs := make([]*Observation, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}

	out := make([]ColumnSummary, 0, len(StatColumns))
	for _, col := range StatColumns {
		sorted := sortedCopy(columnValues(ptrs, col))
		s := Summary{
			Count:  len(sorted),
			Mean:   Round2(mean(sorted)),
			Std:    Round2(stddev(sorted)),
			Min:    math.NaN(),
			Q25:    Round2(quantile(sorted, 0.25)),
			Median: Round2(quantile(sorted, 0.5)),
			Q75:    Round2(quantile(sorted, 0.75)),
			Max:    math.NaN(),
		}
		if len(sorted) > 0 {
			s.Min = Round2(sorted[0])
			s.Max = Round2(sorted[len(sorted)-1])
		}
		out = append(out, ColumnSummary{Column: col, Summary: s})
	}
	return out
}

type cityGroup struct {
	city string
	rows []*Observation
}

// groupByCity returns the city groups ordered by name. Rows without a city
// belong to no group.
func groupByCity(rows []Observation) []cityGroup {
	index := make(map[string]int)
	var groups []cityGroup
	for i := range rows {
		city := rows[i].City
		if city == "" {
			continue
		}
		gi, ok := index[city]
		if !ok {
			gi = len(groups)
			index[city] = gi
			groups = append(groups, cityGroup{city: city})
		}
		groups[gi].rows = append(groups[gi].rows, &rows[i])
	}
	slices.SortFunc(groups, func(a, b cityGroup) int { return cmp.Compare(a.city, b.city) })
	return groups
}

func cityStats(groups []cityGroup) []CityStats {
	out := make([]CityStats, 0, len(groups))
	for _, g := range groups {
		cs := CityStats{City: g.city, Aggregates: make([]Aggregate, 0, len(StatColumns))}
		for _, col := range StatColumns {
			sorted := sortedCopy(columnValues(g.rows, col))
			agg := Aggregate{Column: col, Mean: math.NaN(), Median: math.NaN(), Min: math.NaN(), Max: math.NaN()}
			if len(sorted) > 0 {
				agg.Mean = Round2(mean(sorted))
				agg.Median = Round2(quantile(sorted, 0.5))
				agg.Min = Round2(sorted[0])
				agg.Max = Round2(sorted[len(sorted)-1])
			}
			cs.Aggregates = append(cs.Aggregates, agg)
		}
		out = append(out, cs)
	}
	return out
}

// weatherFrequency counts conditions, most frequent first. Equal counts keep
// the order in which the conditions first appear.
func weatherFrequency(rows []Observation) []ConditionCount {
	index := make(map[string]int)
	var counts []ConditionCount
	for i := range rows {
		c := rows[i].Condition
		ci, ok := index[c]
		if !ok {
			ci = len(counts)
			index[c] = ci
			counts = append(counts, ConditionCount{Condition: c})
		}
		counts[ci].Count++
	}
	slices.SortStableFunc(counts, func(a, b ConditionCount) int { return cmp.Compare(b.Count, a.Count) })
	return counts
}

// cityAverages ranks cities by mean temperature, warmest first, keeping group
// order for ties.
func cityAverages(groups []cityGroup) []CityTemperature {
	out := make([]CityTemperature, 0, len(groups))
	for _, g := range groups {
		values := columnValues(g.rows, ColTemperatureCelsius)
		if len(values) == 0 {
			continue
		}
		out = append(out, CityTemperature{City: g.city, Temperature: mean(values)})
	}
	slices.SortStableFunc(out, func(a, b CityTemperature) int { return cmp.Compare(b.Temperature, a.Temperature) })
	return out
}
