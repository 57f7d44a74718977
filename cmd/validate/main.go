// Command validate re-reads the CSV artifacts of a pipeline run and checks
// the invariants every successful run guarantees: complete columns, date
// order, consistent derived values and aggregate totals that agree with the
// processed table.
//
// Usage:
//
//	go run ./cmd/validate --dir outputs
package main

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/weather-data-pipeline/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
)

var cli struct {
	Dir string `help:"Directory holding the pipeline artifacts." default:"outputs"`
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	kong.Parse(&cli, kong.Name("validate"), kong.Description("Check pipeline artifacts for integrity."))
	os.Exit(run(cli.Dir))
}

func run(dir string) int {
	fmt.Println("=== Weather Pipeline Output Validation ===")
	fmt.Println()

	sets := map[string]*csvSet{}
	for _, name := range []string{csvfile.TransformedFile, csvfile.BasicStatsFile, csvfile.CityStatsFile, csvfile.WeatherFreqFile} {
		set, err := loadCSV(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", name, err)
			return 1
		}
		sets[name] = set
	}
	processed := sets[csvfile.TransformedFile]

	phases := []*phase{
		validateCompleteness(processed),
		validateOrdering(processed),
		validateDerived(processed),
		validateFrequencies(processed, sets[csvfile.WeatherFreqFile]),
		validateStats(processed, sets[csvfile.BasicStatsFile], sets[csvfile.CityStatsFile]),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d processed, %d cities, %d conditions\n",
		len(processed.rows), len(sets[csvfile.CityStatsFile].rows), len(sets[csvfile.WeatherFreqFile].rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

type csvSet struct {
	header []string
	rows   []csvRow
}

func loadCSV(path string) (*csvSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck // read-only

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no header in %s", path)
	}

	set := &csvSet{header: all[0]}
	for i, row := range all[1:] {
		fields := make(map[string]string, len(set.header))
		for j, h := range set.header {
			if j < len(row) {
				fields[h] = row[j]
			}
		}
		set.rows = append(set.rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return set, nil
}

func number(p *phase, row csvRow, col string) (float64, bool) {
	v, err := strconv.ParseFloat(row.fields[col], 64)
	if err != nil {
		p.errorf("line %d: %s=%q is not a number", row.lineNum, col, row.fields[col])
		return 0, false
	}
	return v, true
}

// ── Phase 1: Completeness ──
// Every schema and derived column exists and is populated.

func validateCompleteness(processed *csvSet) *phase {
	p := &phase{name: "Phase 1: Completeness"}

	cols := append(append([]string(nil), domain.RequiredColumns...), domain.DerivedColumns...)
	for _, col := range cols {
		if !slices.Contains(processed.header, col) {
			p.errorf("missing column %q", col)
		}
	}
	for _, row := range processed.rows {
		for _, col := range cols {
			if col == domain.ColCity {
				continue // rows without a city survive cleaning
			}
			if strings.TrimSpace(row.fields[col]) == "" {
				p.errorf("line %d: %s is empty", row.lineNum, col)
			}
		}
		if c := row.fields[domain.ColWeatherCondition]; c == domain.UnknownCondition || c != strings.ToLower(strings.TrimSpace(c)) {
			p.errorf("line %d: condition %q is not normalized", row.lineNum, c)
		}
	}
	return p
}

// ── Phase 2: Ordering ──

func validateOrdering(processed *csvSet) *phase {
	p := &phase{name: "Phase 2: Date Ordering"}

	var prev string
	for _, row := range processed.rows {
		d := row.fields[domain.ColDate]
		if _, ok := domain.ParseDate(d); !ok {
			p.errorf("line %d: unparseable date %q", row.lineNum, d)
			continue
		}
		// YYYY-MM-DD[ HH:MM:SS] sorts lexically.
		if d < prev {
			p.errorf("line %d: date %s precedes %s", row.lineNum, d, prev)
		}
		prev = d
	}
	return p
}

// ── Phase 3: Derived Columns ──

func validateDerived(processed *csvSet) *phase {
	p := &phase{name: "Phase 3: Derived Columns"}

	for _, row := range processed.rows {
		c, ok1 := number(p, row, domain.ColTemperatureCelsius)
		f, ok2 := number(p, row, domain.ColTemperatureFahrenheit)
		if ok1 && ok2 && math.Abs(domain.CelsiusToFahrenheit(c)-f) > 1e-6 {
			p.errorf("line %d: %v°C is not %v°F", row.lineNum, c, f)
		}

		date, ok := domain.ParseDate(row.fields[domain.ColDate])
		if !ok {
			continue
		}
		parts := []struct {
			col  string
			want int
		}{
			{domain.ColYear, date.Year()},
			{domain.ColMonth, int(date.Month())},
			{domain.ColDay, date.Day()},
		}
		for _, part := range parts {
			if got := row.fields[part.col]; got != strconv.Itoa(part.want) {
				p.errorf("line %d: %s=%s, date says %d", row.lineNum, part.col, got, part.want)
			}
		}
	}
	return p
}

// ── Phase 4: Frequencies ──

func validateFrequencies(processed, freq *csvSet) *phase {
	p := &phase{name: "Phase 4: Condition Frequencies"}

	want := map[string]int{}
	for _, row := range processed.rows {
		want[row.fields[domain.ColWeatherCondition]]++
	}

	total, prev := 0, math.MaxInt
	for _, row := range freq.rows {
		cond := row.fields[domain.ColWeatherCondition]
		n, err := strconv.Atoi(row.fields["count"])
		if err != nil {
			p.errorf("line %d: count %q is not an integer", row.lineNum, row.fields["count"])
			continue
		}
		if n != want[cond] {
			p.errorf("%s: weather_freq says %d, processed table has %d", cond, n, want[cond])
		}
		if n > prev {
			p.errorf("line %d: counts are not in descending order", row.lineNum)
		}
		prev = n
		total += n
		delete(want, cond)
	}
	if total != len(processed.rows) {
		p.errorf("frequency total %d, processed rows %d", total, len(processed.rows))
	}
	for cond := range want {
		p.errorf("condition %q missing from weather_freq", cond)
	}
	return p
}

// ── Phase 5: Aggregates ──

func validateStats(processed, basic, city *csvSet) *phase {
	p := &phase{name: "Phase 5: Aggregate Consistency"}

	for _, row := range basic.rows {
		if row.fields["statistic"] != "count" {
			continue
		}
		for _, col := range domain.StatColumns {
			if got := row.fields[col]; got != strconv.Itoa(len(processed.rows)) {
				p.errorf("basic_stats count for %s is %s, processed rows %d", col, got, len(processed.rows))
			}
		}
	}

	seen := map[string]bool{}
	for _, row := range processed.rows {
		if c := row.fields[domain.ColCity]; c != "" {
			seen[c] = true
		}
	}
	var prev string
	for _, row := range city.rows {
		name := row.fields[domain.ColCity]
		if !seen[name] {
			p.errorf("city_stats lists %q, absent from the processed table", name)
		}
		if name < prev {
			p.errorf("line %d: city %q is out of order", row.lineNum, name)
		}
		prev = name
		delete(seen, name)

		prefix := domain.ColTemperatureCelsius + "_"
		lo, ok1 := number(p, row, prefix+"min")
		mid, ok2 := number(p, row, prefix+"median")
		hi, ok3 := number(p, row, prefix+"max")
		if ok1 && ok2 && ok3 && (lo > mid || mid > hi) {
			p.errorf("line %d: %s temperature min/median/max out of order", row.lineNum, name)
		}
	}
	for name := range seen {
		p.errorf("city %q missing from city_stats", name)
	}
	return p
}
