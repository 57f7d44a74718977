// Command genmock writes a reproducible synthetic weather observation CSV
// with the data-quality problems the pipeline is built to repair: unparseable
// and day-first dates, null sentinels, missing measurements and mixed-case
// conditions.
//
// Usage:
//
//	go run ./cmd/genmock --rows 500 --seed 42 --out data/weather_data.csv
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/alecthomas/kong"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
)

var cli struct {
	Out   string  `help:"Output CSV path." default:"data/weather_data.csv"`
	Rows  int     `help:"Number of rows to generate." default:"500"`
	Seed  uint64  `help:"Random seed." default:"42"`
	Dirty float64 `help:"Probability that a cell gets a quality defect." default:"0.08"`
}

var baseDate = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// city is a climate profile used to draw plausible measurements.
type city struct {
	name     string
	meanTemp float64
	tempAmp  float64 // seasonal swing around meanTemp
	humidity float64
	wind     float64
}

var cities = []city{
	{"Cairo", 22, 7, 45, 14},
	{"Lima", 19, 3, 80, 11},
	{"London", 11, 6, 78, 17},
	{"Oslo", 6, 9, 76, 13},
	{"Reykjavik", 4, 5, 79, 24},
	{"Singapore", 28, 1, 84, 9},
	{"Sydney", 18, 5, 68, 16},
	{"Toronto", 8, 13, 70, 15},
}

var conditions = []string{"sunny", "cloudy", "rainy", "snowy", "windy", "foggy"}

var nullSentinels = []string{"", "NA", "N/A", "NaN", "None"}

func main() {
	kong.Parse(&cli, kong.Name("genmock"), kong.Description("Generate a synthetic weather CSV."))
	if cli.Rows < 0 || cli.Dirty < 0 || cli.Dirty > 1 {
		log.Fatal("--rows must be non-negative and --dirty within [0, 1]")
	}

	g := generator{rng: rand.New(rand.NewPCG(cli.Seed, cli.Seed^0x9e3779b97f4a7c15)), dirty: cli.Dirty}
	err := fsutil.WriteAtomic(cli.Out, func(w io.Writer) error {
		return g.write(w, cli.Rows)
	})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d rows to %s", cli.Rows, cli.Out)
}

type generator struct {
	rng   *rand.Rand
	dirty float64
}

func (g *generator) write(w io.Writer, rows int) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), domain.RequiredColumns...), "station_id")
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		if err := cw.Write(g.row(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (g *generator) row(i int) []string {
	c := cities[g.rng.IntN(len(cities))]
	day := baseDate.AddDate(0, 0, i%365)
	season := math.Cos(2 * math.Pi * float64(day.YearDay()-200) / 365)

	temp := c.meanTemp + c.tempAmp*season + g.rng.NormFloat64()*2
	humidity := math.Max(5, math.Min(100, c.humidity+g.rng.NormFloat64()*8))
	wind := math.Max(0, c.wind+g.rng.NormFloat64()*4)

	return []string{
		g.date(day),
		c.name,
		g.number(temp),
		g.number(humidity),
		g.number(wind),
		g.condition(temp),
		fmt.Sprintf("%s-%02d", c.name[:3], 1+g.rng.IntN(3)),
	}
}

func (g *generator) defect() bool { return g.rng.Float64() < g.dirty }

func (g *generator) date(d time.Time) string {
	if !g.defect() {
		return d.Format(time.DateOnly)
	}
	switch g.rng.IntN(4) {
	case 0:
		return "not-a-date"
	case 1:
		return d.Format("02/01/2006")
	case 2:
		return d.Format("2006-01-02 15:04:05")
	default:
		return nullSentinels[g.rng.IntN(len(nullSentinels))]
	}
}

func (g *generator) number(v float64) string {
	if !g.defect() {
		return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
	}
	if g.rng.IntN(5) == 0 {
		return "n/a?"
	}
	return nullSentinels[g.rng.IntN(len(nullSentinels))]
}

func (g *generator) condition(temp float64) string {
	if g.defect() {
		if g.rng.IntN(2) == 0 {
			return "unknown"
		}
		return ""
	}
	cond := conditions[g.rng.IntN(len(conditions))]
	if cond == "snowy" && temp > 3 {
		cond = "rainy"
	}
	switch g.rng.IntN(6) {
	case 0:
		return "  " + cond
	case 1:
		return string(cond[0]-'a'+'A') + cond[1:]
	default:
		return cond
	}
}
