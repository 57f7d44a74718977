// Package chart renders the average-temperature-by-city bar chart.
package chart

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/couchcryptid/weather-data-pipeline/internal/domain"
	"github.com/couchcryptid/weather-data-pipeline/internal/fsutil"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FileName is the chart artifact name.
const FileName = "avg_temperature_by_city.png"

// Default canvas size in pixels.
const (
	DefaultWidth  = 1200
	DefaultHeight = 600
)

const (
	title      = "Average Temperature by City"
	xAxisLabel = "City"
	yAxisLabel = "Average Temperature (°C)"
)

var (
	background = color.RGBA{255, 255, 255, 255}
	ink        = color.RGBA{33, 33, 33, 255}
	gridColor  = color.RGBA{225, 225, 225, 255}
	axisColor  = color.RGBA{90, 90, 90, 255}

	// Endpoints and midpoint of the diverging cool-to-warm palette.
	coolColor = color.RGBA{59, 76, 192, 255}
	midColor  = color.RGBA{221, 221, 221, 255}
	warmColor = color.RGBA{180, 4, 38, 255}
)

var (
	fontTitle font.Face
	fontLabel font.Face
	fontSmall font.Face
	fontOnce  sync.Once
	fontErr   error
)

func loadFonts() {
	fontOnce.Do(func() {
		bold, err := opentype.Parse(gobold.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse bold font: %w", err)
			return
		}
		regular, err := opentype.Parse(goregular.TTF)
		if err != nil {
			fontErr = fmt.Errorf("parse regular font: %w", err)
			return
		}

		faces := []struct {
			dst  *font.Face
			f    *opentype.Font
			size float64
		}{
			{&fontTitle, bold, 22},
			{&fontLabel, regular, 14},
			{&fontSmall, regular, 12},
		}
		for _, fc := range faces {
			face, err := opentype.NewFace(fc.f, &opentype.FaceOptions{Size: fc.size, DPI: 72, Hinting: font.HintingFull})
			if err != nil {
				fontErr = fmt.Errorf("create font face: %w", err)
				return
			}
			*fc.dst = face
		}
	})
}

// Writer saves the bar chart as a PNG. It implements pipeline.Exporter.
type Writer struct {
	dir           string
	width, height int
	logger        *slog.Logger
}

// NewWriter creates a chart Writer. Non-positive sizes use the defaults.
func NewWriter(dir string, width, height int, logger *slog.Logger) *Writer {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Writer{dir: dir, width: width, height: height, logger: logger}
}

// Name identifies the exporter in logs and metrics.
func (w *Writer) Name() string { return "chart" }

// Export writes avg_temperature_by_city.png.
func (w *Writer) Export(_ context.Context, run domain.Run, _ *domain.Table, analysis *domain.Analysis) error {
	if analysis == nil {
		return domain.ErrNotLoaded
	}
	img, err := Render(analysis.CityAverages, w.width, w.height)
	if err != nil {
		return fmt.Errorf("render chart: %w", err)
	}

	path := run.ArtifactPath(w.dir, FileName)
	if err := fsutil.WriteAtomic(path, func(out io.Writer) error {
		return png.Encode(out, img)
	}); err != nil {
		return err
	}
	w.logger.Info("saved artifact", "path", path)
	return nil
}

// Render draws one bar per city in the given order, annotated with its value.
func Render(cities []domain.CityTemperature, width, height int) (*image.RGBA, error) {
	loadFonts()
	if fontErr != nil {
		return nil, fmt.Errorf("load fonts: %w", fontErr)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fill(img, img.Bounds(), background)

	drawCentered(img, title, width/2, 34, ink, fontTitle)
	l := newLayout(cities, width, height)

	drawVertical(img, yAxisLabel, 18, l.plot.Min.Y+l.plot.Dy()/2, ink, fontLabel)
	drawCentered(img, xAxisLabel, l.plot.Min.X+l.plot.Dx()/2, height-14, ink, fontLabel)

	if len(cities) == 0 {
		drawCentered(img, "No temperature data", l.plot.Min.X+l.plot.Dx()/2, l.plot.Min.Y+l.plot.Dy()/2, axisColor, fontLabel)
		return img, nil
	}

	for _, tick := range l.ticks() {
		y := l.y(tick)
		fill(img, image.Rect(l.plot.Min.X, y, l.plot.Max.X, y+1), gridColor)
		label := formatTick(tick)
		adv := font.MeasureString(fontSmall, label).Ceil()
		drawText(img, label, l.plot.Min.X-8-adv, y+4, axisColor, fontSmall)
	}

	lo, hi := valueRange(cities)
	for i, c := range cities {
		bar := l.bar(i, c.Temperature)
		fill(img, bar, paletteColor(normalize(c.Temperature, lo, hi)))

		value := fmt.Sprintf("%.1f°C", c.Temperature)
		cx := bar.Min.X + bar.Dx()/2
		if c.Temperature >= 0 {
			drawCentered(img, value, cx, bar.Min.Y-6, ink, fontSmall)
		} else {
			drawCentered(img, value, cx, bar.Max.Y+16, ink, fontSmall)
		}

		name := fitText(c.City, l.slot-4, fontSmall)
		drawCentered(img, name, cx, l.plot.Max.Y+22, ink, fontSmall)
	}

	zero := l.y(0)
	fill(img, image.Rect(l.plot.Min.X, zero, l.plot.Max.X, zero+1), axisColor)
	fill(img, image.Rect(l.plot.Min.X-1, l.plot.Min.Y, l.plot.Min.X, l.plot.Max.Y), axisColor)
	return img, nil
}

// layout maps values to pixel rows inside the plot area.
type layout struct {
	plot     image.Rectangle
	lo, hi   float64 // value range of the y axis, always spanning zero
	n        int
	slot     int
	barWidth int
}

func newLayout(cities []domain.CityTemperature, width, height int) layout {
	plot := image.Rect(80, 64, width-24, height-64)
	lo, hi := valueRange(cities)
	lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	if hi == lo {
		hi = lo + 1
	}
	span := hi - lo
	if hi > 0 {
		hi += span * 0.12
	}
	if lo < 0 {
		lo -= span * 0.12
	}

	l := layout{plot: plot, lo: lo, hi: hi, n: len(cities)}
	if l.n > 0 {
		l.slot = plot.Dx() / l.n
		l.barWidth = max(1, l.slot*7/10)
	}
	return l
}

func (l layout) y(v float64) int {
	frac := (v - l.lo) / (l.hi - l.lo)
	return l.plot.Max.Y - int(math.Round(frac*float64(l.plot.Dy())))
}

func (l layout) bar(i int, v float64) image.Rectangle {
	x0 := l.plot.Min.X + i*l.slot + (l.slot-l.barWidth)/2
	top, bottom := l.y(v), l.y(0)
	if top > bottom {
		top, bottom = bottom, top
	}
	if top == bottom {
		bottom++
	}
	return image.Rect(x0, top, x0+l.barWidth, bottom)
}

// ticks returns round gridline values covering the axis range.
func (l layout) ticks() []float64 {
	step := niceStep((l.hi - l.lo) / 5)
	var out []float64
	for v := math.Ceil(l.lo/step) * step; v <= l.hi+1e-9; v += step {
		out = append(out, math.Round(v/step)*step)
	}
	return out
}

func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / mag; {
	case f <= 1:
		return mag
	case f <= 2:
		return 2 * mag
	case f <= 5:
		return 5 * mag
	default:
		return 10 * mag
	}
}

func formatTick(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

func valueRange(cities []domain.CityTemperature) (lo, hi float64) {
	if len(cities) == 0 {
		return 0, 0
	}
	lo, hi = cities[0].Temperature, cities[0].Temperature
	for _, c := range cities[1:] {
		lo = math.Min(lo, c.Temperature)
		hi = math.Max(hi, c.Temperature)
	}
	return lo, hi
}

func normalize(v, lo, hi float64) float64 {
	if hi == lo {
		return 1
	}
	return (v - lo) / (hi - lo)
}

// paletteColor interpolates the cool-to-warm palette; t=0 is coolest.
func paletteColor(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	if t < 0.5 {
		return lerp(coolColor, midColor, t*2)
	}
	return lerp(midColor, warmColor, (t-0.5)*2)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawText(img draw.Image, text string, x, y int, c color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func drawCentered(img draw.Image, text string, cx, baseline int, c color.Color, face font.Face) {
	adv := font.MeasureString(face, text).Ceil()
	drawText(img, text, cx-adv/2, baseline, c, face)
}

// drawVertical draws text rotated a quarter turn counter-clockwise, centered
// on (cx, cy).
func drawVertical(img *image.RGBA, text string, cx, cy int, c color.Color, face font.Face) {
	m := face.Metrics()
	w := font.MeasureString(face, text).Ceil()
	h := (m.Ascent + m.Descent).Ceil()

	src := image.NewRGBA(image.Rect(0, 0, w, h))
	drawText(src, text, 0, m.Ascent.Ceil(), c, face)

	rotated := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			rotated.SetRGBA(y, w-1-x, src.RGBAAt(x, y))
		}
	}
	dst := image.Rect(cx-h/2, cy-w/2, cx-h/2+h, cy-w/2+w)
	draw.Draw(img, dst, rotated, image.Point{}, draw.Over)
}

// fitText shortens s with a trailing ".." until it fits in width pixels.
func fitText(s string, width int, face font.Face) string {
	if font.MeasureString(face, s).Ceil() <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + ".."
		if font.MeasureString(face, candidate).Ceil() <= width {
			return candidate
		}
	}
	return ""
}
