// Package render draws position-estimate plots: measurement points
// colored by signal strength, the estimated emitter location, and its
// accuracy ring, written out as PNG.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/golang/freetype"
	"github.com/paulmach/orb"
	"golang.org/x/image/font"

	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
)

const (
	dpi      = 72.0
	fontSize = 13.0

	defaultWidth  = 1024
	defaultHeight = 1024

	// boundPadding expands the data extent so points do not sit on the
	// image edge.
	boundPadding = 0.25

	measurementRadius = 6
	estimateRadius    = 9
)

var (
	backgroundColor = color.RGBA{24, 24, 32, 255}
	gridColor       = color.RGBA{48, 48, 60, 255}
	estimateColor   = color.RGBA{255, 215, 0, 255}
	ringColor       = color.RGBA{255, 215, 0, 96}
	labelColor      = image.White
)

// Config holds plot options. FontPath is optional: without it the plot
// renders unlabeled.
type Config struct {
	Width    int
	Height   int
	FontPath string
}

// Plotter renders measurement sets to images.
type Plotter struct {
	config      Config
	fontContext *freetype.Context
}

func NewPlotter(config Config) (*Plotter, error) {
	if config.Width <= 0 {
		config.Width = defaultWidth
	}
	if config.Height <= 0 {
		config.Height = defaultHeight
	}

	p := &Plotter{config: config}

	if config.FontPath != "" {
		fontBytes, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font: %w", err)
		}
		parsedFont, err := freetype.ParseFont(fontBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}

		ctx := freetype.NewContext()
		ctx.SetDPI(dpi)
		ctx.SetFont(parsedFont)
		ctx.SetFontSize(fontSize)
		ctx.SetSrc(labelColor)
		ctx.SetHinting(font.HintingFull)
		p.fontContext = ctx
	}

	return p, nil
}

// Render draws the measurements and, when present, the estimate with its
// accuracy ring.
func (p *Plotter) Render(measurements []locate.Measurement, estimate *locate.Result) (*image.RGBA, error) {
	if len(measurements) == 0 {
		return nil, fmt.Errorf("render: no measurements to plot")
	}

	bound := dataBound(measurements, estimate)
	proj := newProjection(bound, p.config.Width, p.config.Height)

	img := image.NewRGBA(image.Rect(0, 0, p.config.Width, p.config.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)
	p.drawGrid(img)

	if estimate != nil {
		p.drawAccuracyRing(img, proj, estimate)
	}

	for _, m := range measurements {
		x, y := proj.toPixel(m.Location)
		fillCircle(img, x, y, measurementRadius, signalColor(m.SignalDBm))
	}

	if estimate != nil {
		x, y := proj.toPixel(estimate.EstimatedLocation)
		drawCross(img, x, y, estimateRadius, estimateColor)
	}

	if err := p.annotate(img, measurements, estimate); err != nil {
		return nil, err
	}

	return img, nil
}

// WritePNG renders the plot and writes it to path.
func (p *Plotter) WritePNG(path string, measurements []locate.Measurement, estimate *locate.Result) (err error) {
	img, err := p.Render(measurements, estimate)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if err = png.Encode(f, img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// dataBound computes the padded geographic extent of the plot.
func dataBound(measurements []locate.Measurement, estimate *locate.Result) orb.Bound {
	points := make(orb.MultiPoint, 0, len(measurements)+1)
	for _, m := range measurements {
		points = append(points, orb.Point{m.Location.Longitude, m.Location.Latitude})
	}
	if estimate != nil {
		points = append(points, orb.Point{
			estimate.EstimatedLocation.Longitude,
			estimate.EstimatedLocation.Latitude,
		})
	}

	bound := points.Bound()

	padX := (bound.Max[0] - bound.Min[0]) * boundPadding
	padY := (bound.Max[1] - bound.Min[1]) * boundPadding
	// A degenerate extent still needs visible area.
	if padX == 0 {
		padX = 0.001
	}
	if padY == 0 {
		padY = 0.001
	}

	bound.Min[0] -= padX
	bound.Max[0] += padX
	bound.Min[1] -= padY
	bound.Max[1] += padY
	return bound
}

type projection struct {
	bound         orb.Bound
	width, height int
}

func newProjection(bound orb.Bound, width, height int) projection {
	return projection{bound: bound, width: width, height: height}
}

// toPixel maps a coordinate into image space, north up.
func (p projection) toPixel(c geo.Coordinate) (int, int) {
	fx := (c.Longitude - p.bound.Min[0]) / (p.bound.Max[0] - p.bound.Min[0])
	fy := (c.Latitude - p.bound.Min[1]) / (p.bound.Max[1] - p.bound.Min[1])

	x := int(math.Round(fx * float64(p.width-1)))
	y := int(math.Round((1 - fy) * float64(p.height-1)))
	return x, y
}

// metersPerPixel estimates horizontal scale at the bound's center
// latitude.
func (p projection) metersPerPixel() float64 {
	center := p.bound.Center()

	west, errW := geo.New(center[1], p.bound.Min[0])
	east, errE := geo.New(center[1], p.bound.Max[0])
	if errW != nil || errE != nil {
		return 0
	}

	return west.DistanceTo(east) / float64(p.width)
}

func (p *Plotter) drawGrid(img *image.RGBA) {
	size := img.Bounds().Size()
	step := size.X / 8

	for x := step; x < size.X; x += step {
		for y := 0; y < size.Y; y++ {
			img.Set(x, y, gridColor)
		}
	}
	for y := step; y < size.Y; y += step {
		for x := 0; x < size.X; x++ {
			img.Set(x, y, gridColor)
		}
	}
}

func (p *Plotter) drawAccuracyRing(img *image.RGBA, proj projection, estimate *locate.Result) {
	mpp := proj.metersPerPixel()
	if mpp <= 0 {
		return
	}

	radius := int(math.Round(estimate.AccuracyMeters / mpp))
	if radius < estimateRadius {
		radius = estimateRadius
	}

	x, y := proj.toPixel(estimate.EstimatedLocation)
	drawCircle(img, x, y, radius, ringColor)
}

func (p *Plotter) annotate(img *image.RGBA, measurements []locate.Measurement, estimate *locate.Result) error {
	if p.fontContext == nil {
		return nil
	}

	p.fontContext.SetClip(img.Bounds())
	p.fontContext.SetDst(img)

	lines := []string{
		fmt.Sprintf("measurements: %d", len(measurements)),
	}
	if estimate != nil {
		lines = append(lines,
			"estimate: "+estimate.EstimatedLocation.String(),
			fmt.Sprintf("accuracy: %.0f m", estimate.AccuracyMeters))
	}

	pt := freetype.Pt(10, 20)
	for _, line := range lines {
		if _, err := p.fontContext.DrawString(line, pt); err != nil {
			return fmt.Errorf("drawing label: %w", err)
		}
		pt.Y += p.fontContext.PointToFixed(fontSize * 1.4)
	}
	return nil
}

// signalColor maps dBm onto a green (weak) to red (strong) ramp over
// the usable range.
func signalColor(dBm float64) color.RGBA {
	const weakest, strongest = -100.0, -30.0

	f := (dBm - weakest) / (strongest - weakest)
	f = math.Max(0, math.Min(1, f))

	return color.RGBA{
		R: uint8(255 * f),
		G: uint8(255 * (1 - f)),
		B: 40,
		A: 255,
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	steps := 8 * r
	if steps < 64 {
		steps = 64
	}
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(math.Round(float64(r)*math.Cos(angle)))
		y := cy + int(math.Round(float64(r)*math.Sin(angle)))
		img.Set(x, y, c)
	}
}

func drawCross(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	for d := -r; d <= r; d++ {
		img.Set(cx+d, cy, c)
		img.Set(cx, cy+d, c)
	}
}
