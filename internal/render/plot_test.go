package render

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
)

func coordinate(t *testing.T, lat, lon float64) geo.Coordinate {
	t.Helper()
	c, err := geo.New(lat, lon)
	if err != nil {
		t.Fatalf("geo.New(%g, %g): %v", lat, lon, err)
	}
	return c
}

func testMeasurements(t *testing.T) []locate.Measurement {
	t.Helper()
	return []locate.Measurement{
		{Location: coordinate(t, 37.0000, -122.0000), SignalDBm: -60},
		{Location: coordinate(t, 37.0020, -122.0000), SignalDBm: -70},
		{Location: coordinate(t, 37.0010, -122.0020), SignalDBm: -65},
	}
}

func TestRender(t *testing.T) {
	p, err := NewPlotter(Config{Width: 256, Height: 256})
	if err != nil {
		t.Fatalf("NewPlotter() error: %v", err)
	}

	estimate := &locate.Result{
		EstimatedLocation: coordinate(t, 37.0010, -122.0007),
		AccuracyMeters:    120,
	}

	img, err := p.Render(testMeasurements(t), estimate)
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	size := img.Bounds().Size()
	if size.X != 256 || size.Y != 256 {
		t.Errorf("image size = %dx%d, want 256x256", size.X, size.Y)
	}

	// The canvas must not be uniformly background.
	painted := false
	for y := 0; y < size.Y && !painted; y++ {
		for x := 0; x < size.X; x++ {
			if img.RGBAAt(x, y) != backgroundColor && img.RGBAAt(x, y) != gridColor {
				painted = true
				break
			}
		}
	}
	if !painted {
		t.Error("rendered image contains no data pixels")
	}
}

func TestRender_NoMeasurements(t *testing.T) {
	p, err := NewPlotter(Config{})
	if err != nil {
		t.Fatalf("NewPlotter() error: %v", err)
	}
	if _, err := p.Render(nil, nil); err == nil {
		t.Error("Render() with no measurements should fail")
	}
}

func TestRender_MissingFont(t *testing.T) {
	if _, err := NewPlotter(Config{FontPath: "does-not-exist.ttf"}); err == nil {
		t.Error("NewPlotter() with a missing font should fail")
	}
}

func TestWritePNG(t *testing.T) {
	p, err := NewPlotter(Config{Width: 128, Height: 128})
	if err != nil {
		t.Fatalf("NewPlotter() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "plot.png")
	if err := p.WritePNG(path, testMeasurements(t), nil); err != nil {
		t.Fatalf("WritePNG() error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("output is not valid PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 128 {
		t.Errorf("decoded width = %d, want 128", decoded.Bounds().Dx())
	}
}

func TestSignalColor(t *testing.T) {
	strong := signalColor(-30)
	weak := signalColor(-100)

	if strong.R <= weak.R {
		t.Error("stronger signal should be redder")
	}
	if weak.G <= strong.G {
		t.Error("weaker signal should be greener")
	}

	// Out-of-range values clamp instead of wrapping.
	if signalColor(0) != signalColor(-30) {
		t.Error("above-range signal should clamp to strongest color")
	}
	if signalColor(-150) != signalColor(-100) {
		t.Error("below-range signal should clamp to weakest color")
	}
}
