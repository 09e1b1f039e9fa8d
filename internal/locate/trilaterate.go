package locate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/towerhunt/tower-hunter/internal/geo"
)

// Trilaterator combines signal-strength measurements from several
// locations into a position estimate.
type Trilaterator struct {
	model DistanceModel
}

// NewTrilaterator creates a Trilaterator using the given distance model.
func NewTrilaterator(model DistanceModel) *Trilaterator {
	return &Trilaterator{model: model}
}

// Trilaterate estimates the emitter position from at least three
// measurements. Fewer than three returns ErrInsufficientData.
//
// Each measurement's coordinate is projected into a local planar
// approximation, then a centroid weighted by 1/distance^2 is computed so
// that closer (stronger) measurements dominate. The projection degrades
// over large separations and near the poles; that is a documented
// limitation of the design, as is the inverse-square weighting letting a
// near-zero-distance measurement dominate the estimate.
func (t *Trilaterator) Trilaterate(measurements []Measurement) (*Result, error) {
	if len(measurements) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientData, len(measurements))
	}

	// First measurement's latitude fixes the longitude scale factor for
	// both projection and re-projection; a per-point scale would break
	// the equal-weight centroid property.
	refLatRad := radians(measurements[0].Location.Latitude)
	lonScale := metersPerDegree * math.Cos(refLatRad)

	var weightedX, weightedY, totalWeight float64
	for _, m := range measurements {
		distance := t.model.EstimateDistance(m.SignalDBm)

		x := m.Location.Latitude * metersPerDegree
		y := m.Location.Longitude * lonScale

		weight := 1.0 / (distance * distance)
		weightedX += x * weight
		weightedY += y * weight
		totalWeight += weight
	}

	lat := weightedX / totalWeight / metersPerDegree
	lon := weightedY / totalWeight / lonScale

	estimate, err := geo.New(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("locate: projecting estimate: %w", err)
	}

	residuals := make([]float64, len(measurements))
	for i, m := range measurements {
		residuals[i] = estimate.DistanceTo(m.Location)
	}

	return &Result{
		EstimatedLocation: estimate,
		AccuracyMeters:    stat.Mean(residuals, nil),
	}, nil
}

// Summary holds diagnostics over a measurement set, useful when there are
// too few measurements to trilaterate.
type Summary struct {
	Count              int
	AvgSignalDBm       float64
	MinSignalDBm       float64
	MaxSignalDBm       float64
	SignalRangeDB      float64
	EstimatedDistances []float64
}

// Summarize computes signal statistics and per-measurement distance
// estimates for diagnostics. Returns a zero Summary for an empty set.
func (t *Trilaterator) Summarize(measurements []Measurement) Summary {
	if len(measurements) == 0 {
		return Summary{}
	}

	signals := make([]float64, len(measurements))
	distances := make([]float64, len(measurements))
	for i, m := range measurements {
		signals[i] = m.SignalDBm
		distances[i] = t.model.EstimateDistance(m.SignalDBm)
	}

	minSignal := floats.Min(signals)
	maxSignal := floats.Max(signals)

	return Summary{
		Count:              len(measurements),
		AvgSignalDBm:       stat.Mean(signals, nil),
		MinSignalDBm:       minSignal,
		MaxSignalDBm:       maxSignal,
		SignalRangeDB:      maxSignal - minSignal,
		EstimatedDistances: distances,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
