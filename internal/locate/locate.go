// Package locate estimates an emitter's position from signal-strength
// measurements taken at several geotagged locations. Distances come from
// a log-distance path-loss inversion; the position is a distance-weighted
// centroid, a cheap approximation of least-squares multilateration.
package locate

import (
	"errors"

	"github.com/towerhunt/tower-hunter/internal/geo"
)

// ErrInsufficientData is returned when fewer than three measurements are
// supplied: triangulating with two points is mathematically
// underdetermined.
var ErrInsufficientData = errors.New("locate: at least 3 measurements required")

// Path-loss exponents for common environments. The exponent describes
// how fast signal power decays with distance; callers pick one per
// deployment.
const (
	PathLossFreeSpace  = 2.0
	PathLossUrban      = 3.0
	PathLossDenseUrban = 4.0
)

// DefaultReferencePower is the expected received power at one meter, in
// dBm, used when a caller has no calibrated value.
const DefaultReferencePower = -40.0

// Measurement is one signal-strength reading at a known location. The
// package never mutates or retains supplied measurements.
type Measurement struct {
	Location  geo.Coordinate
	SignalDBm float64
	TowerID   string
	Timestamp string
}

// Result is an estimated emitter position. AccuracyMeters is the mean
// great-circle distance from the estimate back to each measurement
// location: a dispersion proxy, not a formal confidence interval.
type Result struct {
	EstimatedLocation geo.Coordinate
	AccuracyMeters    float64
}
