// Package bearing estimates the direction to a radio emitter from the
// phase difference between two spatially separated receivers tuned to the
// same frequency (phase interferometry).
//
// A two-element linear array cannot distinguish a source in front of the
// baseline from its mirror 180 degrees behind it, so every result carries
// AmbiguityWarning set. Because the two streams are captured sequentially
// rather than phase-locked, results are only valid for sources whose
// signal is stationary across the capture interval; enforcing that skew
// budget is the caller's job.
package bearing

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// SpeedOfLight in meters per second.
const SpeedOfLight = 299792458.0

// ErrInsufficientData is returned when either sample stream is empty.
var ErrInsufficientData = errors.New("bearing: insufficient sample data")

// Confidence grades how trustworthy a bearing estimate is.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Result is a single direction finding estimate. Results are created
// fresh per call and never retained by the estimator.
type Result struct {
	BearingDegrees     float64
	Confidence         Confidence
	SignalStrengthDBm  float64
	FrequencyHz        float64
	PhaseDifferenceRad float64

	// AmbiguityWarning is always true: a two-element linear array has a
	// structural 180 degree front/back ambiguity.
	AmbiguityWarning bool
}

// Estimator turns pairs of IQ sample streams into bearings. It owns a
// single calibration offset scalar; one instance per antenna array, and
// concurrent use of one instance requires external synchronization.
type Estimator struct {
	offsetDeg float64
}

// WithCalibrationOffset seeds the estimator with a previously saved
// calibration offset in degrees.
func WithCalibrationOffset(deg float64) func(*Estimator) {
	return func(e *Estimator) {
		e.offsetDeg = deg
	}
}

// NewEstimator creates an Estimator with a zero calibration offset unless
// overridden by options.
func NewEstimator(options ...func(*Estimator)) *Estimator {
	e := &Estimator{}
	for _, option := range options {
		option(e)
	}
	return e
}

// CalibrationOffset returns the standing offset in degrees.
func (e *Estimator) CalibrationOffset() float64 {
	return e.offsetDeg
}

// Estimate computes the bearing to the emitter from two IQ streams.
//
// The streams are truncated to the shorter length: alignment takes
// priority over sample count. The phase difference is taken at the peak
// of the full cross-correlation of streamA with the conjugate of streamB,
// then converted through the narrow-band far-field interferometry
// relation sin(theta) = (dPhi * lambda) / (2 * pi * d). The ratio is
// clamped to [-1, 1] before asin so that noise pushing it slightly out of
// range can never produce a domain fault.
func (e *Estimator) Estimate(streamA, streamB []complex128, frequencyHz, signalDBm, spacingM float64) (Result, error) {
	if len(streamA) == 0 || len(streamB) == 0 {
		return Result{}, fmt.Errorf("%w: empty sample stream", ErrInsufficientData)
	}
	if frequencyHz <= 0 {
		return Result{}, fmt.Errorf("bearing: frequency must be positive: %g", frequencyHz)
	}
	if spacingM <= 0 {
		return Result{}, fmt.Errorf("bearing: antenna spacing must be positive: %g", spacingM)
	}

	n := min(len(streamA), len(streamB))
	streamA = streamA[:n]
	streamB = streamB[:n]

	phaseDiff := phaseDifference(streamA, streamB)
	deg := phaseToBearing(phaseDiff, frequencyHz, spacingM)

	deg += e.offsetDeg
	deg = normalizeBearing(deg)

	return Result{
		BearingDegrees:     deg,
		Confidence:         assessConfidence(signalDBm, streamA, streamB),
		SignalStrengthDBm:  signalDBm,
		FrequencyHz:        frequencyHz,
		PhaseDifferenceRad: phaseDiff,
		AmbiguityWarning:   true,
	}, nil
}

// Calibrate computes and stores the offset that maps a measured bearing
// onto the known actual bearing of a reference source. The offset is
// normalized into [-180, 180] and replaces any previous calibration.
func (e *Estimator) Calibrate(measuredDeg, actualDeg float64) float64 {
	offset := actualDeg - measuredDeg
	for offset > 180 {
		offset -= 360
	}
	for offset < -180 {
		offset += 360
	}
	e.offsetDeg = offset
	return offset
}

// OptimalSpacing returns the recommended half-wavelength antenna spacing
// in meters for the given frequency.
func OptimalSpacing(frequencyHz float64) float64 {
	return SpeedOfLight / frequencyHz * 0.5
}

// phaseDifference locates the peak of the full cross-correlation of a
// with conj(b) and returns its phase angle in radians, range (-pi, pi].
func phaseDifference(a, b []complex128) float64 {
	n := len(a)

	var peak complex128
	peakMag := -1.0
	for lag := -(n - 1); lag <= n-1; lag++ {
		var sum complex128
		lo := max(0, -lag)
		hi := min(n, n-lag)
		for i := lo; i < hi; i++ {
			sum += a[i+lag] * cmplx.Conj(b[i])
		}
		if mag := cmplx.Abs(sum); mag > peakMag {
			peakMag = mag
			peak = sum
		}
	}

	return cmplx.Phase(peak)
}

// phaseToBearing converts a phase difference to degrees using the
// interferometry relation, folded into a compass-like convention where
// broadside (theta = 0) maps to 90 degrees.
func phaseToBearing(phaseDiffRad, frequencyHz, spacingM float64) float64 {
	wavelength := SpeedOfLight / frequencyHz

	k := (phaseDiffRad * wavelength) / (2 * math.Pi * spacingM)

	// Domain guard: noise can push |k| slightly past 1. Clamp rather
	// than error.
	k = math.Max(-1, math.Min(1, k))

	theta := math.Asin(k) * 180 / math.Pi

	if theta >= 0 {
		return 90 - theta
	}
	return 90 + math.Abs(theta)
}

func normalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// assessConfidence scores the estimate from signal strength and the power
// balance between the two streams. Comparable mean power across antennas
// indicates comparable gain and coupling, so the phase reading can be
// trusted more.
func assessConfidence(signalDBm float64, a, b []complex128) Confidence {
	score := 0

	switch {
	case signalDBm > -30:
		score += 3
	case signalDBm > -45:
		score += 2
	case signalDBm > -60:
		score++
	}

	powerA := meanPower(a)
	powerB := meanPower(b)
	if powerA > 0 && powerB > 0 {
		ratio := math.Max(powerA, powerB) / math.Min(powerA, powerB)
		switch {
		case ratio < 1.5:
			score += 2
		case ratio < 3:
			score++
		}
	}

	switch {
	case score >= 4:
		return ConfidenceHigh
	case score >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func meanPower(samples []complex128) float64 {
	power := make([]float64, len(samples))
	for i, s := range samples {
		m := cmplx.Abs(s)
		power[i] = m * m
	}
	return stat.Mean(power, nil)
}
