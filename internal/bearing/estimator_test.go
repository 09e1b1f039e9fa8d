package bearing

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tone generates a complex baseband tone of n samples with the given
// normalized frequency (cycles per sample) and starting phase.
func tone(n int, cyclesPerSample, phaseRad float64) []complex128 {
	samples := make([]complex128, n)
	for i := range samples {
		angle := 2*math.Pi*cyclesPerSample*float64(i) + phaseRad
		samples[i] = cmplx.Exp(complex(0, angle))
	}
	return samples
}

// shifted returns the stream with every sample rotated by -phaseRad, so
// the cross-correlation of the original with it peaks with phase
// +phaseRad at zero lag.
func shifted(stream []complex128, phaseRad float64) []complex128 {
	out := make([]complex128, len(stream))
	rot := cmplx.Exp(complex(0, -phaseRad))
	for i, s := range stream {
		out[i] = s * rot
	}
	return out
}

func TestEstimate_Broadside(t *testing.T) {
	e := NewEstimator()
	a := tone(256, 0.05, 0)

	// Zero phase difference means the source is broadside to the array,
	// which maps to 90 degrees.
	res, err := e.Estimate(a, a, 850e6, -40, 0.18)
	require.NoError(t, err)

	assert.InDelta(t, 90, res.BearingDegrees, 1e-6)
	assert.InDelta(t, 0, res.PhaseDifferenceRad, 1e-9)
	assert.True(t, res.AmbiguityWarning)
}

func TestEstimate_KnownPhaseShift(t *testing.T) {
	const (
		freq    = 850e6
		spacing = 0.18
		phase   = 0.7 // radians
	)

	e := NewEstimator()
	a := tone(256, 0.05, 0)
	b := shifted(a, phase)

	res, err := e.Estimate(a, b, freq, -40, spacing)
	require.NoError(t, err)
	assert.InDelta(t, phase, res.PhaseDifferenceRad, 1e-9)

	wavelength := SpeedOfLight / freq
	k := phase * wavelength / (2 * math.Pi * spacing)
	want := 90 - math.Asin(k)*180/math.Pi
	assert.InDelta(t, want, res.BearingDegrees, 1e-9)
}

func TestEstimate_NegativePhaseFoldsRight(t *testing.T) {
	e := NewEstimator()
	a := tone(256, 0.05, 0)
	b := shifted(a, -0.5)

	res, err := e.Estimate(a, b, 850e6, -40, 0.18)
	require.NoError(t, err)

	// Negative theta folds to 90 + |theta|.
	assert.Greater(t, res.BearingDegrees, 90.0)
	assert.Less(t, res.BearingDegrees, 180.0)
}

func TestEstimate_ClampsInterferometryRatio(t *testing.T) {
	// A long wavelength against a tiny spacing pushes |k| far past 1;
	// the estimate must clamp instead of producing NaN.
	e := NewEstimator()
	a := tone(128, 0.05, 0)
	b := shifted(a, 3.0)

	res, err := e.Estimate(a, b, 100e6, -40, 0.01)
	require.NoError(t, err)

	assert.False(t, math.IsNaN(res.BearingDegrees))
	assert.GreaterOrEqual(t, res.BearingDegrees, 0.0)
	assert.Less(t, res.BearingDegrees, 360.0)
}

func TestEstimate_TruncatesToShorterStream(t *testing.T) {
	e := NewEstimator()
	a := tone(300, 0.05, 0)
	b := shifted(a, 0.4)[:200]

	res, err := e.Estimate(a, b, 850e6, -40, 0.18)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, res.PhaseDifferenceRad, 1e-9)
}

func TestEstimate_EmptyStream(t *testing.T) {
	e := NewEstimator()
	a := tone(64, 0.05, 0)

	_, err := e.Estimate(nil, a, 850e6, -40, 0.18)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = e.Estimate(a, nil, 850e6, -40, 0.18)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEstimate_InvalidGeometry(t *testing.T) {
	e := NewEstimator()
	a := tone(64, 0.05, 0)

	_, err := e.Estimate(a, a, 0, -40, 0.18)
	assert.Error(t, err)

	_, err = e.Estimate(a, a, 850e6, -40, 0)
	assert.Error(t, err)
}

func TestCalibrate(t *testing.T) {
	e := NewEstimator()

	offset := e.Calibrate(90, 100)
	assert.InDelta(t, 10, offset, 1e-9)
	assert.InDelta(t, 10, e.CalibrationOffset(), 1e-9)

	// Normalized into [-180, 180].
	assert.InDelta(t, -20, e.Calibrate(10, 350), 1e-9)
	assert.InDelta(t, 20, e.Calibrate(350, 10), 1e-9)
}

func TestCalibrate_ShiftsSubsequentEstimates(t *testing.T) {
	a := tone(256, 0.05, 0)
	b := shifted(a, 0.7)

	uncalibrated := NewEstimator()
	before, err := uncalibrated.Estimate(a, b, 850e6, -40, 0.18)
	require.NoError(t, err)

	calibrated := NewEstimator()
	calibrated.Calibrate(90, 100)
	after, err := calibrated.Estimate(a, b, 850e6, -40, 0.18)
	require.NoError(t, err)

	diff := math.Mod(after.BearingDegrees-before.BearingDegrees+360, 360)
	assert.InDelta(t, 10, diff, 1e-9)
}

func TestWithCalibrationOffset(t *testing.T) {
	e := NewEstimator(WithCalibrationOffset(-15))
	assert.InDelta(t, -15, e.CalibrationOffset(), 1e-9)
}

func TestAssessConfidence(t *testing.T) {
	strong := tone(64, 0.05, 0)
	weak := make([]complex128, 64)
	for i, s := range strong {
		weak[i] = s * 0.1 // 100x power imbalance
	}

	tests := []struct {
		name      string
		signalDBm float64
		a, b      []complex128
		want      Confidence
	}{
		{"strong balanced", -25, strong, strong, ConfidenceHigh},
		{"medium balanced", -50, strong, strong, ConfidenceMedium},
		{"weak unbalanced", -70, strong, weak, ConfidenceLow},
		{"strong unbalanced", -25, strong, weak, ConfidenceMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assessConfidence(tt.signalDBm, tt.a, tt.b))
		})
	}
}

func TestOptimalSpacing(t *testing.T) {
	// Half wavelength at GSM 850.
	assert.InDelta(t, 0.176, OptimalSpacing(850e6), 0.001)
}

func TestToCompass(t *testing.T) {
	tests := []struct {
		relative, orientation float64
		wantDeg               float64
		wantCardinal          string
	}{
		{0, 0, 0, "North"},
		{10, 0, 10, "North"},
		{90, 0, 90, "East"},
		{45, 180, 225, "SW"},
		{350, 20, 10, "North"},
		{355, 0, 355, "North"},
	}

	for _, tt := range tests {
		deg, cardinal := ToCompass(tt.relative, tt.orientation)
		assert.InDelta(t, tt.wantDeg, deg, 1e-9)
		assert.Equal(t, tt.wantCardinal, cardinal)
	}
}
