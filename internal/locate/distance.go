package locate

import "math"

// DistanceModel converts a signal-strength reading into an estimated
// radial distance using the log-distance path-loss model
// RSSI = A - 10*n*log10(d).
type DistanceModel struct {
	// ReferencePower is the expected power at one meter, in dBm.
	ReferencePower float64

	// PathLossExponent is the environmental decay constant n.
	PathLossExponent float64
}

// NewDistanceModel returns a model with the default one-meter reference
// power and the given path-loss exponent.
func NewDistanceModel(pathLossExponent float64) DistanceModel {
	return DistanceModel{
		ReferencePower:   DefaultReferencePower,
		PathLossExponent: pathLossExponent,
	}
}

// EstimateDistance inverts the path-loss model: d = 10^((A-RSSI)/(10n)).
// The result is floored at one meter so implausibly strong readings
// cannot produce degenerate zero or sub-meter distances.
func (m DistanceModel) EstimateDistance(signalDBm float64) float64 {
	d := math.Pow(10, (m.ReferencePower-signalDBm)/(10*m.PathLossExponent))
	return math.Max(d, 1.0)
}
