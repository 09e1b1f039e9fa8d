package bearing

import "math"

var cardinals = [16]string{
	"North", "NNE", "NE", "ENE",
	"East", "ESE", "SE", "SSE",
	"South", "SSW", "SW", "WSW",
	"West", "WNW", "NW", "NNW",
}

// ToCompass converts a bearing relative to the antenna baseline into a
// compass bearing given the baseline's own compass orientation, and
// buckets it into one of the 16 compass points.
func ToCompass(relativeDeg, arrayOrientationDeg float64) (float64, string) {
	compass := normalizeBearing(relativeDeg + arrayOrientationDeg)

	index := int(math.Round(compass/22.5)) % 16
	return compass, cardinals[index]
}
