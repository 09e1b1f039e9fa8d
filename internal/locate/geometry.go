package locate

// Quality grades how well-distributed a measurement set is for
// trilateration. This is a coarse dilution-of-precision heuristic over
// coordinate spread, not a rigorous DOP computation.
type Quality string

const (
	QualityInsufficient Quality = "INSUFFICIENT"
	QualityPoor         Quality = "POOR"
	QualityGood         Quality = "GOOD"
	QualityExcellent    Quality = "EXCELLENT"
)

// Spread thresholds in degrees, roughly 55 m and 220 m at the equator.
const (
	poorSpreadDegrees = 0.0005
	goodSpreadDegrees = 0.002
)

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111000.0

// Geometry is the result of analyzing a measurement set's spatial
// distribution.
type Geometry struct {
	Quality           Quality
	ConfidencePercent int
	Recommendation    string

	// SpreadDegrees is the average of the latitude and longitude ranges
	// across the set; zero when there are fewer than three measurements.
	SpreadDegrees float64

	// SpreadMeters is the same spread as an approximate distance.
	SpreadMeters float64
}

// AnalyzeGeometry scores how suitable a measurement set is for
// trilateration based on how far apart the measurement locations are.
func AnalyzeGeometry(measurements []Measurement) Geometry {
	if len(measurements) < 3 {
		return Geometry{
			Quality:           QualityInsufficient,
			ConfidencePercent: 0,
			Recommendation:    "Collect at least 3 measurements from different locations",
		}
	}

	minLat, maxLat := measurements[0].Location.Latitude, measurements[0].Location.Latitude
	minLon, maxLon := measurements[0].Location.Longitude, measurements[0].Location.Longitude
	for _, m := range measurements[1:] {
		minLat = min(minLat, m.Location.Latitude)
		maxLat = max(maxLat, m.Location.Latitude)
		minLon = min(minLon, m.Location.Longitude)
		maxLon = max(maxLon, m.Location.Longitude)
	}

	spread := ((maxLat - minLat) + (maxLon - minLon)) / 2

	switch {
	case spread < poorSpreadDegrees:
		return Geometry{
			Quality:           QualityPoor,
			ConfidencePercent: 30,
			Recommendation:    "Measurements too clustered; move at least 50 m between scans",
			SpreadDegrees:     spread,
			SpreadMeters:      spread * metersPerDegree,
		}
	case spread < goodSpreadDegrees:
		return Geometry{
			Quality:           QualityGood,
			ConfidencePercent: 70,
			Recommendation:    "Usable geometry; wider spacing would improve the fix",
			SpreadDegrees:     spread,
			SpreadMeters:      spread * metersPerDegree,
		}
	default:
		return Geometry{
			Quality:           QualityExcellent,
			ConfidencePercent: 90,
			Recommendation:    "Well distributed measurement set",
			SpreadDegrees:     spread,
			SpreadMeters:      spread * metersPerDegree,
		}
	}
}

