// Package hunt plans the field work of tracking down a suspicious
// tower: which tower to chase first, where to take the next signal
// measurements, and what to do once enough are in.
package hunt

import (
	"fmt"
	"math"
	"sort"

	"github.com/towerhunt/tower-hunter/internal/detect"
	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
	"github.com/towerhunt/tower-hunter/internal/storage"
)

// metersPerDegree approximates one degree of latitude.
const metersPerDegree = 111000.0

// nearbyDegrees is the box around a recommended point within which an
// existing measurement counts as already covering it.
const nearbyDegrees = 0.0005

// measurementsForFix is how many spread-out measurements a usable
// position estimate needs.
const measurementsForFix = 3

// ScanPoint is a recommended measurement location.
type ScanPoint struct {
	Location geo.Coordinate
	Reason   string
	Priority int // 1 is highest
	RadiusM  float64
}

// Plan is a complete hunting plan for one target tower.
type Plan struct {
	Target            storage.TowerRecord
	Threat            detect.ThreatLevel
	EstimatedLocation *geo.Coordinate
	ScanPoints        []ScanPoint
	Analysis          []string
	NextSteps         []string
}

// TopThreat picks the tower most worth investigating. Towers already
// flagged suspicious win, strongest signal first; otherwise towers are
// scored on signal strength, newness, technology, and rarity. Returns
// nil when there is nothing to hunt.
func TopThreat(towers []storage.TowerRecord) *storage.TowerRecord {
	if len(towers) == 0 {
		return nil
	}

	var suspicious []storage.TowerRecord
	for _, t := range towers {
		if t.IsSuspicious {
			suspicious = append(suspicious, t)
		}
	}
	if len(suspicious) > 0 {
		top := suspicious[0]
		for _, t := range suspicious[1:] {
			if t.AvgSignal > top.AvgSignal {
				top = t
			}
		}
		return &top
	}

	scored := make([]storage.TowerRecord, len(towers))
	copy(scored, towers)
	sort.SliceStable(scored, func(i, j int) bool {
		return suspicionScore(scored[i]) > suspicionScore(scored[j])
	})

	top := scored[0]
	return &top
}

func suspicionScore(t storage.TowerRecord) int {
	score := 0
	if t.AvgSignal > -30 {
		score += 50
	}
	if !t.IsBaseline {
		score += 30
	}
	if t.Technology == "5G" {
		score += 20
	}
	if t.TimesSeen < 3 {
		score += 15
	}
	return score
}

// NewPlan builds a hunting plan for the target from its stored
// measurements. When no measurements exist yet, hunter is used as the
// scan pattern center; it may be nil.
func NewPlan(target storage.TowerRecord, measurements []locate.Measurement, hunter *geo.Coordinate) Plan {
	estimated := roughEstimate(measurements)

	center := estimated
	if center == nil {
		center = hunter
	}

	return Plan{
		Target:            target,
		Threat:            assessThreat(target),
		EstimatedLocation: estimated,
		ScanPoints:        scanPoints(target, center, measurements),
		Analysis:          analyze(target, len(measurements)),
		NextSteps:         nextSteps(target, len(measurements)),
	}
}

// roughEstimate is the unweighted centroid of existing measurements,
// good enough to center the scan pattern before a real trilateration.
func roughEstimate(measurements []locate.Measurement) *geo.Coordinate {
	if len(measurements) == 0 {
		return nil
	}

	var lat, lon float64
	for _, m := range measurements {
		lat += m.Location.Latitude
		lon += m.Location.Longitude
	}
	n := float64(len(measurements))

	c, err := geo.New(lat/n, lon/n)
	if err != nil {
		return nil
	}
	return &c
}

func assessThreat(t storage.TowerRecord) detect.ThreatLevel {
	score := 0

	switch {
	case t.AvgSignal > -25:
		score += 3
	case t.AvgSignal > -35:
		score += 2
	}

	if t.IsSuspicious {
		score += 3
	}
	if !t.IsBaseline && t.TimesSeen < 5 {
		score += 2
	}
	if t.Technology == "5G" {
		score++
	}

	switch {
	case score >= 6:
		return detect.ThreatHigh
	case score >= 3:
		return detect.ThreatMedium
	default:
		return detect.ThreatLow
	}
}

// scanPoints recommends three measurement locations in a triangle
// around the center, sized by how close the signal suggests the tower
// is. Without a center there is nothing to anchor the pattern to.
func scanPoints(target storage.TowerRecord, center *geo.Coordinate, measurements []locate.Measurement) []ScanPoint {
	if center == nil {
		return []ScanPoint{{
			Reason:   "No location data yet; take the first measurement from your current position",
			Priority: 1,
		}}
	}

	var radiusM float64
	switch {
	case target.AvgSignal > -30:
		radiusM = 100
	case target.AvgSignal > -45:
		radiusM = 200
	default:
		radiusM = 300
	}
	radiusDeg := radiusM / metersPerDegree

	headings := []struct {
		angleDeg float64
		name     string
	}{
		{0, "north"},
		{120, "southeast"},
		{240, "southwest"},
	}

	points := make([]ScanPoint, 0, len(headings))
	for i, h := range headings {
		angle := h.angleDeg * math.Pi / 180

		dLat := radiusDeg * math.Cos(angle)
		dLon := radiusDeg * math.Sin(angle) / math.Cos(center.Latitude*math.Pi/180)

		location, err := geo.New(center.Latitude+dLat, center.Longitude+dLon)
		if err != nil {
			continue
		}

		reason := fmt.Sprintf("Point %d: %.0f m %s of the estimated center", i+1, radiusM, h.name)
		if hasNearby(measurements, location) {
			reason += " (already scanned nearby)"
		}

		points = append(points, ScanPoint{
			Location: location,
			Reason:   reason,
			Priority: i + 1,
			RadiusM:  radiusM,
		})
	}

	return points
}

func hasNearby(measurements []locate.Measurement, location geo.Coordinate) bool {
	for _, m := range measurements {
		if math.Abs(m.Location.Latitude-location.Latitude) < nearbyDegrees &&
			math.Abs(m.Location.Longitude-location.Longitude) < nearbyDegrees {
			return true
		}
	}
	return false
}

func analyze(t storage.TowerRecord, measurementCount int) []string {
	lines := []string{fmt.Sprintf("Signal: %.1f dBm average", t.AvgSignal)}

	switch {
	case t.AvgSignal > -30:
		lines = append(lines, "Very strong signal: tower is extremely close or over-powered")
	case t.AvgSignal > -45:
		lines = append(lines, "Strong signal: tower within a few hundred meters")
	}

	lines = append(lines, fmt.Sprintf("Technology: %s", t.Technology))

	if measurementCount >= measurementsForFix {
		lines = append(lines, fmt.Sprintf("Measurements: %d locations scanned, enough for a position estimate", measurementCount))
	} else {
		lines = append(lines, fmt.Sprintf("Measurements: %d of %d needed for a position estimate", measurementCount, measurementsForFix))
	}

	if t.IsSuspicious {
		lines = append(lines, "Flagged suspicious by the anomaly detector")
	}
	if !t.IsBaseline && t.TimesSeen < 5 {
		lines = append(lines, "New or rarely seen tower, not in the baseline")
	}

	return lines
}

func nextSteps(t storage.TowerRecord, measurementCount int) []string {
	switch {
	case measurementCount == 0:
		return []string{
			"Go to recommended Point 1 and record a measurement there",
			"Move to Point 2 and repeat",
			"Complete all three points before estimating",
		}
	case measurementCount < measurementsForFix:
		return []string{
			fmt.Sprintf("Go to Point %d and record a measurement there", measurementCount+1),
			fmt.Sprintf("Complete %d more measurement(s)", measurementsForFix-measurementCount),
		}
	default:
		return []string{
			fmt.Sprintf("Estimate the position: locate -t %s", t.UniqueID),
			"Review the estimated location on the map link",
			"Investigate the physical location",
			"Report a confirmed rogue tower to the authorities",
		}
	}
}
