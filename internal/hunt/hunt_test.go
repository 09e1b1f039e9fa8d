package hunt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towerhunt/tower-hunter/internal/detect"
	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/locate"
	"github.com/towerhunt/tower-hunter/internal/storage"
)

func coord(t *testing.T, lat, lon float64) geo.Coordinate {
	t.Helper()
	c, err := geo.New(lat, lon)
	require.NoError(t, err)
	return c
}

func TestTopThreat_Empty(t *testing.T) {
	assert.Nil(t, TopThreat(nil))
	assert.Nil(t, TopThreat([]storage.TowerRecord{}))
}

func TestTopThreat_SuspiciousWinsByStrongestSignal(t *testing.T) {
	towers := []storage.TowerRecord{
		{UniqueID: "quiet", IsSuspicious: true, AvgSignal: -80},
		{UniqueID: "loud", IsSuspicious: true, AvgSignal: -40},
		{UniqueID: "benign", IsSuspicious: false, AvgSignal: -20},
	}

	top := TopThreat(towers)
	require.NotNil(t, top)
	assert.Equal(t, "loud", top.UniqueID)
}

func TestTopThreat_ScoresWhenNoneSuspicious(t *testing.T) {
	towers := []storage.TowerRecord{
		{UniqueID: "baseline", IsBaseline: true, AvgSignal: -70, TimesSeen: 100},
		{UniqueID: "new-strong", IsBaseline: false, AvgSignal: -25, TimesSeen: 1},
		{UniqueID: "new-weak", IsBaseline: false, AvgSignal: -85, TimesSeen: 10},
	}

	top := TopThreat(towers)
	require.NotNil(t, top)
	// Strong signal (+50), non-baseline (+30), rarely seen (+15) beats
	// everything else on the list.
	assert.Equal(t, "new-strong", top.UniqueID)
}

func TestAssessThreatLevels(t *testing.T) {
	tests := []struct {
		name  string
		tower storage.TowerRecord
		want  detect.ThreatLevel
	}{
		{
			"suspicious strong new",
			storage.TowerRecord{AvgSignal: -20, IsSuspicious: true, TimesSeen: 1},
			detect.ThreatHigh,
		},
		{
			"strong and new",
			storage.TowerRecord{AvgSignal: -30, TimesSeen: 2},
			detect.ThreatMedium,
		},
		{
			"established baseline",
			storage.TowerRecord{AvgSignal: -75, IsBaseline: true, TimesSeen: 200},
			detect.ThreatLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := NewPlan(tt.tower, nil, nil)
			assert.Equal(t, tt.want, plan.Threat)
		})
	}
}

func TestNewPlan_EstimatesCenterFromMeasurements(t *testing.T) {
	measurements := []locate.Measurement{
		{Location: coord(t, 37.000, -122.000), SignalDBm: -60},
		{Location: coord(t, 37.002, -122.002), SignalDBm: -62},
	}

	plan := NewPlan(storage.TowerRecord{UniqueID: "x", AvgSignal: -60}, measurements, nil)

	require.NotNil(t, plan.EstimatedLocation)
	assert.InDelta(t, 37.001, plan.EstimatedLocation.Latitude, 1e-9)
	assert.InDelta(t, -122.001, plan.EstimatedLocation.Longitude, 1e-9)
}

func TestNewPlan_ScanPointsFormTriangle(t *testing.T) {
	center := coord(t, 37.0, -122.0)
	plan := NewPlan(storage.TowerRecord{AvgSignal: -60}, nil, &center)

	require.Len(t, plan.ScanPoints, 3)

	for i, p := range plan.ScanPoints {
		assert.Equal(t, i+1, p.Priority)
		assert.InDelta(t, 300, p.RadiusM, 1e-9)
		// Each point sits at the pattern radius from the center.
		assert.InDelta(t, 300, center.DistanceTo(p.Location), 3)
	}

	// Point 1 is due north: latitude up, longitude unchanged.
	north := plan.ScanPoints[0]
	assert.Greater(t, north.Location.Latitude, center.Latitude)
	assert.InDelta(t, center.Longitude, north.Location.Longitude, 1e-9)
}

func TestNewPlan_RadiusTracksSignalStrength(t *testing.T) {
	center := coord(t, 37.0, -122.0)

	near := NewPlan(storage.TowerRecord{AvgSignal: -25}, nil, &center)
	mid := NewPlan(storage.TowerRecord{AvgSignal: -40}, nil, &center)
	far := NewPlan(storage.TowerRecord{AvgSignal: -70}, nil, &center)

	assert.InDelta(t, 100, near.ScanPoints[0].RadiusM, 1e-9)
	assert.InDelta(t, 200, mid.ScanPoints[0].RadiusM, 1e-9)
	assert.InDelta(t, 300, far.ScanPoints[0].RadiusM, 1e-9)
}

func TestNewPlan_MarksAlreadyScannedPoints(t *testing.T) {
	center := coord(t, 37.0, -122.0)

	// A measurement sitting right on the northern point.
	measurements := []locate.Measurement{
		{Location: coord(t, 37.0+100.0/111000.0, -122.0), SignalDBm: -50},
	}

	plan := NewPlan(storage.TowerRecord{AvgSignal: -25}, measurements, &center)
	// With a measurement present the pattern centers on it, not on the
	// hunter; rebuild the points around the explicit center instead.
	points := scanPoints(storage.TowerRecord{AvgSignal: -25}, &center, measurements)

	require.Len(t, points, 3)
	assert.Contains(t, points[0].Reason, "already scanned nearby")
	assert.NotContains(t, points[1].Reason, "already scanned nearby")
	require.NotNil(t, plan.EstimatedLocation)
}

func TestNewPlan_NoCenterYieldsPlaceholder(t *testing.T) {
	plan := NewPlan(storage.TowerRecord{AvgSignal: -60}, nil, nil)

	require.Len(t, plan.ScanPoints, 1)
	assert.Equal(t, 1, plan.ScanPoints[0].Priority)
	assert.Contains(t, plan.ScanPoints[0].Reason, "current position")
}

func TestNextStepsProgression(t *testing.T) {
	tower := storage.TowerRecord{UniqueID: "310-410-1-2"}

	none := nextSteps(tower, 0)
	assert.Contains(t, none[0], "Point 1")

	partial := nextSteps(tower, 2)
	assert.Contains(t, partial[0], "Point 3")
	assert.Contains(t, partial[1], "1 more")

	done := nextSteps(tower, 3)
	assert.Contains(t, done[0], "locate -t 310-410-1-2")
}

func TestAnalyze(t *testing.T) {
	lines := analyze(storage.TowerRecord{
		AvgSignal:    -25,
		Technology:   "GSM",
		IsSuspicious: true,
		TimesSeen:    1,
	}, 2)

	joined := ""
	for _, l := range lines {
		joined += l + "\n"
	}

	assert.Contains(t, joined, "-25.0 dBm")
	assert.Contains(t, joined, "extremely close")
	assert.Contains(t, joined, "Technology: GSM")
	assert.Contains(t, joined, "2 of 3")
	assert.Contains(t, joined, "Flagged suspicious")
	assert.Contains(t, joined, "not in the baseline")
}
