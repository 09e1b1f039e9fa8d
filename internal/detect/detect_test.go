package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/storage"
)

func knownTower(id string) cell.Tower {
	return cell.Tower{
		MCC:          "310",
		MNC:          "260",
		LAC:          "1234",
		CellID:       id,
		FrequencyMHz: 869.5,
		SignalDBm:    -70,
		Technology:   "GSM",
	}
}

func baselineSnapshot(towers ...cell.Tower) Snapshot {
	snapshot := Snapshot{
		Known:    make(map[string]storage.TowerRecord),
		Previous: make(map[string]cell.Tower),
	}
	for _, t := range towers {
		snapshot.Known[t.UniqueID()] = storage.TowerRecord{
			UniqueID:   t.UniqueID(),
			Technology: t.Technology,
			TimesSeen:  100,
			AvgSignal:  t.SignalDBm,
			IsBaseline: true,
		}
	}
	return snapshot
}

func analyze(t *testing.T, a *Analyzer, snapshot Snapshot, towers ...cell.Tower) []Anomaly {
	t.Helper()
	anomalies, _ := a.Analyze(snapshot, towers)
	return anomalies
}

func findAnomaly(anomalies []Anomaly, typ AnomalyType) (Anomaly, bool) {
	for _, a := range anomalies {
		if a.Type == typ {
			return a, true
		}
	}
	return Anomaly{}, false
}

func TestAnalyze_BaselineQuiet(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	tower := knownTower("5678")

	assert.Empty(t, analyze(t, a, baselineSnapshot(tower), tower))
}

func TestAnalyze_NewTower(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	tower := knownTower("5678")

	anomaly, ok := findAnomaly(analyze(t, a, Snapshot{}, tower), AnomalyNewTower)
	require.True(t, ok)
	assert.Equal(t, ThreatMedium, anomaly.Level)
	assert.Contains(t, anomaly.Description, tower.UniqueID())
}

func TestAnalyze_RarelySeenTower(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())
	tower := knownTower("5678")

	snapshot := Snapshot{
		Known: map[string]storage.TowerRecord{
			tower.UniqueID(): {UniqueID: tower.UniqueID(), TimesSeen: 2},
		},
	}

	anomaly, ok := findAnomaly(analyze(t, a, snapshot, tower), AnomalyNewTower)
	require.True(t, ok)
	assert.Equal(t, ThreatLow, anomaly.Level)
}

func TestAnalyze_SignalSpike(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	t.Run("absolute", func(t *testing.T) {
		tower := knownTower("5678")
		tower.SignalDBm = -20

		anomaly, ok := findAnomaly(analyze(t, a, Snapshot{}, tower), AnomalySignalSpike)
		require.True(t, ok)
		assert.Equal(t, ThreatHigh, anomaly.Level)
	})

	t.Run("delta above baseline", func(t *testing.T) {
		tower := knownTower("5678")
		snapshot := baselineSnapshot(tower)

		tower.SignalDBm = -45 // 25 dB over the -70 average, under the absolute cap

		anomaly, ok := findAnomaly(analyze(t, a, snapshot, tower), AnomalySignalSpike)
		require.True(t, ok)
		assert.Equal(t, ThreatMedium, anomaly.Level)
	})
}

func TestAnalyze_Encryption(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	tests := []struct {
		encryption string
		level      ThreatLevel
		fires      bool
	}{
		{"none", ThreatCritical, true},
		{"A5/0", ThreatCritical, true},
		{"A5/1", ThreatMedium, true},
		{"A5/3", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.encryption, func(t *testing.T) {
			tower := knownTower("5678")
			tower.Encryption = tt.encryption
			snapshot := baselineSnapshot(knownTower("5678"))

			anomaly, ok := findAnomaly(analyze(t, a, snapshot, tower), AnomalyEncryptionDisabled)
			require.Equal(t, tt.fires, ok)
			if ok {
				assert.Equal(t, tt.level, anomaly.Level)
			}
		})
	}
}

func TestAnalyze_InvalidCarrier(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	tower := knownTower("5678")
	tower.MCC, tower.MNC = "999", "999"

	anomaly, ok := findAnomaly(analyze(t, a, Snapshot{}, tower), AnomalyInvalidCarrier)
	require.True(t, ok)
	assert.Equal(t, ThreatHigh, anomaly.Level)

	// Unknown identity is not an invalid one.
	tower.MCC, tower.MNC = "unknown", "unknown"
	_, ok = findAnomaly(analyze(t, a, Snapshot{}, tower), AnomalyInvalidCarrier)
	assert.False(t, ok)
}

func TestAnalyze_IdentityChange(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	previous := knownTower("5678")
	snapshot := baselineSnapshot(previous)
	snapshot.Previous[previous.UniqueID()] = previous

	current := previous
	current.FrequencyMHz = 881.2

	anomaly, ok := findAnomaly(analyze(t, a, snapshot, current), AnomalyIdentityChange)
	require.True(t, ok)
	assert.Equal(t, ThreatHigh, anomaly.Level)
	assert.Contains(t, anomaly.Description, "frequency")

	// Small retune jitter is tolerated.
	current.FrequencyMHz = previous.FrequencyMHz + 0.1
	_, ok = findAnomaly(analyze(t, a, snapshot, current), AnomalyIdentityChange)
	assert.False(t, ok)
}

func TestAnalyze_Downgrade(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	lte := knownTower("9999")
	lte.Technology = "LTE"
	snapshot := baselineSnapshot(knownTower("5678"), lte)

	// Only GSM observed while LTE is in the baseline.
	anomaly, ok := findAnomaly(analyze(t, a, snapshot, knownTower("5678")), AnomalyDowngradeAttack)
	require.True(t, ok)
	assert.Equal(t, ThreatHigh, anomaly.Level)

	// LTE present, no downgrade.
	observedLTE := knownTower("9999")
	observedLTE.Technology = "LTE"
	_, ok = findAnomaly(analyze(t, a, snapshot, knownTower("5678"), observedLTE), AnomalyDowngradeAttack)
	assert.False(t, ok)
}

func TestAnalyze_SnapshotTransition(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	first := knownTower("5678")
	input := baselineSnapshot(first)

	_, next := a.Analyze(input, []cell.Tower{first})

	// The scan's towers become the previous observations.
	assert.Equal(t, first, next.Previous[first.UniqueID()])
	// The input snapshot is untouched.
	assert.Empty(t, input.Previous)

	// An identity change is only visible relative to the successor
	// snapshot.
	moved := first
	moved.FrequencyMHz = 881.2
	anomalies, _ := a.Analyze(next, []cell.Tower{moved})
	_, ok := findAnomaly(anomalies, AnomalyIdentityChange)
	assert.True(t, ok)
}

func TestSummarize(t *testing.T) {
	anomalies := []Anomaly{
		{Type: AnomalyNewTower, Level: ThreatMedium, Description: "new"},
		{Type: AnomalySignalSpike, Level: ThreatHigh, Description: "spike"},
		{Type: AnomalyEncryptionDisabled, Level: ThreatCritical, Description: "open"},
	}

	summary := Summarize(anomalies)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.ByLevel[ThreatHigh])
	assert.Equal(t, 1, summary.ByType[AnomalyNewTower])
	assert.Len(t, summary.Actionable, 2)
}
