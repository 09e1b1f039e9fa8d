// Package detect flags tower observations that look like IMSI catcher
// activity: unknown or mutating towers, implausible signal levels,
// degraded encryption, and technology downgrades.
package detect

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/storage"
)

// ThreatLevel ranks how alarming an anomaly is.
type ThreatLevel string

const (
	ThreatInfo     ThreatLevel = "info"
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Actionable reports whether the level warrants marking the tower
// suspicious and alerting the operator.
func (l ThreatLevel) Actionable() bool {
	return l == ThreatHigh || l == ThreatCritical
}

// AnomalyType names the detection that fired.
type AnomalyType string

const (
	AnomalyNewTower           AnomalyType = "new_tower"
	AnomalySignalSpike        AnomalyType = "signal_spike"
	AnomalyEncryptionDisabled AnomalyType = "encryption_disabled"
	AnomalyDowngradeAttack    AnomalyType = "downgrade_attack"
	AnomalyInvalidCarrier     AnomalyType = "invalid_carrier"
	AnomalyIdentityChange     AnomalyType = "identity_change"
)

// Anomaly is one suspicious finding about a tower observation.
type Anomaly struct {
	Type        AnomalyType
	Level       ThreatLevel
	Tower       cell.Tower
	Description string
	Timestamp   time.Time
}

func (a Anomaly) String() string {
	return fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(a.Level)), a.Type, a.Description)
}

// Thresholds tune the signal-based detections.
type Thresholds struct {
	// MaxSignalDBm is the absolute level above which a signal is
	// implausibly strong for a real tower at usual distances.
	MaxSignalDBm float64 `yaml:"maxSignalDBm" json:"maxSignalDBm"`

	// SignalSpikeDelta is the rise in dB over a baseline tower's average
	// that counts as a spike.
	SignalSpikeDelta float64 `yaml:"signalSpikeDelta" json:"signalSpikeDelta"`

	// RareSightings is the times-seen count under which a known tower is
	// still treated as rarely seen.
	RareSightings int `yaml:"rareSightings" json:"rareSightings"`
}

// DefaultThresholds matches a typical urban deployment.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSignalDBm:     -30.0,
		SignalSpikeDelta: 20.0,
		RareSightings:    3,
	}
}

// Snapshot is the analyzer's view of history: persisted tower records
// and the previous observation of each tower in this session. Analyze
// never touches storage itself, so scans stay deterministic and
// testable.
type Snapshot struct {
	Known    map[string]storage.TowerRecord
	Previous map[string]cell.Tower
}

// Analyzer runs the detection suite over scan results.
type Analyzer struct {
	thresholds Thresholds
}

func NewAnalyzer(thresholds Thresholds) *Analyzer {
	return &Analyzer{thresholds: thresholds}
}

// Analyze checks every observed tower against the snapshot and returns
// the anomalies found, in observation order, along with the successor
// snapshot whose previous-observation map reflects this scan. The input
// snapshot is not modified.
func (a *Analyzer) Analyze(snapshot Snapshot, towers []cell.Tower) ([]Anomaly, Snapshot) {
	now := time.Now()
	var anomalies []Anomaly

	add := func(t cell.Tower, typ AnomalyType, level ThreatLevel, description string) {
		anomalies = append(anomalies, Anomaly{
			Type:        typ,
			Level:       level,
			Tower:       t,
			Description: description,
			Timestamp:   now,
		})
	}

	for _, tower := range towers {
		id := tower.UniqueID()
		record, known := snapshot.Known[id]

		a.checkNewTower(tower, record, known, add)
		a.checkSignalSpike(tower, record, known, add)
		a.checkEncryption(tower, add)
		a.checkCarrier(tower, add)
		a.checkIdentityChange(tower, snapshot.Previous[id], add)
	}

	a.checkDowngrade(snapshot, towers, add)

	return anomalies, snapshot.next(towers)
}

// next builds the snapshot for the following scan: same known records,
// previous observations replaced by this scan's towers.
func (s Snapshot) next(towers []cell.Tower) Snapshot {
	previous := make(map[string]cell.Tower, len(s.Previous)+len(towers))
	for id, t := range s.Previous {
		previous[id] = t
	}
	for _, t := range towers {
		previous[t.UniqueID()] = t
	}
	return Snapshot{Known: s.Known, Previous: previous}
}

type addFunc func(t cell.Tower, typ AnomalyType, level ThreatLevel, description string)

func (a *Analyzer) checkNewTower(tower cell.Tower, record storage.TowerRecord, known bool, add addFunc) {
	if known && record.IsBaseline {
		return
	}

	switch {
	case !known:
		add(tower, AnomalyNewTower, ThreatMedium,
			fmt.Sprintf("new tower detected: %s", tower.UniqueID()))
	case record.TimesSeen < a.thresholds.RareSightings:
		add(tower, AnomalyNewTower, ThreatLow,
			fmt.Sprintf("rarely seen tower: %s (seen %d times)", tower.UniqueID(), record.TimesSeen))
	}
}

func (a *Analyzer) checkSignalSpike(tower cell.Tower, record storage.TowerRecord, known bool, add addFunc) {
	if tower.SignalDBm > a.thresholds.MaxSignalDBm {
		add(tower, AnomalySignalSpike, ThreatHigh,
			fmt.Sprintf("abnormally strong signal: %.1f dBm", tower.SignalDBm))
	}

	if known && record.IsBaseline {
		if delta := tower.SignalDBm - record.AvgSignal; delta > a.thresholds.SignalSpikeDelta {
			add(tower, AnomalySignalSpike, ThreatMedium,
				fmt.Sprintf("signal spike: %.1f dB above average", delta))
		}
	}
}

func (a *Analyzer) checkEncryption(tower cell.Tower, add addFunc) {
	switch strings.ToLower(tower.Encryption) {
	case "":
		// Encryption state unknown for sweep-only detections.
	case "none", "a5/0", "disabled":
		add(tower, AnomalyEncryptionDisabled, ThreatCritical,
			"tower has encryption disabled")
	case "a5/1":
		add(tower, AnomalyEncryptionDisabled, ThreatMedium,
			"tower using weak A5/1 encryption")
	}
}

func (a *Analyzer) checkCarrier(tower cell.Tower, add addFunc) {
	if tower.MCC == "unknown" || tower.MNC == "unknown" {
		return
	}

	if cell.CarrierFor(tower.MCC, tower.MNC) == "" {
		add(tower, AnomalyInvalidCarrier, ThreatHigh,
			fmt.Sprintf("unknown carrier: MCC=%s, MNC=%s", tower.MCC, tower.MNC))
	}
}

// identityFrequencyTolerance allows for retune jitter before a frequency
// move counts as an identity change.
const identityFrequencyTolerance = 0.5

func (a *Analyzer) checkIdentityChange(tower, previous cell.Tower, add addFunc) {
	if previous.UniqueID() != tower.UniqueID() {
		return
	}

	var changes []string
	if math.Abs(previous.FrequencyMHz-tower.FrequencyMHz) > identityFrequencyTolerance {
		changes = append(changes, fmt.Sprintf("frequency: %g -> %g", previous.FrequencyMHz, tower.FrequencyMHz))
	}
	if previous.Technology != tower.Technology {
		changes = append(changes, fmt.Sprintf("technology: %s -> %s", previous.Technology, tower.Technology))
	}

	if len(changes) > 0 {
		add(tower, AnomalyIdentityChange, ThreatHigh,
			"tower parameters changed: "+strings.Join(changes, ", "))
	}
}

// checkDowngrade fires when LTE towers are part of the baseline but the
// current scan sees only GSM. Forcing phones down to 2G is the classic
// interception setup.
func (a *Analyzer) checkDowngrade(snapshot Snapshot, towers []cell.Tower, add addFunc) {
	if len(towers) == 0 {
		return
	}

	baselineLTE := false
	for _, record := range snapshot.Known {
		if record.IsBaseline && record.Technology == "LTE" {
			baselineLTE = true
			break
		}
	}
	if !baselineLTE {
		return
	}

	sawGSM, sawLTE := false, false
	for _, t := range towers {
		switch t.Technology {
		case "GSM":
			sawGSM = true
		case "LTE":
			sawLTE = true
		}
	}

	if sawGSM && !sawLTE {
		add(towers[0], AnomalyDowngradeAttack, ThreatHigh,
			"possible downgrade attack: only 2G observed, LTE missing")
	}
}

// Summary aggregates one scan's anomalies for reporting.
type Summary struct {
	Total      int
	ByLevel    map[ThreatLevel]int
	ByType     map[AnomalyType]int
	Actionable []string
}

func Summarize(anomalies []Anomaly) Summary {
	summary := Summary{
		Total:   len(anomalies),
		ByLevel: make(map[ThreatLevel]int),
		ByType:  make(map[AnomalyType]int),
	}

	for _, anomaly := range anomalies {
		summary.ByLevel[anomaly.Level]++
		summary.ByType[anomaly.Type]++
		if anomaly.Level.Actionable() {
			summary.Actionable = append(summary.Actionable, anomaly.String())
		}
	}

	return summary
}
