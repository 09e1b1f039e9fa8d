// Package scan turns raw spectrum sweeps into cell tower candidates.
package scan

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/sdr"
)

const (
	// DefaultMarginDB is the detection threshold above the noise floor.
	DefaultMarginDB = 10.0

	// DefaultMinRunBins is the minimum number of consecutive bins above
	// threshold for a peak to count as a carrier rather than a spur.
	DefaultMinRunBins = 2
)

// Detector finds transmitter peaks in sweep results and maps them to
// known cellular bands.
type Detector struct {
	marginDB   float64
	minRunBins int
	logger     *slog.Logger
}

// WithMargin sets the detection margin above the noise floor in dB.
func WithMargin(marginDB float64) func(*Detector) {
	return func(d *Detector) {
		d.marginDB = marginDB
	}
}

// WithMinRunBins sets the minimum run length for a detection.
func WithMinRunBins(bins int) func(*Detector) {
	return func(d *Detector) {
		d.minRunBins = bins
	}
}

// WithLogger sets the detector logger.
func WithLogger(logger *slog.Logger) func(*Detector) {
	return func(d *Detector) {
		d.logger = logger
	}
}

func NewDetector(options ...func(*Detector)) *Detector {
	d := &Detector{
		marginDB:   DefaultMarginDB,
		minRunBins: DefaultMinRunBins,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Detect extracts tower candidates from one sweep line. The noise floor
// is the median of valid bin powers; bins more than the margin above it,
// in runs of at least minRunBins, become candidates at the strongest bin
// of each run.
func (d *Detector) Detect(result *sdr.SweepResult) []cell.Tower {
	powers := make([]float64, 0, len(result.Readings))
	for _, r := range result.Readings {
		if r.IsValid {
			powers = append(powers, r.Power)
		}
	}
	if len(powers) < d.minRunBins {
		return nil
	}

	sort.Float64s(powers)
	noiseFloor := stat.Quantile(0.5, stat.Empirical, powers, nil)
	threshold := noiseFloor + d.marginDB

	var towers []cell.Tower
	run := runState{peakIndex: -1}

	flush := func() {
		if run.length >= d.minRunBins {
			peak := result.Readings[run.peakIndex]
			towers = append(towers, d.candidate(peak, result.Timestamp))
		}
		run = runState{peakIndex: -1}
	}

	for i, r := range result.Readings {
		if !r.IsValid || r.Power <= threshold {
			flush()
			continue
		}
		run.length++
		if run.peakIndex < 0 || r.Power > result.Readings[run.peakIndex].Power {
			run.peakIndex = i
		}
	}
	flush()

	if len(towers) > 0 {
		d.logger.Debug("sweep peaks detected",
			slog.Int("count", len(towers)),
			slog.Float64("noiseFloorDB", noiseFloor))
	}

	return towers
}

type runState struct {
	length    int
	peakIndex int
}

// candidate builds a tower record for a sweep peak. Sweep detection sees
// energy, not framing: network identity fields stay unknown until a
// decoder fills them in, and the cell ID is synthesized from frequency
// so repeated sightings of the same carrier collapse to one tower.
func (d *Detector) candidate(peak sdr.PowerReading, at time.Time) cell.Tower {
	freqMHz := peak.Frequency / 1e6

	technology := "unknown"
	if band, ok := cell.BandFor(freqMHz); ok {
		technology = band.Technology
	}

	tower := cell.Tower{
		MCC:          "unknown",
		MNC:          "unknown",
		LAC:          "unknown",
		CellID:       fmt.Sprintf("FREQ-%d", int64(peak.Frequency/1000)),
		FrequencyMHz: freqMHz,
		SignalDBm:    peak.Power,
		Technology:   technology,
		Timestamp:    at,
	}
	tower.Carrier = cell.CarrierFor(tower.MCC, tower.MNC)
	return tower
}
