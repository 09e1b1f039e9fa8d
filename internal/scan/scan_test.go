package scan

import (
	"testing"
	"time"

	"github.com/towerhunt/tower-hunter/internal/sdr"
)

func sweep(startHz, binWidthHz float64, powers []float64) *sdr.SweepResult {
	result := &sdr.SweepResult{
		Timestamp:      time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		StartFrequency: startHz,
		EndFrequency:   startHz + float64(len(powers))*binWidthHz,
		BinWidth:       binWidthHz,
		NumSamples:     8192,
		Device:         "HackRF",
	}
	for i, p := range powers {
		result.Readings = append(result.Readings, sdr.PowerReading{
			Frequency: startHz + float64(i)*binWidthHz + binWidthHz/2,
			Power:     p,
			IsValid:   true,
		})
	}
	return result
}

func TestDetect(t *testing.T) {
	// Flat -90 dB noise floor with a two-bin carrier well above it.
	powers := make([]float64, 20)
	for i := range powers {
		powers[i] = -90
	}
	powers[8] = -55
	powers[9] = -50

	d := NewDetector()
	towers := d.Detect(sweep(869e6, 1e6, powers))

	if len(towers) != 1 {
		t.Fatalf("got %d towers, want 1", len(towers))
	}

	tower := towers[0]
	// Peak is the stronger bin of the run.
	wantFreq := (869e6 + 9*1e6 + 0.5e6) / 1e6
	if tower.FrequencyMHz != wantFreq {
		t.Errorf("FrequencyMHz = %g, want %g", tower.FrequencyMHz, wantFreq)
	}
	if tower.SignalDBm != -50 {
		t.Errorf("SignalDBm = %g, want -50", tower.SignalDBm)
	}
	if tower.Technology != "GSM" {
		t.Errorf("Technology = %q, want GSM", tower.Technology)
	}
	if tower.MCC != "unknown" || tower.CellID == "" {
		t.Errorf("identity = %s, want unknown MCC and synthetic cell ID", tower.UniqueID())
	}
}

func TestDetect_SingleBinSpurIgnored(t *testing.T) {
	powers := make([]float64, 20)
	for i := range powers {
		powers[i] = -90
	}
	powers[5] = -40 // isolated spike

	if towers := NewDetector().Detect(sweep(869e6, 1e6, powers)); len(towers) != 0 {
		t.Errorf("got %d towers, want 0 for single-bin spur", len(towers))
	}
}

func TestDetect_MultiplePeaks(t *testing.T) {
	powers := make([]float64, 40)
	for i := range powers {
		powers[i] = -85
	}
	powers[3], powers[4] = -60, -58
	powers[20], powers[21], powers[22] = -65, -50, -62

	towers := NewDetector().Detect(sweep(869e6, 1e6, powers))
	if len(towers) != 2 {
		t.Fatalf("got %d towers, want 2", len(towers))
	}
	if towers[1].SignalDBm != -50 {
		t.Errorf("second peak SignalDBm = %g, want -50", towers[1].SignalDBm)
	}
}

func TestDetect_AllNoise(t *testing.T) {
	powers := make([]float64, 20)
	for i := range powers {
		powers[i] = -90 + float64(i%3) // small ripple stays under margin
	}

	if towers := NewDetector().Detect(sweep(869e6, 1e6, powers)); len(towers) != 0 {
		t.Errorf("got %d towers, want 0 for noise-only sweep", len(towers))
	}
}

func TestDetect_InvalidBinsBreakRuns(t *testing.T) {
	powers := make([]float64, 20)
	for i := range powers {
		powers[i] = -90
	}
	powers[8] = -50
	powers[10] = -50

	result := sweep(869e6, 1e6, powers)
	result.Readings[9].IsValid = false // gap splits the run

	if towers := NewDetector().Detect(result); len(towers) != 0 {
		t.Errorf("got %d towers, want 0 when runs are split by invalid bins", len(towers))
	}
}

func TestDetect_TooFewBins(t *testing.T) {
	if towers := NewDetector().Detect(sweep(869e6, 1e6, []float64{-50})); towers != nil {
		t.Errorf("got %v, want nil for sweep with too few bins", towers)
	}
}
