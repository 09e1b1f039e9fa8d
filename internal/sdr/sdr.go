// Package sdr runs external SDR capture tools as subprocesses and turns
// their line output into structured sweep results.
package sdr

import "time"

// PowerReading is a single frequency bin power reading. Invalid readings
// are kept with IsValid unset so gaps in a sweep stay visible.
type PowerReading struct {
	Frequency float64 // center frequency in Hz
	Power     float64 // power level in dBm
	IsValid   bool
}

// SweepResult is one sweep chunk emitted by a capture tool.
type SweepResult struct {
	Timestamp      time.Time
	StartFrequency float64 // Hz
	EndFrequency   float64 // Hz
	BinWidth       float64 // Hz
	NumSamples     int
	Readings       []PowerReading
	Device         string // device family, e.g. "HackRF"
	DeviceID       string // serial number or index
}

// CenterFrequency returns the center of the sweep chunk's first bin.
func (s *SweepResult) CenterFrequency() float64 {
	return s.StartFrequency + s.BinWidth/2
}
