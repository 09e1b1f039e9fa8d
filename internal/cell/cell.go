// Package cell models detected cell towers and the frequency band plan
// used to classify them.
package cell

import (
	"fmt"
	"time"
)

// Tower is a single detected cell tower observation.
type Tower struct {
	// Identity
	MCC    string // Mobile Country Code
	MNC    string // Mobile Network Code
	LAC    string // Location Area Code
	CellID string

	// Signal
	FrequencyMHz float64
	SignalDBm    float64

	// Metadata
	Technology string // GSM, LTE
	Timestamp  time.Time

	// Optional extended info
	ARFCN      int    // Absolute Radio Frequency Channel Number, 0 if unknown
	Encryption string // A5/1, A5/3, "none"; empty if unknown
	Carrier    string // resolved carrier name; empty if unknown
}

// UniqueID identifies a tower by its broadcast identity.
func (t Tower) UniqueID() string {
	return fmt.Sprintf("%s-%s-%s-%s", t.MCC, t.MNC, t.LAC, t.CellID)
}

// Band is a cellular frequency band.
type Band struct {
	Name       string
	StartMHz   float64
	EndMHz     float64
	Technology string
}

// Bands is the US cellular band plan keyed by short band code.
var Bands = map[string]Band{
	"GSM_850":  {"GSM 850", 824.0, 894.0, "GSM"},
	"GSM_1900": {"GSM 1900 (PCS)", 1850.0, 1990.0, "GSM"},

	"LTE_B2":  {"LTE Band 2 (PCS)", 1850.0, 1990.0, "LTE"},
	"LTE_B4":  {"LTE Band 4 (AWS)", 1710.0, 2155.0, "LTE"},
	"LTE_B5":  {"LTE Band 5 (850)", 824.0, 894.0, "LTE"},
	"LTE_B12": {"LTE Band 12 (700)", 699.0, 746.0, "LTE"},
	"LTE_B13": {"LTE Band 13 (700)", 746.0, 787.0, "LTE"},
	"LTE_B66": {"LTE Band 66 (AWS-3)", 1710.0, 2200.0, "LTE"},
	"LTE_B71": {"LTE Band 71 (600)", 617.0, 698.0, "LTE"},
}

// bandOrder fixes the lookup precedence where bands overlap, such as
// GSM 850 and LTE Band 5 sharing the cellular 850 block.
var bandOrder = []string{
	"GSM_850", "GSM_1900",
	"LTE_B2", "LTE_B4", "LTE_B5", "LTE_B12", "LTE_B13", "LTE_B66", "LTE_B71",
}

// BandFor returns the first band containing the frequency, or false when
// no band matches.
func BandFor(freqMHz float64) (Band, bool) {
	for _, code := range bandOrder {
		b := Bands[code]
		if b.StartMHz <= freqMHz && freqMHz <= b.EndMHz {
			return b, true
		}
	}
	return Band{}, false
}

type carrierKey struct {
	mcc, mnc string
}

// Major US carrier MCC/MNC assignments.
var carriers = map[carrierKey]string{
	{"310", "410"}: "AT&T",
	{"310", "260"}: "T-Mobile",
	{"311", "480"}: "Verizon",
	{"310", "120"}: "Sprint",
	{"312", "530"}: "US Cellular",
}

// CarrierFor resolves a carrier name from MCC/MNC codes; empty string
// when unknown.
func CarrierFor(mcc, mnc string) string {
	return carriers[carrierKey{mcc, mnc}]
}
