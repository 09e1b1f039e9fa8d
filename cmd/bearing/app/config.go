package app

import (
	"errors"
	"flag"
)

// Config is the direction-finding tool configuration. Sample input comes
// either from two recorded IQ files or from a live two-device capture.
type Config struct {
	FrequencyHz float64
	SpacingM    float64

	// Recorded input
	FileA string
	FileB string

	// Live capture
	Live       bool
	DeviceA    int
	DeviceB    int
	NumSamples int

	CalibrationOffset float64
	ArrayOrientation  float64
}

func NewConfigFromCLI() (*Config, error) {
	c := &Config{}

	flag.Float64Var(&c.FrequencyHz, "f", 0, "Signal frequency in Hz")
	flag.Float64Var(&c.SpacingM, "s", 0, "Antenna spacing in meters (0 uses half-wavelength)")
	flag.StringVar(&c.FileA, "a", "", "IQ recording for antenna A (raw interleaved 8-bit)")
	flag.StringVar(&c.FileB, "b", "", "IQ recording for antenna B (raw interleaved 8-bit)")
	flag.BoolVar(&c.Live, "live", false, "Capture live from two attached devices")
	flag.IntVar(&c.DeviceA, "da", 0, "Device index for antenna A")
	flag.IntVar(&c.DeviceB, "db", 1, "Device index for antenna B")
	flag.IntVar(&c.NumSamples, "n", 262144, "Samples to capture per antenna")
	flag.Float64Var(&c.CalibrationOffset, "offset", 0, "Calibration offset in degrees")
	flag.Float64Var(&c.ArrayOrientation, "orientation", 0, "Antenna array orientation in degrees from north")
	flag.Parse()

	var err error
	switch {
	case c.FrequencyHz <= 0:
		err = errors.New("frequency is required")
	case c.Live && (c.FileA != "" || c.FileB != ""):
		err = errors.New("live capture and IQ files are mutually exclusive")
	case !c.Live && (c.FileA == "" || c.FileB == ""):
		err = errors.New("both IQ files are required unless capturing live")
	case c.Live && c.DeviceA == c.DeviceB:
		err = errors.New("live capture needs two distinct device indexes")
	case c.Live && c.NumSamples <= 0:
		err = errors.New("number of samples must be positive")
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}
