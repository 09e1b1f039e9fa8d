// Package hackrf adapts the HackRF command line tools (hackrf_sweep,
// hackrf_info) for use as sweep capture devices.
package hackrf

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	MinNumSamples = 8192
	MaxLNAGain    = 40
	MaxVGAGain    = 62
	LNAGainStep   = 8
	VGAGainStep   = 2
)

// Config configures a `hackrf_sweep` invocation.
// See https://manpages.debian.org/bookworm/hackrf/hackrf_sweep.1.en.html
type Config struct {
	// Required
	FrequencyStart int64 `yaml:"frequencyStart" json:"frequencyStart"` // Hz, start of sweep range
	FrequencyEnd   int64 `yaml:"frequencyEnd" json:"frequencyEnd"`     // Hz, end of sweep range

	// Optional with tool defaults
	LNAGain    *int  `yaml:"lnaGain" json:"lnaGain"`       // 0-40 dB in 8 dB steps
	VGAGain    *int  `yaml:"vgaGain" json:"vgaGain"`       // 0-62 dB in 2 dB steps
	BinWidth   int64 `yaml:"binWidth" json:"binWidth"`     // FFT bin width in Hz
	NumSamples int64 `yaml:"numSamples" json:"numSamples"` // samples per frequency, >= 8192

	EnableAmp    bool `yaml:"enableAmp" json:"enableAmp"`       // RX RF amplifier
	AntennaPower bool `yaml:"antennaPower" json:"antennaPower"` // antenna port power

	// NumSweeps limits the number of sweeps; 0 sweeps continuously.
	NumSweeps int `yaml:"numSweeps" json:"numSweeps"`

	// SerialNumber selects a specific HackRF when several are attached.
	SerialNumber string `yaml:"serialNumber" json:"serialNumber"`
}

func (c *Config) Validate() error {
	if c.FrequencyStart >= c.FrequencyEnd {
		return errors.New("hackrf.Config: frequency end must be greater than frequency start")
	}

	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return fmt.Errorf("hackrf.Config: LNA gain must be between 0 and %d dB: %d given", MaxLNAGain, *c.LNAGain)
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return fmt.Errorf("hackrf.Config: LNA gain must be a multiple of %d dB", LNAGainStep)
		}
	}

	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return fmt.Errorf("hackrf.Config: VGA gain must be between 0 and %d dB: %d given", MaxVGAGain, *c.VGAGain)
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return fmt.Errorf("hackrf.Config: VGA gain must be a multiple of %d dB", VGAGainStep)
		}
	}

	if c.NumSamples > 0 && c.NumSamples < MinNumSamples {
		return fmt.Errorf("hackrf.Config: number of samples must be at least %d: %d given", MinNumSamples, c.NumSamples)
	}

	if c.NumSweeps < 0 {
		return fmt.Errorf("hackrf.Config: number of sweeps cannot be negative: %d given", c.NumSweeps)
	}

	return nil
}

// Args builds the `hackrf_sweep` command line arguments.
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	// hackrf_sweep takes the frequency range in MHz.
	args := []string{
		"-f", fmt.Sprintf("%d:%d", c.FrequencyStart/1e6, c.FrequencyEnd/1e6),
	}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.BinWidth > 0 {
		args = append(args, "-w", strconv.FormatInt(c.BinWidth, 10))
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}

	if c.NumSamples >= MinNumSamples {
		args = append(args, "-n", strconv.FormatInt(c.NumSamples, 10))
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	if c.NumSweeps > 0 {
		args = append(args, "-N", strconv.Itoa(c.NumSweeps))
	}

	return args, nil
}
