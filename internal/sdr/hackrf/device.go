package hackrf

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/towerhunt/tower-hunter/internal/sdr"
)

const (
	Runtime = "hackrf_sweep"
	Device  = "HackRF"
)

const sweepTimeLayout = "2006-01-02 15:04:05.000000"

type handler struct {
	binPath string
	args    []string
}

// New creates a sweep handler for `hackrf_sweep`.
func New(config *Config) (sdr.Handler, error) {
	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", Runtime, err)
	}

	args, err := config.Args()
	if err != nil {
		return nil, fmt.Errorf("building %s args: %w", Runtime, err)
	}

	return &handler{binPath, args}, nil
}

func (h handler) Cmd(ctx context.Context) *exec.Cmd {
	return exec.CommandContext(ctx, h.binPath, h.args...)
}

// Parse reads one `hackrf_sweep` CSV line:
// date, time, hz_low, hz_high, hz_bin_width, num_samples, dB, dB, ...
func (h handler) Parse(line string, deviceID string, results chan<- *sdr.SweepResult) error {
	fields := strings.Split(line, ",")
	if len(fields) < 7 {
		return fmt.Errorf("invalid hackrf_sweep output: not enough fields")
	}

	var err error

	result := sdr.SweepResult{
		Device:   Device,
		DeviceID: deviceID,
	}

	dateTime := strings.TrimSpace(fields[0]) + " " + strings.TrimSpace(fields[1])
	result.Timestamp, err = time.Parse(sweepTimeLayout, dateTime)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	result.StartFrequency, err = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return fmt.Errorf("invalid start frequency: %w", err)
	}

	result.EndFrequency, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return fmt.Errorf("invalid end frequency: %w", err)
	}

	result.BinWidth, err = strconv.ParseFloat(strings.TrimSpace(fields[4]), 64)
	if err != nil {
		return fmt.Errorf("invalid bin width: %w", err)
	}

	result.NumSamples, err = strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return fmt.Errorf("invalid number of samples: %w", err)
	}

	for i, field := range fields[6:] {
		reading := sdr.PowerReading{
			Frequency: result.StartFrequency + float64(i)*result.BinWidth + result.BinWidth/2,
		}

		if power, err := strconv.ParseFloat(strings.TrimSpace(field), 64); err == nil {
			reading.Power = power
			reading.IsValid = true
		}

		result.Readings = append(result.Readings, reading)
	}

	results <- &result
	return nil
}

func (h handler) Device() string {
	return Device
}
