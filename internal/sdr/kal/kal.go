// Package kal detects GSM carriers with kalibrate-hackrf (`kal`).
// Unlike the broadband sweep pipeline, kalibrate scans one GSM band for
// base station channels, so its detections carry real ARFCN identity.
package kal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/sdr"
)

const Runtime = "kal"

// DefaultScanTimeout bounds one kalibrate band scan. A full GSM 850 scan
// takes around 40 seconds on a HackRF.
const DefaultScanTimeout = time.Minute

// kalBands maps band plan codes onto the band names kalibrate accepts.
var kalBands = map[string]string{
	"GSM_850":  "GSM850",
	"GSM_1900": "PCS",
}

// Config configures a `kal` band scan.
type Config struct {
	// Band is the band plan code to scan, GSM_850 or GSM_1900.
	Band string `yaml:"band" json:"band"`

	// DeviceIndex selects the HackRF when several are attached.
	DeviceIndex int `yaml:"deviceIndex" json:"deviceIndex"`

	// Gain is the LNA gain in dB; 0 uses the tool default.
	Gain int `yaml:"gain" json:"gain"`
}

func (c *Config) Validate() error {
	if _, ok := kalBands[c.Band]; !ok {
		return fmt.Errorf("kal.Config: unsupported band: %q", c.Band)
	}

	if c.DeviceIndex < 0 {
		return fmt.Errorf("kal.Config: device index cannot be negative: %d given", c.DeviceIndex)
	}

	if c.Gain < 0 {
		return fmt.Errorf("kal.Config: gain cannot be negative: %d given", c.Gain)
	}

	return nil
}

// Args builds the `kal` command line arguments.
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{
		"-s", kalBands[c.Band],
		"-d", strconv.Itoa(c.DeviceIndex),
	}

	if c.Gain > 0 {
		args = append(args, "-g", strconv.Itoa(c.Gain))
	}

	return args, nil
}

// WithScanTimeout overrides the per-scan timeout.
func WithScanTimeout(timeout time.Duration) func(*Scanner) {
	return func(s *Scanner) {
		s.timeout = timeout
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) func(*Scanner) {
	return func(s *Scanner) {
		s.logger = logger.With(slog.String("runtime", Runtime))
	}
}

// Scanner runs kalibrate band scans and parses the detected channels
// into tower observations.
type Scanner struct {
	config  *Config
	binPath string
	timeout time.Duration
	logger  *slog.Logger
}

// New validates the configuration, locates the kal binary, and returns
// a Scanner.
func New(config *Config, options ...func(*Scanner)) (*Scanner, error) {
	if config == nil {
		return nil, errors.New("kal.New: config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", Runtime, err)
	}

	s := &Scanner{
		config:  config,
		binPath: binPath,
		timeout: DefaultScanTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(s)
	}

	return s, nil
}

// Band returns the band plan code this scanner covers.
func (s *Scanner) Band() string {
	return s.config.Band
}

// Scan runs one kalibrate scan of the configured band and returns the
// detected channels as tower observations.
func (s *Scanner) Scan(ctx context.Context) ([]cell.Tower, error) {
	args, err := s.config.Args()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.logger.Debug("starting kalibrate scan", slog.String("band", s.config.Band))

	out, err := exec.CommandContext(ctx, s.binPath, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", Runtime, err)
	}

	towers := Parse(string(out), s.config.Band)

	s.logger.Debug("kalibrate scan complete",
		slog.String("band", s.config.Band),
		slog.Int("channels", len(towers)))

	return towers, nil
}

// Kalibrate channel lines look like:
//
//	chan: 128 (869.2MHz +   34Hz)	power: 1234567.89
var channelPattern = regexp.MustCompile(`chan:\s*(\d+)\s*\((\d+\.?\d*)MHz[^)]*\)\s*power:\s*([\d.]+)`)

// Parse extracts tower observations from kalibrate output. Network
// identity beyond the channel number stays unknown: kalibrate finds
// base station carriers, it does not decode framing.
func Parse(output, bandCode string) []cell.Tower {
	technology := "GSM"
	if band, ok := cell.Bands[bandCode]; ok {
		technology = band.Technology
	}

	now := time.Now()

	var towers []cell.Tower
	for _, match := range channelPattern.FindAllStringSubmatch(output, -1) {
		arfcn, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		freqMHz, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		power, err := strconv.ParseFloat(match[3], 64)
		if err != nil {
			continue
		}

		tower := cell.Tower{
			MCC:          "unknown",
			MNC:          "unknown",
			LAC:          "unknown",
			CellID:       fmt.Sprintf("ARFCN-%d", arfcn),
			FrequencyMHz: freqMHz,
			SignalDBm:    approxDBm(power),
			Technology:   technology,
			Timestamp:    now,
			ARFCN:        arfcn,
		}
		tower.Carrier = cell.CarrierFor(tower.MCC, tower.MNC)
		towers = append(towers, tower)
	}

	return towers
}

// approxDBm maps kalibrate's raw power figure onto a rough dBm scale.
// The conversion is uncalibrated; values are only comparable between
// scans on the same hardware.
func approxDBm(power float64) float64 {
	return -100 + (power/1_000_000)*40
}
