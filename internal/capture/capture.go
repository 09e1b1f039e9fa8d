// Package capture acquires raw IQ sample streams from HackRF receivers
// via hackrf_transfer, for direction finding.
//
// The two channels of a pair are captured sequentially, not phase-locked:
// the pair is only usable for emitters whose signal is stationary across
// the capture interval. Callers bound that interval with MaxCaptureSkew.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/towerhunt/tower-hunter/internal/sdr"
)

const Runtime = "hackrf_transfer"

// DefaultSampleRate is the capture sample rate in samples per second.
const DefaultSampleRate = 2_000_000

// DefaultMaxCaptureSkew bounds the wall-clock gap between the two
// captures of a pair before the pair is rejected as unusable for phase
// comparison.
const DefaultMaxCaptureSkew = 5 * time.Second

// ErrNoSamples is returned when a capture produced no data.
var ErrNoSamples = errors.New("capture: no samples read")

// Receiver captures IQ samples from HackRF boards.
type Receiver struct {
	binPath        string
	sampleRate     int
	maxCaptureSkew time.Duration
	timeout        time.Duration
	logger         *slog.Logger
}

// WithSampleRate overrides the capture sample rate.
func WithSampleRate(rate int) func(*Receiver) {
	return func(r *Receiver) {
		r.sampleRate = rate
	}
}

// WithMaxCaptureSkew overrides the allowed gap between the two captures
// of a pair.
func WithMaxCaptureSkew(skew time.Duration) func(*Receiver) {
	return func(r *Receiver) {
		r.maxCaptureSkew = skew
	}
}

// WithLogger sets the receiver logger.
func WithLogger(logger *slog.Logger) func(*Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("runtime", Runtime))
	}
}

// NewReceiver locates hackrf_transfer and returns a Receiver.
func NewReceiver(options ...func(*Receiver)) (*Receiver, error) {
	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", Runtime, err)
	}

	r := &Receiver{
		binPath:        binPath,
		sampleRate:     DefaultSampleRate,
		maxCaptureSkew: DefaultMaxCaptureSkew,
		timeout:        30 * time.Second,
		logger:         slog.Default(),
	}
	for _, option := range options {
		option(r)
	}
	return r, nil
}

// Pair is two IQ streams captured back to back from two devices tuned to
// the same frequency, with the wall-clock skew between them.
type Pair struct {
	StreamA []complex128
	StreamB []complex128
	Skew    time.Duration
}

// CapturePair captures numSamples IQ samples from each of the two device
// indexes sequentially. It fails when the gap between captures exceeds
// the receiver's skew budget, since the phase comparison downstream would
// be meaningless.
func (r *Receiver) CapturePair(ctx context.Context, frequencyHz float64, numSamples, deviceA, deviceB int) (*Pair, error) {
	startA := time.Now()
	streamA, err := r.Capture(ctx, frequencyHz, numSamples, deviceA)
	if err != nil {
		return nil, fmt.Errorf("capturing from device %d: %w", deviceA, err)
	}

	startB := time.Now()
	streamB, err := r.Capture(ctx, frequencyHz, numSamples, deviceB)
	if err != nil {
		return nil, fmt.Errorf("capturing from device %d: %w", deviceB, err)
	}

	skew := startB.Sub(startA)
	if skew > r.maxCaptureSkew {
		return nil, fmt.Errorf("capture: %s skew between channels exceeds %s budget", skew, r.maxCaptureSkew)
	}

	return &Pair{StreamA: streamA, StreamB: streamB, Skew: skew}, nil
}

// Capture records numSamples IQ samples from one device into a temporary
// file and decodes them.
func (r *Receiver) Capture(ctx context.Context, frequencyHz float64, numSamples, deviceIndex int) ([]complex128, error) {
	tmp, err := os.CreateTemp("", "iq-*.bin")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{
		"-r", tmpPath,
		"-f", strconv.FormatInt(int64(frequencyHz), 10),
		"-s", strconv.Itoa(r.sampleRate),
		"-n", strconv.Itoa(numSamples),
		"-d", strconv.Itoa(deviceIndex),
	}

	r.logger.Debug("starting IQ capture",
		slog.Int("device", deviceIndex),
		slog.Float64("frequencyHz", frequencyHz),
		slog.Int("numSamples", numSamples))

	cmd := exec.CommandContext(ctx, r.binPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", Runtime, err, out)
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}

	return DecodeIQ(raw)
}

// DecodeIQ converts raw hackrf_transfer output, interleaved unsigned
// 8-bit I/Q bytes centered at 127.5, into complex samples normalized to
// roughly [-1, 1].
func DecodeIQ(raw []byte) ([]complex128, error) {
	if len(raw) < 2 {
		return nil, ErrNoSamples
	}

	n := len(raw) / 2
	samples := make([]complex128, n)
	for i := 0; i < n; i++ {
		re := (float64(raw[2*i]) - 127.5) / 127.5
		im := (float64(raw[2*i+1]) - 127.5) / 127.5
		samples[i] = complex(re, im)
	}
	return samples, nil
}

// SignalStrength estimates received power from IQ samples in dBm. The
// value is relative to full scale with a fixed offset, not a calibrated
// reading; empty input maps to the -100 dBm floor.
func SignalStrength(samples []complex128) float64 {
	if len(samples) == 0 {
		return -100.0
	}

	var power float64
	for _, s := range samples {
		re, im := real(s), imag(s)
		power += re*re + im*im
	}
	power /= float64(len(samples))

	if power <= 0 {
		return -100.0
	}

	// Full-scale relative dB with a rough front-end offset.
	return 10*math.Log10(power) - 30
}
