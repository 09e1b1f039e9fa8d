package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/towerhunt/tower-hunter/internal/bearing"
	"github.com/towerhunt/tower-hunter/internal/capture"
)

// Run performs one direction-finding estimate and prints the result.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	streamA, streamB, err := loadStreams(ctx, config, logger)
	if err != nil {
		return err
	}

	spacing := config.SpacingM
	if spacing <= 0 {
		spacing = bearing.OptimalSpacing(config.FrequencyHz)
		logger.Info("using half-wavelength antenna spacing",
			slog.Float64("spacingM", spacing))
	}

	signalDBm := capture.SignalStrength(streamA)

	estimator := bearing.NewEstimator(bearing.WithCalibrationOffset(config.CalibrationOffset))
	result, err := estimator.Estimate(streamA, streamB, config.FrequencyHz, signalDBm, spacing)
	if err != nil {
		return fmt.Errorf("estimating bearing: %w", err)
	}

	compassDeg, cardinal := bearing.ToCompass(result.BearingDegrees, config.ArrayOrientation)

	fract, suffix := humanize.ComputeSI(config.FrequencyHz)

	fmt.Fprintf(os.Stdout, "Frequency:        %.2f %sHz\n", fract, suffix)
	fmt.Fprintf(os.Stdout, "Samples:          %s per antenna\n", humanize.Comma(int64(len(streamA))))
	fmt.Fprintf(os.Stdout, "Signal strength:  %.1f dBm\n", result.SignalStrengthDBm)
	fmt.Fprintf(os.Stdout, "Phase difference: %.4f rad\n", result.PhaseDifferenceRad)
	fmt.Fprintf(os.Stdout, "Relative bearing: %.1f deg\n", result.BearingDegrees)
	fmt.Fprintf(os.Stdout, "Compass bearing:  %.1f deg (%s)\n", compassDeg, cardinal)
	fmt.Fprintf(os.Stdout, "Confidence:       %s\n", result.Confidence)
	if result.AmbiguityWarning {
		fmt.Fprintln(os.Stdout, "Note: two-antenna arrays cannot tell front from back; the mirrored bearing is equally possible.")
	}

	return nil
}

func loadStreams(ctx context.Context, config *Config, logger *slog.Logger) ([]complex128, []complex128, error) {
	if !config.Live {
		streamA, err := readIQFile(config.FileA)
		if err != nil {
			return nil, nil, err
		}
		streamB, err := readIQFile(config.FileB)
		if err != nil {
			return nil, nil, err
		}
		return streamA, streamB, nil
	}

	receiver, err := capture.NewReceiver(capture.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("creating receiver: %w", err)
	}

	pair, err := receiver.CapturePair(ctx, config.FrequencyHz, config.NumSamples, config.DeviceA, config.DeviceB)
	if err != nil {
		return nil, nil, fmt.Errorf("capturing sample pair: %w", err)
	}

	logger.Info("captured sample pair", slog.Duration("skew", pair.Skew))
	return pair.StreamA, pair.StreamB, nil
}

func readIQFile(path string) ([]complex128, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	samples, err := capture.DecodeIQ(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return samples, nil
}
