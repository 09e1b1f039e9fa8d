package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/towerhunt/tower-hunter/internal/hunt"
	"github.com/towerhunt/tower-hunter/internal/locate"
	"github.com/towerhunt/tower-hunter/internal/render"
	"github.com/towerhunt/tower-hunter/internal/storage"
)

// Run estimates the tower position from stored measurements and prints a
// report, optionally rendering a plot.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := storage.New(config.DBPath)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %s", err.Error()))
		}
	}()

	if config.Plan {
		return runPlan(ctx, store, config)
	}

	record, err := store.Tower(ctx, config.TowerID)
	if err != nil {
		return fmt.Errorf("loading tower: %w", err)
	}

	measurements, err := store.Measurements(ctx, config.TowerID)
	if err != nil {
		return fmt.Errorf("loading measurements: %w", err)
	}

	model := locate.DistanceModel{
		ReferencePower:   config.ReferencePower,
		PathLossExponent: config.PathLossExponent,
	}
	trilaterator := locate.NewTrilaterator(model)

	fmt.Fprintf(os.Stdout, "Tower:        %s (%s", record.UniqueID, record.Technology)
	if record.Carrier != "" {
		fmt.Fprintf(os.Stdout, ", %s", record.Carrier)
	}
	fmt.Fprintln(os.Stdout, ")")
	fmt.Fprintf(os.Stdout, "Sightings:    %s, last %s\n",
		humanize.Comma(int64(record.TimesSeen)), humanize.Time(record.LastSeen))
	fmt.Fprintf(os.Stdout, "Measurements: %d\n", len(measurements))

	summary := trilaterator.Summarize(measurements)
	if summary.Count > 0 {
		fmt.Fprintf(os.Stdout, "Signal:       %.1f dBm avg (%.1f to %.1f)\n",
			summary.AvgSignalDBm, summary.MinSignalDBm, summary.MaxSignalDBm)
	}

	geometry := locate.AnalyzeGeometry(measurements)
	fmt.Fprintf(os.Stdout, "Geometry:     %s (%d%% confidence, %.0f m spread)\n",
		geometry.Quality, geometry.ConfidencePercent, geometry.SpreadMeters)
	fmt.Fprintf(os.Stdout, "              %s\n", geometry.Recommendation)

	result, err := trilaterator.Trilaterate(measurements)
	if err != nil {
		if errors.Is(err, locate.ErrInsufficientData) {
			return fmt.Errorf("cannot estimate position: %w", err)
		}
		return fmt.Errorf("estimating position: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Estimate:     %s\n", result.EstimatedLocation)
	fmt.Fprintf(os.Stdout, "Accuracy:     %s (mean residual)\n", humanizeMeters(result.AccuracyMeters))
	fmt.Fprintf(os.Stdout, "Map:          %s\n", result.EstimatedLocation.MapsURL())

	if config.PlotFile != "" {
		plotter, err := render.NewPlotter(render.Config{FontPath: config.FontPath})
		if err != nil {
			return fmt.Errorf("creating plotter: %w", err)
		}
		if err := plotter.WritePNG(config.PlotFile, measurements, result); err != nil {
			return fmt.Errorf("rendering plot: %w", err)
		}
		logger.Info("plot written", slog.String("path", config.PlotFile))
	}

	return nil
}

// runPlan prints a hunting plan: the target (explicit or the top
// threat), where to measure next, and what to do after.
func runPlan(ctx context.Context, store *storage.Store, config *Config) error {
	var target *storage.TowerRecord

	if config.TowerID != "" {
		record, err := store.Tower(ctx, config.TowerID)
		if err != nil {
			return fmt.Errorf("loading tower: %w", err)
		}
		target = record
	} else {
		records, err := store.Towers(ctx)
		if err != nil {
			return fmt.Errorf("loading towers: %w", err)
		}
		if target = hunt.TopThreat(records); target == nil {
			return errors.New("no towers recorded yet")
		}
	}

	measurements, err := store.Measurements(ctx, target.UniqueID)
	if err != nil {
		return fmt.Errorf("loading measurements: %w", err)
	}

	plan := hunt.NewPlan(*target, measurements, config.Position)

	fmt.Fprintf(os.Stdout, "Target:   %s (%s", plan.Target.UniqueID, plan.Target.Technology)
	if plan.Target.Carrier != "" {
		fmt.Fprintf(os.Stdout, ", %s", plan.Target.Carrier)
	}
	fmt.Fprintln(os.Stdout, ")")
	fmt.Fprintf(os.Stdout, "Threat:   %s\n", plan.Threat)

	if plan.EstimatedLocation != nil {
		fmt.Fprintf(os.Stdout, "Estimate: %s (rough centroid)\n", plan.EstimatedLocation)
		fmt.Fprintf(os.Stdout, "          %s\n", plan.EstimatedLocation.MapsURL())
	}

	fmt.Fprintln(os.Stdout, "Analysis:")
	for _, line := range plan.Analysis {
		fmt.Fprintf(os.Stdout, "  %s\n", line)
	}

	fmt.Fprintln(os.Stdout, "Scan points:")
	for _, point := range plan.ScanPoints {
		fmt.Fprintf(os.Stdout, "  %d. %s  %s\n", point.Priority, point.Location, point.Reason)
	}

	fmt.Fprintln(os.Stdout, "Next steps:")
	for i, step := range plan.NextSteps {
		fmt.Fprintf(os.Stdout, "  %d. %s\n", i+1, step)
	}

	return nil
}

func humanizeMeters(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.1f km", m/1000)
	}
	return fmt.Sprintf("%.0f m", m)
}
