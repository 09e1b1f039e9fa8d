package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/towerhunt/tower-hunter/internal/alert"
	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/detect"
	"github.com/towerhunt/tower-hunter/internal/scan"
	"github.com/towerhunt/tower-hunter/internal/sdr"
	"github.com/towerhunt/tower-hunter/internal/sdr/kal"
	"github.com/towerhunt/tower-hunter/internal/storage"
	"github.com/towerhunt/tower-hunter/internal/telemetry"
)

// DefaultGSMScanInterval paces kalibrate band scans between sweeps.
const DefaultGSMScanInterval = 5 * time.Minute

// WithTelemetry sets the position provider used to geotag measurements.
func WithTelemetry(provider telemetry.Provider) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.telemetry = provider
	}
}

// WithDetector overrides the sweep peak detector.
func WithDetector(detector *scan.Detector) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.detector = detector
	}
}

// WithAnalyzer overrides the anomaly analyzer.
func WithAnalyzer(analyzer *detect.Analyzer) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.analyzer = analyzer
	}
}

// WithGSMScanner adds periodic kalibrate band scans alongside the
// broadband sweeps. An interval of zero uses the default.
func WithGSMScanner(scanner *kal.Scanner, interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.gsm = scanner
		o.gsmInterval = interval
		if o.gsmInterval <= 0 {
			o.gsmInterval = DefaultGSMScanInterval
		}
	}
}

// Orchestrator drives the scan loop: sweeps from every device, plus
// periodic kalibrate band scans when configured, feed one pipeline of
// tower recording, anomaly analysis, and alert dispatch.
type Orchestrator struct {
	devices []*sdr.Device

	store     *storage.Store
	alerts    *alert.System
	detector  *scan.Detector
	analyzer  *detect.Analyzer
	telemetry telemetry.Provider
	logger    *slog.Logger

	gsm         *kal.Scanner
	gsmInterval time.Duration

	snapshot detect.Snapshot

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(store *storage.Store, alerts *alert.System, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		store:    store,
		alerts:   alerts,
		detector: scan.NewDetector(scan.WithLogger(logger)),
		analyzer: detect.NewAnalyzer(detect.DefaultThresholds()),
		logger:   logger,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// AddDevice registers a sweep device.
func (o *Orchestrator) AddDevice(device *sdr.Device) {
	o.devices = append(o.devices, device)
}

// Run begins sweeping on all devices and processes results until the
// context is cancelled or every device stops.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.devices) == 0 {
		return fmt.Errorf("no devices to sweep")
	}

	if err := o.loadSnapshot(ctx); err != nil {
		return err
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	results := make(chan *sdr.SweepResult, len(o.devices))
	gsmTowers := make(chan []cell.Tower, 1)

	processed := make(chan struct{})
	go func() {
		defer close(processed)
		sweeps, scans := results, gsmTowers
		for sweeps != nil || scans != nil {
			select {
			case result, ok := <-sweeps:
				if !ok {
					sweeps = nil
					continue
				}
				o.process(ctx, o.detector.Detect(result))
			case towers, ok := <-scans:
				if !ok {
					scans = nil
					continue
				}
				o.process(ctx, towers)
			}
		}
	}()

	for _, device := range o.devices {
		o.wg.Add(1)
		go o.sweep(ctx, device, results)
	}

	if o.gsm != nil {
		o.wg.Add(1)
		go o.scanGSM(ctx, gsmTowers)
	}

	o.wg.Wait()
	close(results)
	close(gsmTowers)
	<-processed

	return nil
}

// loadSnapshot seeds the analyzer's view of known towers from storage.
func (o *Orchestrator) loadSnapshot(ctx context.Context) error {
	records, err := o.store.Towers(ctx)
	if err != nil {
		return fmt.Errorf("loading known towers: %w", err)
	}

	known := make(map[string]storage.TowerRecord, len(records))
	for _, record := range records {
		known[record.UniqueID] = record
	}

	o.snapshot = detect.Snapshot{Known: known, Previous: make(map[string]cell.Tower)}
	return nil
}

func (o *Orchestrator) sweep(ctx context.Context, device *sdr.Device, results chan<- *sdr.SweepResult) {
	defer o.wg.Done()

	done, err := device.BeginSweep(ctx, results)
	if err != nil {
		o.logger.Error(err.Error())
		o.cancel()
		return
	}

	if err := <-done; err != nil {
		o.logger.Error(err.Error())
		o.cancel()
	}
}

// scanGSM runs kalibrate band scans on a timer, feeding the detected
// channels into the same processing pipeline as the sweep peaks.
func (o *Orchestrator) scanGSM(ctx context.Context, out chan<- []cell.Tower) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.gsmInterval)
	defer ticker.Stop()

	for {
		towers, err := o.gsm.Scan(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			o.logger.Warn(fmt.Sprintf("kalibrate scan failed: %s", err.Error()),
				slog.String("band", o.gsm.Band()))
		case len(towers) > 0:
			select {
			case out <- towers:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// process runs one batch of tower observations through the recording,
// analysis, and alerting pipeline.
func (o *Orchestrator) process(ctx context.Context, towers []cell.Tower) {
	if len(towers) == 0 {
		return
	}

	var position *telemetry.Position
	if o.telemetry != nil {
		position = o.telemetry.Get()
	}

	for _, tower := range towers {
		record, err := o.store.RecordTower(ctx, tower)
		if err != nil {
			o.logger.Error(fmt.Sprintf("recording tower: %s", err.Error()),
				slog.String("tower", tower.UniqueID()))
			continue
		}
		o.snapshot.Known[record.UniqueID] = *record

		if position != nil {
			err = o.store.RecordMeasurement(ctx, record.UniqueID, position.Location, tower.SignalDBm, "")
			if err != nil {
				o.logger.Error(fmt.Sprintf("recording measurement: %s", err.Error()),
					slog.String("tower", record.UniqueID))
			}
		}
	}

	anomalies, next := o.analyzer.Analyze(o.snapshot, towers)
	o.snapshot = next

	for _, anomaly := range anomalies {
		if !anomaly.Level.Actionable() {
			continue
		}
		err := o.store.MarkSuspicious(ctx, anomaly.Tower.UniqueID(), true, anomaly.Description)
		if err != nil {
			o.logger.Error(fmt.Sprintf("marking tower suspicious: %s", err.Error()),
				slog.String("tower", anomaly.Tower.UniqueID()))
		}
	}

	if len(anomalies) > 0 {
		o.alerts.NotifyAll(ctx, anomalies)
	}
}
