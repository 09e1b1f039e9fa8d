package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/towerhunt/tower-hunter/internal/alert"
	"github.com/towerhunt/tower-hunter/internal/detect"
	"github.com/towerhunt/tower-hunter/internal/geo"
	"github.com/towerhunt/tower-hunter/internal/scan"
	"github.com/towerhunt/tower-hunter/internal/sdr"
	"github.com/towerhunt/tower-hunter/internal/sdr/hackrf"
	"github.com/towerhunt/tower-hunter/internal/sdr/kal"
	"github.com/towerhunt/tower-hunter/internal/storage"
	"github.com/towerhunt/tower-hunter/internal/telemetry"
)

// Run wires the scanner daemon together and blocks until the context is
// cancelled or a device fails fatally.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store := storage.New(config.Storage.DatabasePath)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing storage: %s", err.Error()))
		}
	}()

	alerts, cleanup, err := createAlerts(&config.Alerts, logger)
	if err != nil {
		return fmt.Errorf("creating alert system: %w", err)
	}
	defer cleanup()

	devices, err := createDevices(config.Devices, logger)
	if err != nil {
		return fmt.Errorf("creating devices: %w", err)
	}

	options := []func(*Orchestrator){
		WithDetector(newDetector(&config.Detection, logger)),
		WithAnalyzer(detect.NewAnalyzer(thresholds(&config.Detection))),
	}
	if config.GSM != nil && config.GSM.Enabled {
		scanner, err := kal.New(config.GSM.Config, kal.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("creating kalibrate scanner: %w", err)
		}
		options = append(options, WithGSMScanner(scanner, time.Duration(config.GSM.Interval)))
	}
	if config.Position != nil {
		location, err := geo.New(config.Position.Latitude, config.Position.Longitude)
		if err != nil {
			return fmt.Errorf("invalid position: %w", err)
		}
		options = append(options, WithTelemetry(telemetry.NewStatic(location, config.Position.Heading)))
	}

	orchestrator := NewOrchestrator(store, alerts, logger, options...)
	for _, device := range devices {
		orchestrator.AddDevice(device)
	}

	return orchestrator.Run(ctx)
}

func createDevices(configs []DeviceConfig, logger *slog.Logger) ([]*sdr.Device, error) {
	var devices []*sdr.Device
	for _, deviceConfig := range configs {
		if !deviceConfig.Enabled {
			continue
		}

		handler, err := hackrf.New(deviceConfig.Config)
		if err != nil {
			return nil, fmt.Errorf("creating device %s: %w", deviceConfig.Name, err)
		}

		devices = append(devices, sdr.NewDevice(deviceConfig.Name, handler, sdr.WithLogger(logger)))
	}
	return devices, nil
}

func createAlerts(config *AlertsConfig, logger *slog.Logger) (*alert.System, func(), error) {
	handlers := []alert.Handler{alert.NewLogHandler(logger)}
	cleanup := func() {}

	if config.Directory != "" {
		fileHandler, err := alert.NewFileHandler(config.Directory)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, fileHandler)
	}

	if config.MQTT != nil {
		mqttHandler, err := alert.NewMQTTHandler(*config.MQTT, logger)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, mqttHandler)
		cleanup = mqttHandler.Close
	}

	return alert.NewSystem(logger, handlers...), cleanup, nil
}

func newDetector(config *DetectionConfig, logger *slog.Logger) *scan.Detector {
	var options []func(*scan.Detector)
	if config.MarginDB > 0 {
		options = append(options, scan.WithMargin(config.MarginDB))
	}
	if config.MinRunBins > 0 {
		options = append(options, scan.WithMinRunBins(config.MinRunBins))
	}
	options = append(options, scan.WithLogger(logger))

	return scan.NewDetector(options...)
}

func thresholds(config *DetectionConfig) detect.Thresholds {
	if config.Thresholds != nil {
		return *config.Thresholds
	}
	return detect.DefaultThresholds()
}
