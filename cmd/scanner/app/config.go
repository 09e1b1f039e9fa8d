package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/towerhunt/tower-hunter/internal/alert"
	"github.com/towerhunt/tower-hunter/internal/detect"
	"github.com/towerhunt/tower-hunter/internal/sdr/hackrf"
	"github.com/towerhunt/tower-hunter/internal/sdr/kal"
)

// Config is the scanner daemon configuration.
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Devices   []DeviceConfig  `yaml:"devices"`
	GSM       *GSMConfig      `yaml:"gsm"`
	Storage   StorageConfig   `yaml:"storage"`
	Position  *PositionConfig `yaml:"position"`
	Detection DetectionConfig `yaml:"detection"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// Settings holds global daemon settings.
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level maps the configured name onto a slog level, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DeviceConfig describes one HackRF sweep device.
type DeviceConfig struct {
	Name    string         `yaml:"name"`
	Enabled bool           `yaml:"enabled"`
	Config  *hackrf.Config `yaml:"config"`
}

// Duration parses human-readable durations such as "10m" from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: failed to parse duration: %s", err)
	}

	*d = Duration(parsed)
	return nil
}

func (d *Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(*d).String(), nil
}

// GSMConfig enables periodic kalibrate band scans, which resolve real
// GSM channel numbers the broadband sweep cannot see.
type GSMConfig struct {
	Enabled  bool        `yaml:"enabled"`
	Config   *kal.Config `yaml:"config"`
	Interval Duration    `yaml:"interval"`
}

// StorageConfig points at the tower database.
type StorageConfig struct {
	DatabasePath string `yaml:"databasePath"`
}

// PositionConfig is the scanner's surveyed location, used to geotag
// signal measurements for later trilateration. Heading is the antenna
// array orientation, when the deployment has one.
type PositionConfig struct {
	Latitude  float64  `yaml:"latitude"`
	Longitude float64  `yaml:"longitude"`
	Heading   *float64 `yaml:"heading"`
}

// DetectionConfig tunes sweep peak detection and anomaly analysis.
type DetectionConfig struct {
	MarginDB   float64            `yaml:"marginDB"`
	MinRunBins int                `yaml:"minRunBins"`
	Thresholds *detect.Thresholds `yaml:"thresholds"`
}

// AlertsConfig selects the alert channels.
type AlertsConfig struct {
	Directory string            `yaml:"directory"`
	MQTT      *alert.MQTTConfig `yaml:"mqtt"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	if c.Storage.DatabasePath == "" {
		return fmt.Errorf("config: storage.databasePath is required")
	}

	enabled := 0
	for i, device := range c.Devices {
		if !device.Enabled {
			continue
		}
		enabled++

		if device.Name == "" {
			return fmt.Errorf("config: devices[%d]: name is required", i)
		}
		if device.Config == nil {
			return fmt.Errorf("config: device %s: missing sweep config", device.Name)
		}
		if err := device.Config.Validate(); err != nil {
			return fmt.Errorf("config: device %s: %w", device.Name, err)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("config: no enabled devices")
	}

	if c.GSM != nil && c.GSM.Enabled {
		if c.GSM.Config == nil {
			return fmt.Errorf("config: gsm: missing kalibrate config")
		}
		if err := c.GSM.Config.Validate(); err != nil {
			return fmt.Errorf("config: gsm: %w", err)
		}
		if time.Duration(c.GSM.Interval) < 0 {
			return fmt.Errorf("config: gsm: interval cannot be negative")
		}
	}

	if c.Position != nil {
		if c.Position.Latitude < -90 || c.Position.Latitude > 90 ||
			c.Position.Longitude < -180 || c.Position.Longitude > 180 {
			return fmt.Errorf("config: position out of range")
		}
	}

	return nil
}
