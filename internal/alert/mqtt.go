package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/towerhunt/tower-hunter/internal/detect"
)

const (
	// DefaultTopic is the MQTT topic alerts publish to.
	DefaultTopic = "towerhunt/alerts"

	connectTimeout = 60 * time.Second
	publishTimeout = 10 * time.Second
)

// MQTTConfig configures the MQTT alert channel.
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"clientId" json:"clientId"`
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
	Topic    string `yaml:"topic" json:"topic"`
}

// MQTTHandler publishes alerts to an MQTT broker so dashboards and
// automations can subscribe to them.
type MQTTHandler struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

type mqttAlert struct {
	Timestamp    time.Time `json:"timestamp"`
	ThreatLevel  string    `json:"threatLevel"`
	AnomalyType  string    `json:"anomalyType"`
	TowerID      string    `json:"towerId"`
	FrequencyMHz float64   `json:"frequencyMHz"`
	SignalDBm    float64   `json:"signalDBm"`
	Description  string    `json:"description"`
}

// NewMQTTHandler connects to the broker and returns a publishing
// handler.
func NewMQTTHandler(config MQTTConfig, logger *slog.Logger) (*MQTTHandler, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); !token.WaitTimeout(connectTimeout) || token.Error() != nil {
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connecting to broker %s: %w", config.Broker, err)
		}
		return nil, fmt.Errorf("connecting to broker %s: timed out", config.Broker)
	}

	topic := config.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	logger.Info("connected to MQTT broker",
		slog.String("broker", config.Broker),
		slog.String("topic", topic))

	return &MQTTHandler{
		client: client,
		topic:  topic,
		logger: logger,
	}, nil
}

func (h *MQTTHandler) Send(_ context.Context, anomaly detect.Anomaly) error {
	payload, err := json.Marshal(mqttAlert{
		Timestamp:    anomaly.Timestamp,
		ThreatLevel:  string(anomaly.Level),
		AnomalyType:  string(anomaly.Type),
		TowerID:      anomaly.Tower.UniqueID(),
		FrequencyMHz: anomaly.Tower.FrequencyMHz,
		SignalDBm:    anomaly.Tower.SignalDBm,
		Description:  anomaly.Description,
	})
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	token := h.client.Publish(h.topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to %s: timed out", h.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", h.topic, err)
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight publishes a
// short grace period.
func (h *MQTTHandler) Close() {
	h.client.Disconnect(250)
}
