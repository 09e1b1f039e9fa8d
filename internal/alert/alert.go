// Package alert fans detected anomalies out to operator channels: the
// structured log, an append-only alert journal, and an MQTT broker.
package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/towerhunt/tower-hunter/internal/detect"
)

// Handler delivers one anomaly to a single channel.
type Handler interface {
	Send(ctx context.Context, anomaly detect.Anomaly) error
}

// System fans anomalies out to every registered handler. Delivery
// failures are collected, not short-circuited: one dead channel must not
// silence the others.
type System struct {
	handlers []Handler
	logger   *slog.Logger
}

func NewSystem(logger *slog.Logger, handlers ...Handler) *System {
	return &System{
		handlers: handlers,
		logger:   logger,
	}
}

// Notify delivers one anomaly to all handlers.
func (s *System) Notify(ctx context.Context, anomaly detect.Anomaly) error {
	var errs []error
	for _, handler := range s.handlers {
		if err := handler.Send(ctx, anomaly); err != nil {
			s.logger.Error("alert delivery failed",
				slog.String("anomaly", string(anomaly.Type)),
				slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifyAll delivers a batch of anomalies and returns the number
// delivered to every handler without error.
func (s *System) NotifyAll(ctx context.Context, anomalies []detect.Anomaly) int {
	delivered := 0
	for _, anomaly := range anomalies {
		if err := s.Notify(ctx, anomaly); err == nil {
			delivered++
		}
	}
	return delivered
}

// LogHandler writes anomalies to the structured log, mapping threat
// levels onto log levels so existing log routing applies.
type LogHandler struct {
	logger *slog.Logger
}

func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Send(ctx context.Context, anomaly detect.Anomaly) error {
	level := slog.LevelInfo
	switch anomaly.Level {
	case detect.ThreatMedium:
		level = slog.LevelWarn
	case detect.ThreatHigh, detect.ThreatCritical:
		level = slog.LevelError
	}

	h.logger.Log(ctx, level, "anomaly detected",
		slog.String("type", string(anomaly.Type)),
		slog.String("threat", string(anomaly.Level)),
		slog.String("tower", anomaly.Tower.UniqueID()),
		slog.String("description", anomaly.Description))
	return nil
}
