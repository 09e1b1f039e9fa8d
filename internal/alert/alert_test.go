package alert

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/towerhunt/tower-hunter/internal/cell"
	"github.com/towerhunt/tower-hunter/internal/detect"
)

func testAnomaly() detect.Anomaly {
	return detect.Anomaly{
		Type:  detect.AnomalySignalSpike,
		Level: detect.ThreatHigh,
		Tower: cell.Tower{
			MCC: "310", MNC: "260", LAC: "1234", CellID: "5678",
			FrequencyMHz: 869.5,
			SignalDBm:    -25,
		},
		Description: "abnormally strong signal: -25.0 dBm",
		Timestamp:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}
}

type recordingHandler struct {
	sent []detect.Anomaly
	err  error
}

func (h *recordingHandler) Send(_ context.Context, anomaly detect.Anomaly) error {
	h.sent = append(h.sent, anomaly)
	return h.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSystemNotify(t *testing.T) {
	good := &recordingHandler{}
	bad := &recordingHandler{err: errors.New("broker down")}
	system := NewSystem(discardLogger(), good, bad)

	err := system.Notify(context.Background(), testAnomaly())
	if err == nil {
		t.Error("Notify() should surface handler failures")
	}

	// The failing handler must not block the healthy one.
	if len(good.sent) != 1 || len(bad.sent) != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", len(good.sent), len(bad.sent))
	}
}

func TestSystemNotifyAll(t *testing.T) {
	h := &recordingHandler{}
	system := NewSystem(discardLogger(), h)

	anomalies := []detect.Anomaly{testAnomaly(), testAnomaly()}
	if got := system.NotifyAll(context.Background(), anomalies); got != 2 {
		t.Errorf("NotifyAll() = %d, want 2", got)
	}
	if len(h.sent) != 2 {
		t.Errorf("handler saw %d anomalies, want 2", len(h.sent))
	}
}

func TestFileHandler(t *testing.T) {
	dir := t.TempDir()
	h, err := NewFileHandler(dir)
	if err != nil {
		t.Fatalf("NewFileHandler() error: %v", err)
	}

	anomaly := testAnomaly()
	for i := 0; i < 2; i++ {
		if err := h.Send(context.Background(), anomaly); err != nil {
			t.Fatalf("Send() error: %v", err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "alerts_20250115.jsonl"))
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry fileAlert
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if entry.TowerID != "310-260-1234-5678" {
			t.Errorf("TowerID = %q", entry.TowerID)
		}
		if entry.ThreatLevel != "high" {
			t.Errorf("ThreatLevel = %q, want high", entry.ThreatLevel)
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("journal has %d lines, want 2", lines)
	}
}

func TestLogHandler(t *testing.T) {
	// Log delivery never fails.
	h := NewLogHandler(discardLogger())
	if err := h.Send(context.Background(), testAnomaly()); err != nil {
		t.Errorf("Send() error: %v", err)
	}
}
