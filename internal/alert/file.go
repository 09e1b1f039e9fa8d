package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/towerhunt/tower-hunter/internal/detect"
)

// FileHandler appends alerts as JSON lines to a per-day journal file in
// the configured directory. Append-only lines survive a crash
// mid-write, unlike rewriting one JSON document per alert.
type FileHandler struct {
	dir string

	mu sync.Mutex
}

type fileAlert struct {
	Timestamp   time.Time `json:"timestamp"`
	ThreatLevel string    `json:"threatLevel"`
	AnomalyType string    `json:"anomalyType"`
	TowerID     string    `json:"towerId"`
	Description string    `json:"description"`
}

func NewFileHandler(dir string) (*FileHandler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating alert directory: %w", err)
	}
	return &FileHandler{dir: dir}, nil
}

func (h *FileHandler) Send(_ context.Context, anomaly detect.Anomaly) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	path := filepath.Join(h.dir, fmt.Sprintf("alerts_%s.jsonl", anomaly.Timestamp.Format("20060102")))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert journal: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(fileAlert{
		Timestamp:   anomaly.Timestamp,
		ThreatLevel: string(anomaly.Level),
		AnomalyType: string(anomaly.Type),
		TowerID:     anomaly.Tower.UniqueID(),
		Description: anomaly.Description,
	})
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing alert: %w", err)
	}
	return nil
}
