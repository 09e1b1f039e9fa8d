package hackrf

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/towerhunt/tower-hunter/internal/sdr"
)

const InfoRuntime = "hackrf_info"

// Info describes one attached HackRF board as reported by hackrf_info.
type Info struct {
	Index           int
	Serial          string
	BoardID         string
	FirmwareVersion string
	PartID          string
	IsPortaPack     bool
}

func (i Info) String() string {
	pp := ""
	if i.IsPortaPack {
		pp = " [PortaPack]"
	}
	return fmt.Sprintf("HackRF #%d: %s%s", i.Index, i.Serial, pp)
}

var (
	serialPattern   = regexp.MustCompile(`Serial number:\s*(\S+)`)
	boardIDPattern  = regexp.MustCompile(`Board ID Number:\s*(\d+)`)
	firmwarePattern = regexp.MustCompile(`Firmware Version:\s*(.+)`)
	partIDPattern   = regexp.MustCompile(`Part ID Number:\s*(\S+)`)
)

const (
	maxProbeIndex          = 10
	maxConsecutiveFailures = 3
)

// Enumerate probes device indexes with hackrf_info and returns the
// unique boards found. Probing stops after several consecutive misses;
// indexes reporting an already-seen serial are skipped, since hackrf_info
// can surface the same board under multiple indexes.
func Enumerate(ctx context.Context) ([]Info, error) {
	binPath, err := sdr.FindRuntime(InfoRuntime)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", InfoRuntime, err)
	}

	var devices []Info
	seen := make(map[string]struct{})
	failures := 0

	for index := 0; index < maxProbeIndex; index++ {
		info, ok := probe(ctx, binPath, index)
		if !ok {
			failures++
			if failures >= maxConsecutiveFailures {
				break
			}
			continue
		}
		failures = 0

		if _, dup := seen[info.Serial]; dup {
			continue
		}
		seen[info.Serial] = struct{}{}
		devices = append(devices, info)
	}

	return devices, nil
}

// Available reports whether any HackRF board responds.
func Available(ctx context.Context) bool {
	binPath, err := sdr.FindRuntime(InfoRuntime)
	if err != nil {
		return false
	}

	return exec.CommandContext(ctx, binPath).Run() == nil
}

func probe(ctx context.Context, binPath string, index int) (Info, bool) {
	out, err := exec.CommandContext(ctx, binPath, "-d", fmt.Sprintf("%d", index)).Output()
	if err != nil {
		return Info{}, false
	}

	info, err := parseInfo(index, string(out))
	if err != nil {
		return Info{}, false
	}
	return info, true
}

// parseInfo extracts the board fields from hackrf_info output. A missing
// serial number means no board answered at that index.
func parseInfo(index int, output string) (Info, error) {
	serial := extract(serialPattern, output)
	if serial == "" {
		return Info{}, fmt.Errorf("no serial number in hackrf_info output")
	}

	lower := strings.ToLower(output)

	return Info{
		Index:           index,
		Serial:          serial,
		BoardID:         orUnknown(extract(boardIDPattern, output)),
		FirmwareVersion: orUnknown(strings.TrimSpace(extract(firmwarePattern, output))),
		PartID:          orUnknown(extract(partIDPattern, output)),
		IsPortaPack:     strings.Contains(lower, "portapack") || strings.Contains(lower, "mayhem"),
	}, nil
}

func extract(pattern *regexp.Regexp, text string) string {
	if m := pattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
