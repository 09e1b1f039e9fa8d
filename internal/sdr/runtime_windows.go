//go:build windows

package sdr

import (
	"os"
	"os/exec"
	"path/filepath"
)

// pothosDir is where the PothosSDR bundle installs the HackRF tools.
const pothosDir = `C:\Program Files\PothosSDR\bin`

// FindRuntime resolves a capture tool binary, preferring the PothosSDR
// install location before falling back to PATH.
func FindRuntime(runtime string) (string, error) {
	candidate := filepath.Join(pothosDir, runtime+".exe")
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}

	return exec.LookPath(runtime)
}
