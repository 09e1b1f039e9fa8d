//go:build linux || darwin

package sdr

import "os/exec"

// FindRuntime resolves a capture tool binary on PATH.
func FindRuntime(runtime string) (string, error) {
	return exec.LookPath(runtime)
}
