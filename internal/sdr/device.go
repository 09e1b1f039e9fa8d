package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

// ParseErrorsThreshold is the default number of consecutive parse errors
// tolerated before a sweep is aborted.
const ParseErrorsThreshold = 5

var (
	// ErrTooManyParseErrors is returned when consecutive parse errors
	// exceed the threshold.
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned on stdout/stderr read failures.
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler adapts one capture tool: it builds the command to run and
// parses each stdout line into sweep results.
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string, deviceID string, results chan<- *SweepResult) error
	Device() string
}

// WithLogger sets the logger for the device.
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// WithParseErrorsThreshold overrides the consecutive parse error limit.
func WithParseErrorsThreshold(threshold uint8) func(d *Device) {
	return func(d *Device) {
		d.parseErrorsThreshold = threshold
	}
}

// Device drives one capture subprocess and streams its parsed output.
type Device struct {
	deviceID string
	handler  Handler

	isSweeping atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewDevice creates a Device with a discard logger unless overridden.
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	d := Device{
		deviceID:             deviceID,
		handler:              h,
		logger:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// BeginSweep starts the capture tool and sends parsed sweep results to
// the results channel. The returned channel closes when the sweep stops,
// carrying the terminal error if any.
func (d *Device) BeginSweep(ctx context.Context, results chan<- *SweepResult) (<-chan error, error) {
	if d.isSweeping.Load() {
		return nil, fmt.Errorf("device is already sweeping")
	}

	d.isSweeping.Store(true)

	ctx, d.cancel = context.WithCancel(ctx)
	cmd := d.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		d.isSweeping.Store(false)
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		d.isSweeping.Store(false)
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		d.isSweeping.Store(false)
		return nil, fmt.Errorf("starting %s: %w", d.handler.Device(), err)
	}

	sweepStopped := make(chan error)

	d.wg.Add(1)
	go func() {
		defer close(sweepStopped)

		d.logger.Info("starting sweep")

		done := make(chan error, 3) // stdout, stderr and wait goroutines

		go d.handleStdout(stdout, results, done)
		go d.handleStderr(stderr, done)
		go d.handleCmdWait(cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				d.cancel()
				d.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		d.logger.Info("sweep stopped")

		d.isSweeping.Store(false)
		d.wg.Done()

		if len(errs) > 0 {
			sweepStopped <- errors.Join(errs...)
		}
	}()

	return sweepStopped, nil
}

// Stop cancels a running sweep and waits for it to wind down. Safe to
// call when already stopped.
func (d *Device) Stop() {
	if !d.isSweeping.Load() {
		return
	}

	d.cancel()
	d.wg.Wait()
	d.isSweeping.Store(false)
}

// IsSweeping reports whether a sweep is in progress.
func (d *Device) IsSweeping() bool {
	return d.isSweeping.Load()
}

func (d *Device) handleStdout(stdout io.Reader, results chan<- *SweepResult, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := d.handler.Parse(line, d.deviceID, results); err != nil {
			parseErrors++
			d.logger.Warn(fmt.Sprintf("parsing sweep output: %s", err.Error()), slog.String("line", line))

			if parseErrors >= d.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

func (d *Device) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		d.logger.Warn(fmt.Sprintf("%s >> %s", d.handler.Device(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

func (d *Device) handleCmdWait(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		done <- fmt.Errorf("capture tool exited: %w", err)
		return
	}

	done <- nil
}
