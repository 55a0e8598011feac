// Package device talks to the relay hardware through the piTest control
// binary. Return-value polarity is fixed by the hardware driver: 0 = ON,
// 1 = OFF.
package device

import (
	"bufio"
	"context"
	"fmt"
	"math/rand/v2"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

type Status string

const (
	StatusOn      Status = "ON"
	StatusOff     Status = "OFF"
	StatusError   Status = "ERROR"
	StatusUnknown Status = "UNKNOWN"
)

type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
)

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "on":
		return ActionOn, nil
	case "off":
		return ActionOff, nil
	default:
		return "", types.NewValidationError("action", "invalid action, must be on or off")
	}
}

// StateReading is a live status read; nothing here is persisted.
type StateReading struct {
	Status    Status `json:"status"`
	Value     int    `json:"value"`
	Simulated bool   `json:"simulated"`
	Message   string `json:"message,omitempty"`
}

type ToggleResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Output    string `json:"output,omitempty"`
	Simulated bool   `json:"simulated"`
}

// Driver reads and sets binary relay state.
type Driver interface {
	ReadStatus(ctx context.Context, deviceID string) (StateReading, error)
	SetState(ctx context.Context, deviceID string, action Action) (ToggleResult, error)
	Devices() []string
}

// PiTestDriver shells out to piTest. When the binary is not resolvable on
// PATH every call degrades to simulated mode: random status reads and
// always-successful writes. That is a development stand-in for machines
// without the hardware, not a production fallback.
type PiTestDriver struct {
	binary  string
	timeout time.Duration
	relays  map[string]bool
	order   []string
	logger  *zap.Logger

	lookPath func(string) (string, error) // swapped in tests
}

func NewPiTestDriver(cfg config.DeviceConfig, logger *zap.Logger) *PiTestDriver {
	relays := make(map[string]bool, len(cfg.Relays))
	for _, id := range cfg.Relays {
		relays[id] = true
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PiTestDriver{
		binary:   cfg.Binary,
		timeout:  timeout,
		relays:   relays,
		order:    append([]string(nil), cfg.Relays...),
		logger:   logger,
		lookPath: exec.LookPath,
	}
}

func (d *PiTestDriver) Devices() []string {
	return append([]string(nil), d.order...)
}

func (d *PiTestDriver) available() bool {
	_, err := d.lookPath(d.binary)
	return err == nil
}

func (d *PiTestDriver) ReadStatus(ctx context.Context, deviceID string) (StateReading, error) {
	if !d.relays[deviceID] {
		err := types.NewValidationError("device", "invalid device id")
		return StateReading{Status: StatusError, Message: err.Error()}, err
	}

	if !d.available() {
		return d.simulateStatus(deviceID), nil
	}

	// Single-shot read first; it exits on its own when the hardware is
	// healthy.
	cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := exec.CommandContext(cmdCtx, d.binary, "-1", "-r", deviceID).Output()
	if err != nil {
		// piTest can hang in continuous-read mode; fall back to the
		// process-group strategy before giving up.
		return d.readWithProcessControl(deviceID)
	}

	firstLine := firstLineOf(string(out))
	value, ok := parseSingleShotValue(firstLine)
	if !ok {
		d.logger.Warn("unparsable piTest output",
			zap.String("device_id", deviceID),
			zap.String("output", firstLine))
		return StateReading{Status: StatusUnknown, Message: firstLine}, nil
	}

	return StateReading{Status: statusFromValue(value), Value: value}, nil
}

// readWithProcessControl spawns piTest in continuous mode inside its own
// process group, reads exactly one line and SIGTERMs the whole group. The
// group kill matters: plain Process.Kill leaves the child's children behind.
func (d *PiTestDriver) readWithProcessControl(deviceID string) (StateReading, error) {
	cmd := exec.Command(d.binary, "-r", deviceID)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return d.errorReading(deviceID, "failed to open stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return d.errorReading(deviceID, "failed to start command", err)
	}

	lineCh := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		if scanner.Scan() {
			lineCh <- scanner.Text()
		}
		close(lineCh)
	}()

	var line string
	var got bool
	select {
	case line, got = <-lineCh:
	case <-time.After(d.timeout):
	}

	// Terminate the whole group, then reap.
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	_ = cmd.Wait()

	if !got {
		return d.errorReading(deviceID, "no output before timeout", nil)
	}

	value, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return StateReading{Status: StatusUnknown, Message: line}, nil
	}
	return StateReading{Status: statusFromValue(value), Value: value}, nil
}

func (d *PiTestDriver) SetState(ctx context.Context, deviceID string, action Action) (ToggleResult, error) {
	if !d.relays[deviceID] {
		err := types.NewValidationError("device", "invalid device id")
		return ToggleResult{Success: false, Message: err.Error()}, err
	}

	if !d.available() {
		d.logger.Info("simulated relay toggle",
			zap.String("device_id", deviceID),
			zap.String("action", string(action)))
		return ToggleResult{
			Success:   true,
			Message:   fmt.Sprintf("%s turned %s successfully (simulated)", deviceID, action),
			Output:    "simulated command executed",
			Simulated: true,
		}, nil
	}

	// Hardware polarity: write 0 for ON, 1 for OFF.
	value := "1"
	if action == ActionOn {
		value = "0"
	}

	cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, d.binary, "-w", fmt.Sprintf("%s,%s", deviceID, value))
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := fmt.Sprintf("command failed: %v", err)
		if cmdCtx.Err() == context.DeadlineExceeded {
			msg = fmt.Sprintf("command timed out after %s", d.timeout)
		}
		d.logger.Error("relay toggle failed",
			zap.String("device_id", deviceID),
			zap.String("action", string(action)),
			zap.Error(err))
		devErr := &types.DeviceError{DeviceID: deviceID, Message: msg, Err: err}
		return ToggleResult{Success: false, Message: msg, Output: string(out)}, devErr
	}

	d.logger.Info("relay toggled",
		zap.String("device_id", deviceID),
		zap.String("action", string(action)))
	return ToggleResult{
		Success: true,
		Message: fmt.Sprintf("%s turned %s successfully", deviceID, action),
		Output:  strings.TrimSpace(string(out)),
	}, nil
}

func (d *PiTestDriver) simulateStatus(deviceID string) StateReading {
	value := rand.IntN(2)
	d.logger.Debug("simulated relay status",
		zap.String("device_id", deviceID),
		zap.Int("value", value))
	return StateReading{Status: statusFromValue(value), Value: value, Simulated: true}
}

func (d *PiTestDriver) errorReading(deviceID, msg string, err error) (StateReading, error) {
	devErr := &types.DeviceError{DeviceID: deviceID, Message: msg, Err: err}
	d.logger.Error("relay status read failed",
		zap.String("device_id", deviceID),
		zap.Error(devErr))
	return StateReading{Status: StatusError, Message: devErr.Error()}, devErr
}

func statusFromValue(value int) Status {
	if value == 0 {
		return StatusOn
	}
	return StatusOff
}

func firstLineOf(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// parseSingleShotValue extracts the numeric value from single-shot output of
// the form "Bit value: 0".
func parseSingleShotValue(line string) (int, bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return 0, false
	}
	value, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	if err != nil {
		return 0, false
	}
	return value, true
}
