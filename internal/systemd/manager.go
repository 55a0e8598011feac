// Package systemd wraps systemctl and journalctl for a fixed whitelist of
// services. Anything outside the whitelist is rejected before a subprocess
// is ever spawned.
package systemd

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

var (
	unitNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+\.service$`)
	uptimePattern   = regexp.MustCompile(`Active: active \(running\) since (.+?);`)
	memoryPattern   = regexp.MustCompile(`Memory: (\S+)`)
)

type ServiceStatus struct {
	Name      string `json:"name"`
	Active    string `json:"active"`  // active, inactive, failed, unknown
	Enabled   string `json:"enabled"` // enabled, disabled, unknown
	Uptime    string `json:"uptime,omitempty"`
	Memory    string `json:"memory,omitempty"`
	LastLog   string `json:"last_log,omitempty"`
	Timestamp string `json:"timestamp"`
}

type Manager struct {
	allowed map[string]bool
	order   []string
	timeout time.Duration
	logger  *zap.Logger
}

func NewManager(cfg config.SystemdConfig, logger *zap.Logger) *Manager {
	allowed := make(map[string]bool, len(cfg.AllowedServices))
	for _, name := range cfg.AllowedServices {
		allowed[name] = true
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		allowed: allowed,
		order:   append([]string(nil), cfg.AllowedServices...),
		timeout: timeout,
		logger:  logger,
	}
}

func (m *Manager) Services() []string {
	return append([]string(nil), m.order...)
}

func (m *Manager) validate(name string) error {
	if !unitNamePattern.MatchString(name) {
		return types.NewValidationError("service", "invalid service name")
	}
	if !m.allowed[name] {
		return types.NewValidationError("service", "service is not managed by this panel")
	}
	return nil
}

func (m *Manager) run(ctx context.Context, name string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	out, err := exec.CommandContext(cmdCtx, name, args...).CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Status gathers the full view of one whitelisted unit. systemctl exits
// non-zero for inactive units, so command errors are folded into the status
// fields instead of being returned.
func (m *Manager) Status(ctx context.Context, service string) (ServiceStatus, error) {
	if err := m.validate(service); err != nil {
		return ServiceStatus{}, err
	}

	status := ServiceStatus{
		Name:      service,
		Active:    "unknown",
		Enabled:   "unknown",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if out, err := m.run(ctx, "systemctl", "is-active", service); err == nil || out != "" {
		status.Active = firstWord(out)
	}
	if out, err := m.run(ctx, "systemctl", "is-enabled", service); err == nil || out != "" {
		status.Enabled = firstWord(out)
	}

	if full, _ := m.run(ctx, "systemctl", "status", service, "--no-pager"); full != "" {
		if match := uptimePattern.FindStringSubmatch(full); match != nil {
			status.Uptime = match[1]
		}
		if match := memoryPattern.FindStringSubmatch(full); match != nil {
			status.Memory = match[1]
		}
	}

	if lastLine, err := m.run(ctx, "journalctl", "-u", service, "-n", "1", "--no-pager", "-o", "cat"); err == nil && lastLine != "" {
		status.LastLog = lastLine
	}

	return status, nil
}

// StatusAll reports every whitelisted service; per-service failures surface
// as unknown fields rather than aborting the list.
func (m *Manager) StatusAll(ctx context.Context) []ServiceStatus {
	statuses := make([]ServiceStatus, 0, len(m.order))
	for _, name := range m.order {
		status, err := m.Status(ctx, name)
		if err != nil {
			status = ServiceStatus{Name: name, Active: "unknown", Enabled: "unknown", Timestamp: time.Now().Format(time.RFC3339)}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Control runs start, stop or restart on a whitelisted unit.
func (m *Manager) Control(ctx context.Context, service, action string) (string, error) {
	if err := m.validate(service); err != nil {
		return "", err
	}
	switch action {
	case "start", "stop", "restart":
	default:
		return "", types.NewValidationError("action", "action must be start, stop or restart")
	}

	out, err := m.run(ctx, "systemctl", action, service)
	if err != nil {
		m.logger.Error("service control failed",
			zap.String("service", service),
			zap.String("action", action),
			zap.Error(err))
		return out, &types.DeviceError{DeviceID: service, Message: "systemctl " + action + " failed", Err: err}
	}

	m.logger.Info("service controlled",
		zap.String("service", service),
		zap.String("action", action))
	return out, nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}
