// Package reconcile drives actual relay state toward the state the
// schedules call for, both on demand and from the background poller.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/api/websocket"
	"github.com/jebisys/switchboard/internal/device"
	"github.com/jebisys/switchboard/internal/schedule"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

// ScheduleStore is the slice of the storage layer the reconciler needs.
type ScheduleStore interface {
	GetSchedule(ctx context.Context, deviceID string) (*storage.DeviceSchedule, error)
	GetAllSchedules(ctx context.Context) (map[string]*storage.DeviceSchedule, error)
	LogActivation(ctx context.Context, deviceID, action string, userID *uuid.UUID, username *string, isAutomatic, success bool)
}

// Notifier receives relay transition announcements for the live panel
// feed. The websocket hub satisfies it; nil means nobody is listening.
type Notifier interface {
	Broadcast(msg websocket.Message)
}

type Outcome string

const (
	OutcomeTurnedOn  Outcome = "turned_on"
	OutcomeTurnedOff Outcome = "turned_off"
	OutcomeNone      Outcome = "none"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	DeviceID string  `json:"device_id"`
	Outcome  Outcome `json:"outcome"`
	Desired  string  `json:"desired"`
	Actual   string  `json:"actual,omitempty"`
	Message  string  `json:"message,omitempty"`
}

type Reconciler struct {
	store    ScheduleStore
	driver   device.Driver
	policy   schedule.Policy
	logger   *zap.Logger
	notifier Notifier
	now      func() time.Time
}

func NewReconciler(store ScheduleStore, driver device.Driver, policy schedule.Policy, logger *zap.Logger) *Reconciler {
	return &Reconciler{store: store, driver: driver, policy: policy, logger: logger, now: time.Now}
}

// SetNotifier attaches a live feed for schedule-driven transitions.
func (r *Reconciler) SetNotifier(n Notifier) {
	r.notifier = n
}

func windowOf(s *storage.DeviceSchedule) *schedule.Window {
	if s == nil {
		return nil
	}
	return &schedule.Window{
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Days:      s.DayNames(),
		Enabled:   s.Enabled,
	}
}

// CheckDevice reads the live relay state, evaluates the schedule and issues
// a correcting command when the two disagree. Schedule-less devices are left
// alone here; only the poller forces those off, because it knows what it
// last commanded.
func (r *Reconciler) CheckDevice(ctx context.Context, deviceID string) (Result, error) {
	sched, err := r.store.GetSchedule(ctx, deviceID)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return Result{DeviceID: deviceID, Outcome: OutcomeFailed, Message: err.Error()}, err
	}

	decision := schedule.Evaluate(windowOf(sched), r.now(), r.policy)
	result := Result{DeviceID: deviceID, Desired: decision.String()}

	if decision == schedule.NotApplicable {
		result.Outcome = OutcomeNone
		return result, nil
	}

	reading, err := r.driver.ReadStatus(ctx, deviceID)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Message = err.Error()
		return result, err
	}
	result.Actual = string(reading.Status)

	var want device.Action
	var wantStatus device.Status
	if decision == schedule.ShouldBeOn {
		want, wantStatus = device.ActionOn, device.StatusOn
	} else {
		want, wantStatus = device.ActionOff, device.StatusOff
	}

	if reading.Status == wantStatus {
		result.Outcome = OutcomeNone
		return result, nil
	}

	toggle, err := r.driver.SetState(ctx, deviceID, want)
	r.store.LogActivation(ctx, deviceID, string(want), nil, nil, true, toggle.Success)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Message = toggle.Message
		return result, err
	}

	r.logger.Info("reconciled relay",
		zap.String("device_id", deviceID),
		zap.String("action", string(want)))
	if r.notifier != nil {
		r.notifier.Broadcast(websocket.NewRelayStateMessage(deviceID, string(want), string(wantStatus), true, ""))
	}
	if want == device.ActionOn {
		result.Outcome = OutcomeTurnedOn
	} else {
		result.Outcome = OutcomeTurnedOff
	}
	return result, nil
}

// CheckAll runs CheckDevice for every configured relay. Individual failures
// are reported per device, not propagated.
func (r *Reconciler) CheckAll(ctx context.Context) []Result {
	devices := r.driver.Devices()
	results := make([]Result, 0, len(devices))
	for _, id := range devices {
		result, _ := r.CheckDevice(ctx, id)
		results = append(results, result)
	}
	return results
}
