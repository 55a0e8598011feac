package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/types"
	"go.uber.org/zap"
)

// DefaultActivationLimit caps analytics queries so a year of minute-level
// toggles cannot blow up a response.
const DefaultActivationLimit = 2000

// LogActivation appends a relay toggle event. Best-effort: a logging failure
// must never turn a successful toggle into an error, so this only reports to
// the process log.
func (s *Store) LogActivation(ctx context.Context, deviceID, action string, userID *uuid.UUID, username *string, isAutomatic, success bool) {
	event := RelayActivation{
		DeviceID:    deviceID,
		Action:      action,
		UserID:      userID,
		Username:    username,
		IsAutomatic: isAutomatic,
		Success:     success,
		Timestamp:   time.Now(),
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		s.logger.Error("failed to log relay activation",
			zap.String("device_id", deviceID),
			zap.String("action", action),
			zap.Error(err))
	}
}

// ActivationFilter narrows ListActivations. Zero values mean "no filter".
type ActivationFilter struct {
	Start    time.Time
	End      time.Time
	DeviceID string
	Limit    int
}

// ListActivations returns events newest-first, capped at filter.Limit
// (DefaultActivationLimit when unset).
func (s *Store) ListActivations(ctx context.Context, filter ActivationFilter) ([]RelayActivation, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultActivationLimit
	}

	query := s.db.WithContext(ctx).Model(&RelayActivation{})
	if !filter.Start.IsZero() {
		query = query.Where("timestamp >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("timestamp <= ?", filter.End)
	}
	if filter.DeviceID != "" {
		query = query.Where("device_id = ?", filter.DeviceID)
	}

	var events []RelayActivation
	if err := query.Order("timestamp DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, &types.DatabaseError{Operation: "list activations", Err: err}
	}
	return events, nil
}
