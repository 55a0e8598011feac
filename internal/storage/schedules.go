package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/types"
	"gorm.io/gorm"
)

// SaveSchedule upserts the schedule for a device. The schedule row and its
// day-set move together in one transaction: the day rows are wiped and
// reinserted, so a reader can never observe a partial day-set.
func (s *Store) SaveSchedule(ctx context.Context, deviceID, startTime, endTime string, days []string, enabled bool, userID *uuid.UUID) (*DeviceSchedule, error) {
	var saved DeviceSchedule

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing DeviceSchedule
		err := tx.Where("device_id = ?", deviceID).First(&existing).Error

		switch {
		case err == nil:
			existing.StartTime = startTime
			existing.EndTime = endTime
			existing.Enabled = enabled
			existing.UserID = userID
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			if err := tx.Where("schedule_id = ?", existing.ID).Delete(&ScheduleDay{}).Error; err != nil {
				return err
			}
			saved = existing

		case errors.Is(err, gorm.ErrRecordNotFound):
			saved = DeviceSchedule{
				DeviceID:  deviceID,
				StartTime: startTime,
				EndTime:   endTime,
				Enabled:   enabled,
				UserID:    userID,
			}
			if err := tx.Create(&saved).Error; err != nil {
				return err
			}

		default:
			return err
		}

		for _, day := range days {
			if err := tx.Create(&ScheduleDay{ScheduleID: saved.ID, DayOfWeek: day}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &types.DatabaseError{Operation: "save schedule", Err: err}
	}

	return s.GetSchedule(ctx, deviceID)
}

func (s *Store) GetSchedule(ctx context.Context, deviceID string) (*DeviceSchedule, error) {
	var schedule DeviceSchedule
	err := s.db.WithContext(ctx).Preload("Days").Where("device_id = ?", deviceID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.DatabaseError{Operation: "get schedule", Err: err}
	}
	return &schedule, nil
}

// GetAllSchedules returns every schedule keyed by device id.
func (s *Store) GetAllSchedules(ctx context.Context) (map[string]*DeviceSchedule, error) {
	var rows []DeviceSchedule
	if err := s.db.WithContext(ctx).Preload("Days").Find(&rows).Error; err != nil {
		return nil, &types.DatabaseError{Operation: "list schedules", Err: err}
	}

	schedules := make(map[string]*DeviceSchedule, len(rows))
	for i := range rows {
		schedules[rows[i].DeviceID] = &rows[i]
	}
	return schedules, nil
}

func (s *Store) SetScheduleEnabled(ctx context.Context, deviceID string, enabled bool) error {
	result := s.db.WithContext(ctx).
		Model(&DeviceSchedule{}).
		Where("device_id = ?", deviceID).
		Update("enabled", enabled)
	if result.Error != nil {
		return &types.DatabaseError{Operation: "enable schedule", Err: result.Error}
	}
	if result.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, deviceID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var schedule DeviceSchedule
		if err := tx.Where("device_id = ?", deviceID).First(&schedule).Error; err != nil {
			return err
		}
		if err := tx.Where("schedule_id = ?", schedule.ID).Delete(&ScheduleDay{}).Error; err != nil {
			return err
		}
		return tx.Delete(&schedule).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.ErrNotFound
	}
	if err != nil {
		return &types.DatabaseError{Operation: "delete schedule", Err: err}
	}
	return nil
}
