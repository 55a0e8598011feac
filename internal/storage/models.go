package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:text;primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         string     `gorm:"size:20;not null;default:operator" json:"role"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DeviceSchedule holds the single ON window for one relay. device_id is
// unique: saving again replaces the row and its day-set.
type DeviceSchedule struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	DeviceID  string        `gorm:"uniqueIndex;size:64;not null" json:"device_id"`
	StartTime string        `gorm:"size:5;not null" json:"start_time"` // HH:MM
	EndTime   string        `gorm:"size:5;not null" json:"end_time"`   // HH:MM
	Enabled   bool          `gorm:"not null;default:false" json:"enabled"`
	UserID    *uuid.UUID    `gorm:"type:text" json:"user_id"`
	Days      []ScheduleDay `gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type ScheduleDay struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ScheduleID uint   `gorm:"index;not null" json:"schedule_id"`
	DayOfWeek  string `gorm:"size:3;not null" json:"day_of_week"` // mon..sun
}

// DayNames flattens the day rows for API payloads and the evaluator.
func (s *DeviceSchedule) DayNames() []string {
	days := make([]string, 0, len(s.Days))
	for _, d := range s.Days {
		days = append(days, d.DayOfWeek)
	}
	return days
}

// RelayActivation is append-only: rows are never updated or deleted.
type RelayActivation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	DeviceID    string     `gorm:"index;size:64;not null" json:"device_id"`
	Action      string     `gorm:"size:8;not null" json:"action"` // on / off
	UserID      *uuid.UUID `gorm:"type:text" json:"user_id"`
	Username    *string    `gorm:"size:50" json:"username"`
	IsAutomatic bool       `gorm:"not null;default:false" json:"is_automatic"`
	Success     bool       `gorm:"not null;default:true" json:"success"`
	Timestamp   time.Time  `gorm:"index;not null" json:"timestamp"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uuid.UUID `gorm:"type:text;index;not null"`
	TokenHash string    `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Revoked   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time
}
