package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-06-02 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2025, 6, day, hour, minute, 0, 0, time.Local)
}

func TestEvaluateDaytimeWindow(t *testing.T) {
	w := &Window{StartTime: "08:00", EndTime: "17:00", Days: []string{"mon"}, Enabled: true}

	tests := []struct {
		name string
		now  time.Time
		want Decision
	}{
		{"inside window", at(2, 9, 0), ShouldBeOn},
		{"at start", at(2, 8, 0), ShouldBeOn},
		{"just before end", at(2, 16, 59), ShouldBeOn},
		{"exactly at end is off", at(2, 17, 0), ShouldBeOff},
		{"after window", at(2, 18, 0), ShouldBeOff},
		{"before window", at(2, 7, 59), ShouldBeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(w, tt.now, Policy{}))
		})
	}
}

func TestEvaluateOvernightWindow(t *testing.T) {
	w := &Window{StartTime: "22:00", EndTime: "06:00", Days: []string{"mon", "tue"}, Enabled: true}

	tests := []struct {
		name string
		now  time.Time
		want Decision
	}{
		{"before midnight", at(2, 23, 30), ShouldBeOn},
		{"at midnight boundary", at(3, 0, 0), ShouldBeOn},
		{"just before midnight", at(2, 23, 59), ShouldBeOn},
		{"early morning", at(3, 5, 59), ShouldBeOn},
		{"at end", at(3, 6, 0), ShouldBeOff},
		{"mid morning", at(3, 7, 0), ShouldBeOff},
		{"at start", at(2, 22, 0), ShouldBeOn},
		{"just before start", at(2, 21, 59), ShouldBeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(w, tt.now, Policy{}))
		})
	}
}

func TestEvaluateEqualTimesAlwaysOn(t *testing.T) {
	// start == end collapses into the overnight branch and covers the full
	// 24h. Deployments rely on it; it is not a bug.
	w := &Window{StartTime: "12:00", EndTime: "12:00", Days: []string{"mon"}, Enabled: true}

	for _, now := range []time.Time{at(2, 0, 0), at(2, 11, 59), at(2, 12, 0), at(2, 23, 59)} {
		assert.Equal(t, ShouldBeOn, Evaluate(w, now, Policy{}), "at %v", now)
	}
}

func TestEvaluateDayGate(t *testing.T) {
	w := &Window{StartTime: "08:00", EndTime: "17:00", Days: []string{"tue"}, Enabled: true}

	// Monday 09:00, but only Tuesday is scheduled.
	assert.Equal(t, NotApplicable, Evaluate(w, at(2, 9, 0), Policy{}))
	// Tuesday 09:00 matches.
	assert.Equal(t, ShouldBeOn, Evaluate(w, at(3, 9, 0), Policy{}))
}

func TestEvaluateDisabledOrAbsent(t *testing.T) {
	w := &Window{StartTime: "08:00", EndTime: "17:00", Days: []string{"mon"}, Enabled: false}

	assert.Equal(t, NotApplicable, Evaluate(w, at(2, 9, 0), Policy{}))
	assert.Equal(t, NotApplicable, Evaluate(nil, at(2, 9, 0), Policy{}))
}

func TestEvaluateEmptyDaysPolicy(t *testing.T) {
	w := &Window{StartTime: "08:00", EndTime: "17:00", Enabled: true}

	// Strict policy: empty day-set never matches.
	assert.Equal(t, NotApplicable, Evaluate(w, at(2, 9, 0), Policy{EmptyDaysMatchAll: false}))
	// Legacy daemon policy: empty day-set matches every day.
	assert.Equal(t, ShouldBeOn, Evaluate(w, at(2, 9, 0), Policy{EmptyDaysMatchAll: true}))
	assert.Equal(t, ShouldBeOff, Evaluate(w, at(2, 18, 0), Policy{EmptyDaysMatchAll: true}))
}

func TestEvaluateMalformedTimes(t *testing.T) {
	w := &Window{StartTime: "8am", EndTime: "17:00", Days: []string{"mon"}, Enabled: true}
	assert.Equal(t, NotApplicable, Evaluate(w, at(2, 9, 0), Policy{}))
}

func TestValidateSave(t *testing.T) {
	require.NoError(t, ValidateSave("RelayLight", "08:00", "17:00", []string{"mon", "fri"}))

	tests := []struct {
		name                       string
		device, start, end         string
		days                       []string
	}{
		{"missing device", "", "08:00", "17:00", []string{"mon"}},
		{"bad start format", "RelayLight", "8:00am", "17:00", []string{"mon"}},
		{"hour out of range", "RelayLight", "24:00", "17:00", []string{"mon"}},
		{"end before start", "RelayLight", "17:00", "08:00", []string{"mon"}},
		{"end equals start", "RelayLight", "08:00", "08:00", []string{"mon"}},
		{"empty days", "RelayLight", "08:00", "17:00", nil},
		{"invalid day", "RelayLight", "08:00", "17:00", []string{"mon", "xyz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSave(tt.device, tt.start, tt.end, tt.days)
			require.Error(t, err)
		})
	}
}
