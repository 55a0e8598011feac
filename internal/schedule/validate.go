package schedule

import (
	"regexp"

	"github.com/jebisys/switchboard/internal/types"
)

var timePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

var validDays = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

// ValidateSave checks a save request before any store mutation. Bad input is
// always a ValidationError, never a store error.
func ValidateSave(deviceID, startTime, endTime string, days []string) error {
	if deviceID == "" {
		return types.NewValidationError("device_id", "device id is required")
	}
	if !timePattern.MatchString(startTime) {
		return types.NewValidationError("start_time", "invalid time format, use HH:MM (24-hour)")
	}
	if !timePattern.MatchString(endTime) {
		return types.NewValidationError("end_time", "invalid time format, use HH:MM (24-hour)")
	}
	if startTime >= endTime {
		return types.NewValidationError("end_time", "end time must be after start time")
	}
	if len(days) == 0 {
		return types.NewValidationError("days", "at least one day must be selected")
	}
	for _, day := range days {
		if !validDays[day] {
			return types.NewValidationError("days", "invalid day: "+day)
		}
	}
	return nil
}
