// Package schedule decides whether a relay should be ON at a given instant.
// A single evaluator serves both the on-demand check endpoint and the
// scheduler daemon, so the two call sites cannot drift apart.
package schedule

import (
	"fmt"
	"time"
)

// Decision is the evaluator verdict for one instant.
type Decision int

const (
	// NotApplicable: no schedule, disabled, or today is not a scheduled day.
	// Callers treat it as "off".
	NotApplicable Decision = iota
	ShouldBeOn
	ShouldBeOff
)

func (d Decision) String() string {
	switch d {
	case ShouldBeOn:
		return "on"
	case ShouldBeOff:
		return "off"
	default:
		return "not_applicable"
	}
}

// Window is the evaluator's view of a stored schedule.
type Window struct {
	StartTime string // HH:MM
	EndTime   string // HH:MM
	Days      []string
	Enabled   bool
}

// Policy carries the configuration choices the evaluator cannot decide on
// its own.
type Policy struct {
	// EmptyDaysMatchAll: what an empty day-set means. The two legacy call
	// sites disagreed (daemon: every day, endpoint: never); the flag makes
	// the deployment pick one answer for both.
	EmptyDaysMatchAll bool
}

var dayAbbr = map[time.Weekday]string{
	time.Monday:    "mon",
	time.Tuesday:   "tue",
	time.Wednesday: "wed",
	time.Thursday:  "thu",
	time.Friday:    "fri",
	time.Saturday:  "sat",
	time.Sunday:    "sun",
}

// Evaluate maps (schedule, now) to a desired state. Pure: no clock reads,
// no I/O, idempotent for a given now.
//
// start < end is a daytime window: on within [start, end).
// start >= end wraps past midnight: on when now >= start or now < end.
// start == end therefore covers the full 24h and means "always on" — this
// is relied upon in the field and must not be "fixed".
func Evaluate(w *Window, now time.Time, policy Policy) Decision {
	if w == nil || !w.Enabled {
		return NotApplicable
	}

	if !todayScheduled(w.Days, now, policy) {
		return NotApplicable
	}

	start, err := parseMinutes(w.StartTime)
	if err != nil {
		return NotApplicable
	}
	end, err := parseMinutes(w.EndTime)
	if err != nil {
		return NotApplicable
	}

	nowMin := now.Hour()*60 + now.Minute()

	if start < end {
		if nowMin >= start && nowMin < end {
			return ShouldBeOn
		}
		return ShouldBeOff
	}

	// Overnight window (incl. start == end: always on).
	if nowMin >= start || nowMin < end {
		return ShouldBeOn
	}
	return ShouldBeOff
}

func todayScheduled(days []string, now time.Time, policy Policy) bool {
	if len(days) == 0 {
		return policy.EmptyDaysMatchAll
	}
	today := dayAbbr[now.Weekday()]
	for _, d := range days {
		if d == today {
			return true
		}
	}
	return false
}

func parseMinutes(hhmm string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return 0, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", hhmm)
	}
	return hour*60 + minute, nil
}
