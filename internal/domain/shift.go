package domain

import (
	"strings"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
)

// ShiftCode identifies a shift kind.
type ShiftCode string

const (
	ShiftDay   ShiftCode = "day"
	ShiftNight ShiftCode = "night"
)

// ParseShiftCode accepts "day" / "night" case-insensitively.
func ParseShiftCode(s string) (ShiftCode, bool) {
	switch ShiftCode(strings.ToLower(strings.TrimSpace(s))) {
	case ShiftDay:
		return ShiftDay, true
	case ShiftNight:
		return ShiftNight, true
	}
	return "", false
}

// ShiftDefinition row of shift_definitions.
type ShiftDefinition struct {
	Code                 ShiftCode `json:"code"`
	StartHour            int       `json:"start_hour"`
	LateThresholdMinutes int       `json:"late_threshold_minutes"` // grace period after StartHour
}

// LateCutoffMinutes is the minute-of-day at or after which arrival is late.
func (d ShiftDefinition) LateCutoffMinutes() int {
	return d.StartHour*60 + d.LateThresholdMinutes
}

// ScheduleStatus publication state of the schedule owning an assignment.
type ScheduleStatus string

const (
	SchedulePublished ScheduleStatus = "published"
	ScheduleDraft     ScheduleStatus = "draft"
	ScheduleArchived  ScheduleStatus = "archived"
)

// ShiftAssignment binds a worker to a shift on one date (at most one per worker per date).
type ShiftAssignment struct {
	WorkerID       string           `json:"worker_id"`
	Date           time.Time        `json:"date"`
	ShiftCode      ShiftCode        `json:"shift_code"`
	CustomStart    *clock.TimeOfDay `json:"custom_start,omitempty"`
	CustomEnd      *clock.TimeOfDay `json:"custom_end,omitempty"`
	ScheduleStatus ScheduleStatus   `json:"schedule_status"`
}

// Active reports whether the owning schedule is published or draft.
func (a ShiftAssignment) Active() bool {
	return a.ScheduleStatus == SchedulePublished || a.ScheduleStatus == ScheduleDraft
}
