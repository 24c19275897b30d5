package domain

import "time"

// ReminderStatus scheduled → sent → completed (terminal).
type ReminderStatus string

const (
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderCompleted ReminderStatus = "completed"

	// reminderPendingLegacy is written by older callers and means scheduled.
	reminderPendingLegacy ReminderStatus = "pending"
)

// NormalizeReminderStatus maps the legacy "pending" value onto scheduled.
func NormalizeReminderStatus(s string) ReminderStatus {
	if ReminderStatus(s) == reminderPendingLegacy {
		return ReminderScheduled
	}
	return ReminderStatus(s)
}

// ActiveReminderStatuses are the raw column values counted as not yet answered.
var ActiveReminderStatuses = []string{
	string(ReminderScheduled),
	string(reminderPendingLegacy),
	string(ReminderSent),
}

// IsActive reports whether the reminder still awaits a response.
func (s ReminderStatus) IsActive() bool {
	return s == ReminderScheduled || s == reminderPendingLegacy || s == ReminderSent
}

// ResponseType is the closed set of answers a worker can give.
type ResponseType string

const (
	ResponseILeft  ResponseType = "i_left"
	ResponseAtWork ResponseType = "im_at_work"
	Response45Min  ResponseType = "45min"
	Response2Hours ResponseType = "2hours"
	ResponseAllDay ResponseType = "all_day"
)

// ResponseTypes lists every response in prompt button order.
var ResponseTypes = []ResponseType{
	ResponseILeft,
	ResponseAtWork,
	Response45Min,
	Response2Hours,
	ResponseAllDay,
}

// ParseResponseType validates s against the enumeration.
func ParseResponseType(s string) (ResponseType, error) {
	for _, rt := range ResponseTypes {
		if string(rt) == s {
			return rt, nil
		}
	}
	return "", Validationf("invalid response type %q", s)
}

// CheckoutReminder row of checkout_reminders.
// Escalation appends a new row; an answered row is never reopened.
type CheckoutReminder struct {
	ReminderID         string         `json:"reminder_id"`
	WorkerID           string         `json:"worker_id"`
	SessionID          string         `json:"session_id"`
	ShiftCode          ShiftCode      `json:"shift_code,omitempty"`
	Status             ReminderStatus `json:"status"`
	ResponseType       *ResponseType  `json:"response_type,omitempty"`
	ScheduledFor       time.Time      `json:"scheduled_for"`
	SentAt             *time.Time     `json:"sent_at,omitempty"`
	ResponseReceivedAt *time.Time     `json:"response_received_at,omitempty"`
	ObservedAddress    string         `json:"observed_address,omitempty"`
	GeofenceMatch      bool           `json:"geofence_match"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
