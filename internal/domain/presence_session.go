package domain

import "time"

// VerificationChannel records how presence was established.
type VerificationChannel string

const (
	VerificationInPerson          VerificationChannel = "in_person"
	VerificationRemote            VerificationChannel = "remote"
	VerificationReminderConfirmed VerificationChannel = "reminder_confirmed"
)

// SessionStatus of a presence session.
type SessionStatus string

const (
	SessionOpen       SessionStatus = "open"
	SessionClosed     SessionStatus = "closed"
	SessionEarlyLeave SessionStatus = "early_leave"
)

// PresenceSession one continuous work period (presence_sessions row).
// A session is open while CheckOutAt is nil.
type PresenceSession struct {
	SessionID     string              `json:"session_id"`
	WorkerID      string              `json:"worker_id"`
	Date          time.Time           `json:"date"` // civil date of check-in
	CheckInAt     time.Time           `json:"check_in_at"`
	BranchID      string              `json:"branch_id"`
	ShiftCode     ShiftCode           `json:"shift_code"`
	Late          bool                `json:"late"`
	Status        SessionStatus       `json:"status"`
	CheckOutAt    *time.Time          `json:"check_out_at,omitempty"`
	DurationHours *float64            `json:"duration_hours,omitempty"`
	Verification  VerificationChannel `json:"verification"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// IsOpen reports whether the session has not been checked out.
func (s *PresenceSession) IsOpen() bool {
	return s.CheckOutAt == nil
}
