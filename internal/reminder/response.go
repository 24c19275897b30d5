package reminder

import (
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

// responsePolicy what a response does after the reminder is completed.
type responsePolicy struct {
	closesSession bool
	delay         time.Duration // follow-up reminder after this long
	untilEndOfDay bool          // snooze to 23:59:59, no follow-up row
}

var responsePolicies = map[domain.ResponseType]responsePolicy{
	domain.ResponseILeft:  {closesSession: true},
	domain.ResponseAtWork: {delay: 45 * time.Minute},
	domain.Response45Min:  {delay: 45 * time.Minute},
	domain.Response2Hours: {delay: 2 * time.Hour},
	domain.ResponseAllDay: {untilEndOfDay: true},
}

// schedulesFollowUp reports whether a new scheduled row is appended.
func (p responsePolicy) schedulesFollowUp() bool {
	return p.delay > 0
}

// NextPromptAt returns when the worker should next be prompted after
// answering rt at now; ok is false for i_left.
func NextPromptAt(civil *clock.Civil, rt domain.ResponseType, now time.Time) (time.Time, bool) {
	p, known := responsePolicies[rt]
	switch {
	case !known || p.closesSession:
		return time.Time{}, false
	case p.untilEndOfDay:
		return civil.EndOfDay(now), true
	default:
		return now.Add(p.delay), true
	}
}

// nightCheckInBoundary check-ins at or after 15:30 are labelled night when
// neither the reminder nor the session carries a shift code.
var nightCheckInBoundary = clock.TimeOfDay{Hour: 15, Minute: 30}

func shiftFromCheckIn(civil *clock.Civil, checkIn time.Time) domain.ShiftCode {
	if civil.MinutesSinceMidnight(checkIn) >= nightCheckInBoundary.Minutes() {
		return domain.ShiftNight
	}
	return domain.ShiftDay
}
