package presence

import (
	"math"
	"time"

	"github.com/zukhriddin2012/c-space-niya-sub004/internal/clock"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/domain"
)

const (
	// maxPlausibleElapsed beyond this the dates are not trusted.
	maxPlausibleElapsed = 48 * time.Hour

	// earlyLeaveHours sessions shorter than this may count as early leave.
	earlyLeaveHours = 8.0
)

// earlyLeaveCutoff civil time of day before which a checkout is early, per shift.
var earlyLeaveCutoff = map[domain.ShiftCode]clock.TimeOfDay{
	domain.ShiftDay:   {Hour: 17},
	domain.ShiftNight: {Hour: 9},
}

// Elapsed is the outcome of the duration arithmetic for one session.
type Elapsed struct {
	Duration     time.Duration
	Hours        float64 // rounded to one decimal place
	CheckOutAt   time.Time
	FallbackUsed bool
}

// ComputeElapsed measures from (inDate, inTime) to (outDate, outTime), all
// civil. When the full-timestamp result is negative or longer than 48h, only
// the times of day are trusted and the difference is taken modulo 24h.
func ComputeElapsed(civil *clock.Civil, inDate time.Time, inTime clock.TimeOfDay, outDate time.Time, outTime clock.TimeOfDay) Elapsed {
	checkIn := civil.Combine(inDate, inTime)
	checkOut := civil.Combine(outDate, outTime)

	elapsed := checkOut.Sub(checkIn)
	res := Elapsed{Duration: elapsed, CheckOutAt: checkOut}
	if elapsed < 0 || elapsed > maxPlausibleElapsed {
		diff := outTime.Seconds() - inTime.Seconds()
		if diff < 0 {
			diff += 24 * 60 * 60
		}
		res.Duration = time.Duration(diff) * time.Second
		res.CheckOutAt = checkIn.Add(res.Duration)
		res.FallbackUsed = true
	}
	res.Hours = roundHours(res.Duration)
	return res
}

func roundHours(d time.Duration) float64 {
	minutes := d.Minutes()
	return math.Round(minutes/60*10) / 10
}

// closingStatus decides between closed and early_leave.
func closingStatus(shift domain.ShiftCode, outTime clock.TimeOfDay, hours float64) domain.SessionStatus {
	cutoff, ok := earlyLeaveCutoff[shift]
	if !ok {
		cutoff = earlyLeaveCutoff[domain.ShiftDay]
	}
	if outTime.Seconds() < cutoff.Seconds() && hours < earlyLeaveHours {
		return domain.SessionEarlyLeave
	}
	return domain.SessionClosed
}
