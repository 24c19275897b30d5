// Package clock injects "now" and the workplace civil timezone into the
// engine so lateness, duration and reminder times never read process time.
package clock

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // workplace zone must load on hosts without zoneinfo
)

// DateLayout is the civil date wire format.
const DateLayout = "2006-01-02"

// Clock returns the current instant.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real returns the process wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// Fake is a settable clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake fixed at t.
func NewFake(t time.Time) *Fake { return &Fake{now: t} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Civil converts instants to the workplace's local civil time.
type Civil struct {
	loc *time.Location
}

// NewCivil loads the IANA zone name (e.g. "Asia/Tashkent").
func NewCivil(zone string) (*Civil, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return &Civil{loc: loc}, nil
}

// CivilIn wraps an already loaded location.
func CivilIn(loc *time.Location) *Civil { return &Civil{loc: loc} }

func (c *Civil) Location() *time.Location { return c.loc }

// In returns t expressed in the civil zone.
func (c *Civil) In(t time.Time) time.Time { return t.In(c.loc) }

// Date returns the civil calendar day containing t at midnight.
func (c *Civil) Date(t time.Time) time.Time {
	l := t.In(c.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, c.loc)
}

// MinutesSinceMidnight returns the civil minute-of-day of t.
func (c *Civil) MinutesSinceMidnight(t time.Time) int {
	l := t.In(c.loc)
	return l.Hour()*60 + l.Minute()
}

// EndOfDay returns 23:59:59 of t's civil day.
func (c *Civil) EndOfDay(t time.Time) time.Time {
	l := t.In(c.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 23, 59, 59, 0, c.loc)
}

// Combine builds the instant for a civil date and a time of day.
func (c *Civil) Combine(date time.Time, tod TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, tod.Second, 0, c.loc)
}

// ParseDate parses a YYYY-MM-DD civil date.
func (c *Civil) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, c.loc)
}

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM or HH:MM:SS", s)
}

// TimeOfDayOf extracts the civil time of day of t.
func (c *Civil) TimeOfDayOf(t time.Time) TimeOfDay {
	l := t.In(c.loc)
	return TimeOfDay{Hour: l.Hour(), Minute: l.Minute(), Second: l.Second()}
}

// Minutes returns minutes since midnight, truncating seconds.
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// Seconds returns seconds since midnight.
func (t TimeOfDay) Seconds() int { return t.Hour*3600 + t.Minute*60 + t.Second }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}
