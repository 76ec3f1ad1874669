// Package clock provides civil time in the deployment's fixed timezone and
// the canonical string forms the rest of the system compares lexicographically.
package clock

import "time"

// Stamp is the persisted timestamp layout. Fixed-width zero-padded fields make
// string comparison agree with chronological order.
const (
	Stamp     = "2006-01-02 15:04:05"
	DateOnly  = "2006-01-02"
	ClockTime = "15:04"
)

// Clock yields the current civil time. Injected so scheduling passes can be
// driven with a fixed time in tests.
type Clock interface {
	Now() time.Time
}

// System is the wall clock in a fixed location.
type System struct {
	loc *time.Location
}

func NewSystem(tz string) (System, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return System{}, err
	}
	return System{loc: loc}, nil
}

func (s System) Now() time.Time { return time.Now().In(s.loc) }

func (s System) Location() *time.Location { return s.loc }

// Format renders t in the canonical persisted form.
func Format(t time.Time) string { return t.Format(Stamp) }

// FormatDate renders the civil date portion only.
func FormatDate(t time.Time) string { return t.Format(DateOnly) }

// FormatClock renders the zero-padded "HH:mm" time of day.
func FormatClock(t time.Time) string { return t.Format(ClockTime) }

// Fixed is a Clock pinned to one instant, for tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }
