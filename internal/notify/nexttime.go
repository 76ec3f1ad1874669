package notify

import (
	"strconv"
	"strings"
	"time"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
)

// NextTime computes when the task's next reminder is due after a dispatch at
// now. Nil means no further reminders: method none, or a fixed method missing
// its time value.
func NextTime(t domain.Task, now time.Time) *string {
	switch t.NotifyMethod {
	case domain.NotifyInterval:
		hours := t.NoticeInterval
		if hours <= 0 {
			hours = 1
		}
		s := clock.Format(now.Add(time.Duration(hours) * time.Hour))
		return &s
	case domain.NotifyFixed:
		hh, mm, ok := parseClockTime(t.NoticeTime)
		if !ok {
			return nil
		}
		next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
		if !next.After(now) {
			// Today's slot already passed; roll to the same time tomorrow.
			next = next.AddDate(0, 0, 1)
		}
		s := clock.Format(next)
		return &s
	}
	return nil
}

func parseClockTime(s string) (hh, mm int, ok bool) {
	h, m, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	hh, err := strconv.Atoi(h)
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, false
	}
	mm, err = strconv.Atoi(m)
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, false
	}
	return hh, mm, true
}
