// Package notify decides which tasks are due for an announcement or a
// reminder and dispatches grouped messages to registered recipients.
package notify

import (
	"time"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
)

// DueSets is the result of one scheduling scan.
type DueSets struct {
	// FirstContact holds tasks whose initial announcement is owed.
	FirstContact []domain.Task
	// Reminders holds tasks whose recurring reminder instant has passed.
	Reminders []domain.Task
}

func (d DueSets) Empty() bool { return len(d.FirstContact) == 0 && len(d.Reminders) == 0 }

// Scan partitions tasks by what they are owed at the given civil instant.
// Terminal tasks are never due. Comparisons are on the canonical zero-padded
// string forms, which order the same as the instants they encode.
func Scan(tasks []domain.Task, now time.Time) DueSets {
	nowStamp := clock.Format(now)
	nowClock := clock.FormatClock(now)

	var due DueSets
	for _, t := range tasks {
		if t.Status.Terminal() {
			continue
		}
		switch {
		case !t.FirstMessageSent && t.FirstMessageMethod != domain.FirstNone:
			if firstContactDue(t, nowClock) {
				due.FirstContact = append(due.FirstContact, t)
			}
		case t.FirstMessageSent && t.NextNotificationTime != nil:
			if *t.NextNotificationTime <= nowStamp {
				due.Reminders = append(due.Reminders, t)
			}
		}
	}
	return due
}

func firstContactDue(t domain.Task, nowClock string) bool {
	switch t.FirstMessageMethod {
	case domain.FirstNow:
		return true
	case domain.FirstFixed:
		// A fixed method without a time is a configuration error; the task
		// stays not-due until corrected.
		return t.FirstMessageTime != "" && nowClock >= t.FirstMessageTime
	}
	return false
}
