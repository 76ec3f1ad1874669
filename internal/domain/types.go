package domain

// Role is the organizational group a task belongs to; notifications are
// addressed per role.
type Role string

const (
	RoleManagement Role = "Management"
	RoleWaiters    Role = "Waiters"
	RoleBar        Role = "Bar"
	RoleCooks      Role = "Cooks"
)

// Roles fixes the iteration order for message grouping.
var Roles = []Role{RoleManagement, RoleWaiters, RoleBar, RoleCooks}

// Duration is the task's active-window class and rollover treatment.
type Duration string

const (
	DurationDaily   Duration = "daily"
	DurationWeekly  Duration = "weekly"
	DurationMonthly Duration = "monthly"
)

type Status string

const (
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusStuck      Status = "Stuck"
	StatusArchived   Status = "Archived"
)

// Terminal reports whether the status excludes the task from scheduling scans.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusArchived
}

// NotifyMethod is the recurring-reminder cadence policy.
type NotifyMethod string

const (
	NotifyNone     NotifyMethod = "none"
	NotifyInterval NotifyMethod = "interval"
	NotifyFixed    NotifyMethod = "fixed"
)

// FirstMessageMethod controls whether/when the first-contact announcement fires.
type FirstMessageMethod string

const (
	FirstNone  FirstMessageMethod = "none"
	FirstNow   FirstMessageMethod = "now"
	FirstFixed FirstMessageMethod = "fixed"
)

// Task is the unit of schedulable work.
//
// CreationDate and NextNotificationTime hold canonical "YYYY-MM-DD HH:mm:ss"
// civil timestamps. The zero-padded form is compared lexicographically and
// must be preserved bit-exact.
type Task struct {
	ID      int64
	Title   string
	Details string
	Role    Role

	Duration Duration
	Status   Status

	// TaskNumber is a per-(role, creation day) sequence starting at 1; it is
	// the short id staff quote when marking a task done over chat.
	TaskNumber int

	NotifyMethod   NotifyMethod
	NoticeInterval int    // hours, notifyMethod=interval
	NoticeTime     string // "HH:mm", notifyMethod=fixed

	FirstMessageMethod FirstMessageMethod
	FirstMessageTime   string // "HH:mm", firstTimeMessageMethod=fixed
	FirstMessageSent   bool

	// NextNotificationTime is nil until first contact fires, and permanently
	// nil after any send when NotifyMethod is none.
	NextNotificationTime *string

	CreationDate string
}
