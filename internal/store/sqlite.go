package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shiftbot/internal/domain"
)

var ErrNotFound = errors.New("task not found")

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sql.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS tasks (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  details TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  duration TEXT NOT NULL CHECK(duration IN ('daily','weekly','monthly')),
  status TEXT NOT NULL CHECK(status IN ('In Progress','Done','Stuck','Archived')) DEFAULT 'In Progress',
  task_number INTEGER NOT NULL,
  notify_method TEXT NOT NULL DEFAULT 'none',
  notice_interval INTEGER NOT NULL DEFAULT 0,
  notice_time TEXT NOT NULL DEFAULT '',
  first_message_method TEXT NOT NULL DEFAULT 'none',
  first_message_time TEXT NOT NULL DEFAULT '',
  first_message_sent INTEGER NOT NULL DEFAULT 0,
  next_notification_time TEXT,
  creation_date TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_number ON tasks(role, date(creation_date), task_number);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_rollover ON tasks(duration, status);
CREATE TABLE IF NOT EXISTS recipients (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  chat_id INTEGER NOT NULL UNIQUE,
  registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
	_, err := db.Exec(schema)
	return err
}

// Filter narrows List; zero value means all tasks.
type Filter struct {
	Duration domain.Duration
}

type Repository interface {
	ListOpen(ctx context.Context) ([]domain.Task, error)
	List(ctx context.Context, f Filter) ([]domain.Task, error)
	ListForDate(ctx context.Context, date string) ([]domain.Task, error)
	Get(ctx context.Context, id int64) (domain.Task, error)
	Insert(ctx context.Context, t domain.Task) (domain.Task, error)
	Update(ctx context.Context, t domain.Task) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	MarkDone(ctx context.Context, role domain.Role, taskNumber int) (bool, error)
	SetFirstSent(ctx context.Context, id int64, next *string) error
	SetNextNotification(ctx context.Context, id int64, next *string) error
	ListStaleDaily(ctx context.Context, date string) ([]domain.Task, error)
	Archive(ctx context.Context, id int64) error
}

type SQLite struct{ db *sql.DB }

func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

const taskCols = `id,title,details,role,duration,status,task_number,
notify_method,notice_interval,notice_time,
first_message_method,first_message_time,first_message_sent,
next_notification_time,creation_date`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var (
		t    domain.Task
		sent int
		next sql.NullString
	)
	err := row.Scan(&t.ID, &t.Title, &t.Details, &t.Role, &t.Duration, &t.Status, &t.TaskNumber,
		&t.NotifyMethod, &t.NoticeInterval, &t.NoticeTime,
		&t.FirstMessageMethod, &t.FirstMessageTime, &sent,
		&next, &t.CreationDate)
	if err != nil {
		return domain.Task{}, err
	}
	t.FirstMessageSent = sent != 0
	if next.Valid {
		s := next.String
		t.NextNotificationTime = &s
	}
	return t, nil
}

func (s *SQLite) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ListOpen returns every task still subject to scheduling. Done and Archived
// are terminal.
func (s *SQLite) ListOpen(ctx context.Context) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
SELECT `+taskCols+` FROM tasks
WHERE status NOT IN ('Done','Archived')
ORDER BY id`)
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]domain.Task, error) {
	if f.Duration != "" {
		return s.queryTasks(ctx, `SELECT `+taskCols+` FROM tasks WHERE duration=? ORDER BY id`, f.Duration)
	}
	return s.queryTasks(ctx, `SELECT `+taskCols+` FROM tasks ORDER BY id`)
}

// ListForDate returns the tasks whose active window covers the given civil
// date: daily tasks created that day, weekly within 7 days, monthly within 30.
func (s *SQLite) ListForDate(ctx context.Context, date string) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
SELECT `+taskCols+` FROM tasks
WHERE status != 'Done'
  AND (
    (duration='daily' AND date(creation_date) = ?)
    OR (duration='weekly' AND date(creation_date) <= ? AND date(creation_date,'+6 days') >= ?)
    OR (duration='monthly' AND date(creation_date) <= ? AND date(creation_date,'+29 days') >= ?)
  )
ORDER BY id`, date, date, date, date, date)
}

func (s *SQLite) Get(ctx context.Context, id int64) (domain.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return domain.Task{}, ErrNotFound
	}
	return t, err
}

// Insert stores a new task, assigning the next task number scoped to
// (role, creation day) inside the same transaction so concurrent creation
// cannot produce duplicates.
func (s *SQLite) Insert(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.Status == "" {
		t.Status = domain.StatusInProgress
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(task_number),0)+1 FROM tasks
WHERE role=? AND date(creation_date)=date(?)`, t.Role, t.CreationDate)
	if err := row.Scan(&t.TaskNumber); err != nil {
		return domain.Task{}, fmt.Errorf("next task number: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO tasks (title,details,role,duration,status,task_number,
  notify_method,notice_interval,notice_time,
  first_message_method,first_message_time,first_message_sent,
  next_notification_time,creation_date)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Title, t.Details, t.Role, t.Duration, t.Status, t.TaskNumber,
		t.NotifyMethod, t.NoticeInterval, t.NoticeTime,
		t.FirstMessageMethod, t.FirstMessageTime, boolToInt(t.FirstMessageSent),
		t.NextNotificationTime, t.CreationDate)
	if err != nil {
		return domain.Task{}, err
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (s *SQLite) Update(ctx context.Context, t domain.Task) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET title=?, details=?, role=?, duration=?, status=?,
  notify_method=?, notice_interval=?, notice_time=?,
  first_message_method=?, first_message_time=?,
  next_notification_time=?
WHERE id=?`,
		t.Title, t.Details, t.Role, t.Duration, t.Status,
		t.NotifyMethod, t.NoticeInterval, t.NoticeTime,
		t.FirstMessageMethod, t.FirstMessageTime,
		t.NextNotificationTime, t.ID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkDone completes the most recent (highest id) non-Done task carrying the
// given role and task number. Older rows sharing the number from previous days
// are left untouched.
func (s *SQLite) MarkDone(ctx context.Context, role domain.Role, taskNumber int) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE tasks SET status='Done'
WHERE id IN (
  SELECT id FROM tasks
  WHERE role=? AND task_number=? AND status != 'Done'
  ORDER BY id DESC
  LIMIT 1
)`, role, taskNumber)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLite) SetFirstSent(ctx context.Context, id int64, next *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET first_message_sent=1, next_notification_time=? WHERE id=?`, next, id)
	return err
}

func (s *SQLite) SetNextNotification(ctx context.Context, id int64, next *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET next_notification_time=? WHERE id=?`, next, id)
	return err
}

// ListStaleDaily returns daily tasks created on the given date that were never
// finished; the rollover pass archives and respawns them.
func (s *SQLite) ListStaleDaily(ctx context.Context, date string) ([]domain.Task, error) {
	return s.queryTasks(ctx, `
SELECT `+taskCols+` FROM tasks
WHERE duration='daily' AND date(creation_date)=? AND status NOT IN ('Done','Archived')
ORDER BY id`, date)
}

func (s *SQLite) Archive(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET status='Archived' WHERE id=?`, id)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
