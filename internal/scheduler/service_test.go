package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"shiftbot/internal/domain"
	"shiftbot/internal/notify"
	"shiftbot/internal/rollover"
	"shiftbot/internal/store"
)

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

type recordChannel struct{ sent []string }

func (r *recordChannel) Send(_ context.Context, _ int64, text string) error {
	r.sent = append(r.sent, text)
	return nil
}

func newTestService(t *testing.T, clk *stepClock) (*Service, *store.SQLite, *recordChannel) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)",
		filepath.Join(t.TempDir(), "tasks.db"))
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, store.EnsureSchema(db))

	repo := store.NewSQLite(db)
	ch := &recordChannel{}
	disp := notify.NewDispatcher(repo, repo, ch, clk, time.Second)
	roll := rollover.NewEngine(repo, clk)
	return NewService(repo, disp, roll, clk, time.UTC), repo, ch
}

func TestNotifyPassLifecycle(t *testing.T) {
	ctx := context.Background()
	clk := &stepClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, repo, ch := newTestService(t, clk)

	_, err := repo.Register(ctx, 42)
	require.NoError(t, err)

	task, err := repo.Insert(ctx, domain.Task{
		Title: "count till", Role: domain.RoleManagement,
		Duration: domain.DurationDaily, Status: domain.StatusInProgress,
		NotifyMethod: domain.NotifyInterval, NoticeInterval: 2,
		FirstMessageMethod: domain.FirstNow,
		CreationDate:       "2026-03-10 09:00:00",
	})
	require.NoError(t, err)

	// First pass announces the task and schedules the 11:00 reminder.
	svc.NotifyPass(ctx)
	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0], "New tasks for Management:")

	got, err := repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstMessageSent)
	require.NotNil(t, got.NextNotificationTime)
	assert.Equal(t, "2026-03-10 11:00:00", *got.NextNotificationTime)

	// A pass before the reminder instant sends nothing.
	clk.t = time.Date(2026, 3, 10, 10, 59, 0, 0, time.UTC)
	svc.NotifyPass(ctx)
	assert.Len(t, ch.sent, 1)

	// At 11:00 the reminder fires and the next instant shifts to 13:00.
	clk.t = time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	svc.NotifyPass(ctx)
	require.Len(t, ch.sent, 2)
	assert.Contains(t, ch.sent[1], "Reminders for Management:")

	got, err = repo.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.FirstMessageSent, "sent flag never reverts")
	require.NotNil(t, got.NextNotificationTime)
	assert.Equal(t, "2026-03-10 13:00:00", *got.NextNotificationTime)
}

func TestRolloverPass(t *testing.T) {
	ctx := context.Background()
	clk := &stepClock{t: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)}
	svc, repo, _ := newTestService(t, clk)

	stale, err := repo.Insert(ctx, domain.Task{
		Title: "mop floor", Role: domain.RoleWaiters,
		Duration: domain.DurationDaily, Status: domain.StatusInProgress,
		NotifyMethod: domain.NotifyFixed, NoticeTime: "14:00",
		FirstMessageMethod: domain.FirstNow, FirstMessageSent: true,
		CreationDate: "2026-03-10 09:00:00",
	})
	require.NoError(t, err)

	svc.RolloverPass(ctx)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, got.Status)

	fresh, err := repo.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	clone := fresh[0]
	assert.Equal(t, "mop floor", clone.Title)
	assert.Equal(t, domain.StatusInProgress, clone.Status)
	assert.False(t, clone.FirstMessageSent)
	assert.Nil(t, clone.NextNotificationTime)
	assert.Equal(t, 1, clone.TaskNumber)
	assert.Equal(t, "2026-03-11 00:00:00", clone.CreationDate)
}
