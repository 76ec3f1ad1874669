package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
	"shiftbot/internal/store"
)

type fakeRepo struct {
	store.Repository

	firstSent map[int64]*string
	nextOnly  map[int64]*string
	updateErr map[int64]error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		firstSent: map[int64]*string{},
		nextOnly:  map[int64]*string{},
		updateErr: map[int64]error{},
	}
}

func (f *fakeRepo) SetFirstSent(_ context.Context, id int64, next *string) error {
	if err := f.updateErr[id]; err != nil {
		return err
	}
	f.firstSent[id] = next
	return nil
}

func (f *fakeRepo) SetNextNotification(_ context.Context, id int64, next *string) error {
	if err := f.updateErr[id]; err != nil {
		return err
	}
	f.nextOnly[id] = next
	return nil
}

type fakeRegistry struct {
	ids []int64
	err error
}

func (f *fakeRegistry) ListRecipients(context.Context) ([]int64, error) { return f.ids, f.err }
func (f *fakeRegistry) Register(context.Context, int64) (bool, error)  { return false, nil }

type sentMsg struct {
	chatID int64
	text   string
}

type fakeChannel struct {
	sent     []sentMsg
	failChat int64
}

func (f *fakeChannel) Send(_ context.Context, chatID int64, text string) error {
	if f.failChat != 0 && chatID == f.failChat {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, sentMsg{chatID: chatID, text: text})
	return nil
}

func newTestDispatcher(repo *fakeRepo, reg *fakeRegistry, ch *fakeChannel) *Dispatcher {
	return NewDispatcher(repo, reg, ch, clock.Fixed{T: at(9, 0)}, time.Second)
}

func TestDispatchFirstContact(t *testing.T) {
	repo := newFakeRepo()
	reg := &fakeRegistry{ids: []int64{11, 22}}
	ch := &fakeChannel{}
	d := newTestDispatcher(repo, reg, ch)

	tasks := []domain.Task{
		{ID: 1, TaskNumber: 1, Title: "restock bar", Details: "front fridge", Role: domain.RoleBar,
			Duration: domain.DurationWeekly, NotifyMethod: domain.NotifyInterval, NoticeInterval: 2},
		{ID: 2, TaskNumber: 2, Title: "clean taps", Details: "all lines", Role: domain.RoleBar,
			Duration: domain.DurationDaily, NotifyMethod: domain.NotifyNone},
	}
	d.SendFirstContact(context.Background(), tasks)

	// One grouped message per role, delivered to every recipient in order.
	require.Len(t, ch.sent, 2)
	assert.Equal(t, int64(11), ch.sent[0].chatID)
	assert.Equal(t, int64(22), ch.sent[1].chatID)
	assert.Equal(t, ch.sent[0].text, ch.sent[1].text)

	msg := ch.sent[0].text
	assert.Contains(t, msg, "New tasks for Bar:")
	assert.Contains(t, msg, "2. clean taps")
	assert.Contains(t, msg, "1. restock bar")
	assert.Less(t, strings.Index(msg, "Daily tasks:"), strings.Index(msg, "Weekly tasks:"),
		"daily section must precede weekly")

	// State advanced per task: interval task gets now+2h, none task gets nil.
	require.Contains(t, repo.firstSent, int64(1))
	require.NotNil(t, repo.firstSent[1])
	assert.Equal(t, "2026-03-10 11:00:00", *repo.firstSent[1])
	require.Contains(t, repo.firstSent, int64(2))
	assert.Nil(t, repo.firstSent[2])
}

func TestDispatchRemindersRecomputeNextOnly(t *testing.T) {
	repo := newFakeRepo()
	reg := &fakeRegistry{ids: []int64{11}}
	ch := &fakeChannel{}
	d := newTestDispatcher(repo, reg, ch)

	d.SendReminders(context.Background(), []domain.Task{
		{ID: 7, TaskNumber: 1, Title: "count till", Role: domain.RoleManagement,
			Duration: domain.DurationDaily, NotifyMethod: domain.NotifyFixed, NoticeTime: "08:00",
			FirstMessageSent: true},
	})

	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0].text, "Reminders for Management:")
	assert.Empty(t, repo.firstSent, "reminders must not touch firstMessageSent")
	require.Contains(t, repo.nextOnly, int64(7))
	assert.Equal(t, "2026-03-11 08:00:00", *repo.nextOnly[7])
}

func TestDispatchSendFailureDoesNotBlockOthers(t *testing.T) {
	repo := newFakeRepo()
	reg := &fakeRegistry{ids: []int64{11, 22, 33}}
	ch := &fakeChannel{failChat: 22}
	d := newTestDispatcher(repo, reg, ch)

	d.SendFirstContact(context.Background(), []domain.Task{
		{ID: 1, TaskNumber: 1, Title: "brief staff", Role: domain.RoleWaiters,
			Duration: domain.DurationDaily, NotifyMethod: domain.NotifyInterval, NoticeInterval: 1},
	})

	// Siblings still delivered, and scheduling state still advances.
	require.Len(t, ch.sent, 2)
	assert.Equal(t, int64(11), ch.sent[0].chatID)
	assert.Equal(t, int64(33), ch.sent[1].chatID)
	assert.Contains(t, repo.firstSent, int64(1))
}

func TestDispatchUpdateFailureIsPerTask(t *testing.T) {
	repo := newFakeRepo()
	repo.updateErr[1] = errors.New("db locked")
	reg := &fakeRegistry{ids: []int64{11}}
	ch := &fakeChannel{}
	d := newTestDispatcher(repo, reg, ch)

	d.SendFirstContact(context.Background(), []domain.Task{
		{ID: 1, TaskNumber: 1, Title: "a", Role: domain.RoleCooks, Duration: domain.DurationDaily},
		{ID: 2, TaskNumber: 2, Title: "b", Role: domain.RoleCooks, Duration: domain.DurationDaily},
	})

	assert.NotContains(t, repo.firstSent, int64(1))
	assert.Contains(t, repo.firstSent, int64(2))
}

func TestDispatchRoleOrderIsFixed(t *testing.T) {
	repo := newFakeRepo()
	reg := &fakeRegistry{ids: []int64{11}}
	ch := &fakeChannel{}
	d := newTestDispatcher(repo, reg, ch)

	d.SendFirstContact(context.Background(), []domain.Task{
		{ID: 1, TaskNumber: 1, Title: "c", Role: domain.RoleCooks, Duration: domain.DurationDaily},
		{ID: 2, TaskNumber: 1, Title: "m", Role: domain.RoleManagement, Duration: domain.DurationDaily},
		{ID: 3, TaskNumber: 1, Title: "b", Role: domain.RoleBar, Duration: domain.DurationDaily},
	})

	require.Len(t, ch.sent, 3)
	assert.Contains(t, ch.sent[0].text, "Management")
	assert.Contains(t, ch.sent[1].text, "Bar")
	assert.Contains(t, ch.sent[2].text, "Cooks")
}

func TestDispatchNothingWithoutTasks(t *testing.T) {
	repo := newFakeRepo()
	reg := &fakeRegistry{ids: []int64{11}}
	ch := &fakeChannel{}
	d := newTestDispatcher(repo, reg, ch)

	d.SendFirstContact(context.Background(), nil)
	d.SendReminders(context.Background(), nil)
	assert.Empty(t, ch.sent)
}
