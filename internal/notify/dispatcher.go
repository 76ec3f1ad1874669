package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
	"shiftbot/internal/store"
)

// Channel sends a rendered message to a single recipient. Implementations
// should honor the context deadline; a timeout is treated as a send failure.
type Channel interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Dispatcher turns due tasks into grouped role messages, fans them out to
// every registered recipient, and advances each task's scheduling state.
//
// Delivery is best effort: one recipient failing never blocks the others, and
// task state advances once the group's dispatch has been attempted. A lost
// delivery is retried, in effect, by the next reminder.
type Dispatcher struct {
	repo        store.Repository
	registry    store.RecipientRegistry
	ch          Channel
	clk         clock.Clock
	sendTimeout time.Duration
}

func NewDispatcher(repo store.Repository, registry store.RecipientRegistry, ch Channel, clk clock.Clock, sendTimeout time.Duration) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{repo: repo, registry: registry, ch: ch, clk: clk, sendTimeout: sendTimeout}
}

// SendFirstContact announces tasks that never had their initial message,
// flipping firstMessageSent and storing the first reminder instant.
func (d *Dispatcher) SendFirstContact(ctx context.Context, tasks []domain.Task) {
	d.dispatch(ctx, tasks, true)
}

// SendReminders sends recurring reminders and recomputes the next instant.
func (d *Dispatcher) SendReminders(ctx context.Context, tasks []domain.Task) {
	d.dispatch(ctx, tasks, false)
}

func (d *Dispatcher) dispatch(ctx context.Context, tasks []domain.Task, firstContact bool) {
	if len(tasks) == 0 {
		return
	}
	recipients, err := d.registry.ListRecipients(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list recipients")
		return
	}

	groups := groupByRole(tasks)
	for _, role := range orderedRoles(groups) {
		g := groups[role]
		header := reminderHeader(role)
		if firstContact {
			header = firstContactHeader(role)
		}
		d.broadcast(ctx, recipients, renderMessage(header, g))

		for _, t := range g.all() {
			next := NextTime(t, d.clk.Now())
			if firstContact {
				err = d.repo.SetFirstSent(ctx, t.ID, next)
			} else {
				err = d.repo.SetNextNotification(ctx, t.ID, next)
			}
			if err != nil {
				log.Error().Err(err).Int64("task_id", t.ID).Msg("update notification state")
				continue
			}
			ev := log.Info().Int64("task_id", t.ID).Str("role", string(role))
			if next != nil {
				ev = ev.Str("next", *next)
			}
			ev.Bool("first_contact", firstContact).Msg("notification state advanced")
		}
	}
}

// broadcast sends text to every recipient in registration order. Failures are
// logged per recipient and never short-circuit the loop.
func (d *Dispatcher) broadcast(ctx context.Context, recipients []int64, text string) {
	for _, chatID := range recipients {
		sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		if err := d.ch.Send(sctx, chatID, text); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
		}
		cancel()
	}
}
