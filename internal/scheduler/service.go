package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shiftbot/internal/clock"
	"shiftbot/internal/notify"
	"shiftbot/internal/rollover"
	"shiftbot/internal/store"
)

// Service drives the two scheduling cadences: a minute tick that scans for due
// notifications, and a midnight tick that rolls daily tasks over. Passes are
// serialized by a single mutex so an overlapping tick can never compute
// divergent next-state for the same row.
type Service struct {
	repo store.Repository
	disp *notify.Dispatcher
	roll *rollover.Engine
	clk  clock.Clock
	cron *cron.Cron

	passMu sync.Mutex
}

func NewService(repo store.Repository, disp *notify.Dispatcher, roll *rollover.Engine, clk clock.Clock, loc *time.Location) *Service {
	return &Service{
		repo: repo,
		disp: disp,
		roll: roll,
		clk:  clk,
		cron: cron.New(cron.WithLocation(loc)),
	}
}

func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("* * * * *", func() { s.NotifyPass(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 * * *", func() { s.RolloverPass(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	log.Info().Msg("scheduler started")
	return nil
}

// Stop halts the timers and waits for any in-flight pass to drain, so task
// state is never left half updated.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// NotifyPass runs one due-notification scan and dispatch.
func (s *Service) NotifyPass(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	logger := passLogger()
	now := s.clk.Now()

	tasks, err := s.repo.ListOpen(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list open tasks")
		return
	}
	due := notify.Scan(tasks, now)
	if due.Empty() {
		logger.Debug().Msg("no pending notifications")
		return
	}
	logger.Info().
		Int("first_contact", len(due.FirstContact)).
		Int("reminders", len(due.Reminders)).
		Msg("dispatching due notifications")

	s.disp.SendFirstContact(ctx, due.FirstContact)
	s.disp.SendReminders(ctx, due.Reminders)
}

// RolloverPass runs the daily archive-and-respawn boundary.
func (s *Service) RolloverPass(ctx context.Context) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	logger := passLogger()
	logger.Info().Msg("daily rollover starting")
	if err := s.roll.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("daily rollover")
		return
	}
	logger.Info().Msg("daily rollover complete")
}

func passLogger() zerolog.Logger {
	return log.With().Str("pass_id", uuid.NewString()).Logger()
}
