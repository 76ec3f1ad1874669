// Package rollover handles the daily boundary: stale daily tasks are archived
// and respawned as fresh instances for the new day.
package rollover

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"shiftbot/internal/clock"
	"shiftbot/internal/domain"
	"shiftbot/internal/store"
)

type Engine struct {
	repo store.Repository
	clk  clock.Clock
}

func NewEngine(repo store.Repository, clk clock.Clock) *Engine {
	return &Engine{repo: repo, clk: clk}
}

// Run archives yesterday's unfinished daily tasks and clones each into a new
// InProgress row dated today. Daily tasks are templates by convention: a stale
// row is never carried forward, because reusing it would corrupt the day-scoped
// active window and per-day numbering.
//
// Archive and clone are independent per-row operations; a failure on one row
// is logged and does not block the rest. Every stale task is cloned
// unconditionally, including one-off dailies.
func (e *Engine) Run(ctx context.Context) error {
	now := e.clk.Now()
	yesterday := clock.FormatDate(now.AddDate(0, 0, -1))

	stale, err := e.repo.ListStaleDaily(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("list stale daily tasks: %w", err)
	}
	if len(stale) == 0 {
		log.Info().Str("date", yesterday).Msg("no undone daily tasks to roll over")
		return nil
	}

	for _, t := range stale {
		if err := e.repo.Archive(ctx, t.ID); err != nil {
			log.Error().Err(err).Int64("task_id", t.ID).Msg("archive stale task")
			continue
		}
		log.Info().Int64("task_id", t.ID).Str("title", t.Title).Msg("stale daily task archived")
	}

	today := clock.Format(now)
	for _, t := range stale {
		clone := domain.Task{
			Title:              t.Title,
			Details:            t.Details,
			Role:               t.Role,
			Duration:           domain.DurationDaily,
			Status:             domain.StatusInProgress,
			NotifyMethod:       t.NotifyMethod,
			NoticeInterval:     t.NoticeInterval,
			NoticeTime:         t.NoticeTime,
			FirstMessageMethod: t.FirstMessageMethod,
			FirstMessageTime:   t.FirstMessageTime,
			CreationDate:       today,
		}
		created, err := e.repo.Insert(ctx, clone)
		if err != nil {
			log.Error().Err(err).Int64("source_id", t.ID).Msg("spawn daily task")
			continue
		}
		log.Info().
			Int64("task_id", created.ID).
			Int("task_number", created.TaskNumber).
			Str("role", string(created.Role)).
			Msg("fresh daily task spawned")
	}
	return nil
}
