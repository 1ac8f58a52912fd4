/**
 * @description
 * Cron scheduler for background refresh jobs.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron            *cron.Cron
	state           *AppState
	logger          *slog.Logger
	catalogSchedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(state *AppState, catalogSchedule string, logger *slog.Logger) *Scheduler {
	logger = loggerOrDefault(logger)
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger)))

	return &Scheduler{
		cron:            c,
		state:           state,
		logger:          logger,
		catalogSchedule: catalogSchedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.catalogSchedule, s.state.RefreshCatalog); err != nil {
		s.logger.Error("failed to schedule catalog refresh job", "error", err)
		return err
	}
	s.logger.Info("scheduled catalog refresh job", "schedule", s.catalogSchedule)

	s.cron.Start()
	s.logger.Info("cron scheduler started")
	return nil
}

// Stop gracefully stops the cron scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping cron scheduler")
	return s.cron.Stop()
}
