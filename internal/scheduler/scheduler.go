package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 2 * time.Minute

// ReminderEmitter publishes reminders for stays starting soon.
type ReminderEmitter interface {
	EmitStayReminders(ctx context.Context, now time.Time, window time.Duration) (int, error)
}

// Config holds the cron expressions (with seconds) and job parameters.
type Config struct {
	StayReminders  string
	ReminderWindow time.Duration
}

// Scheduler runs the reservation background jobs.
type Scheduler struct {
	cron      *cron.Cron
	reminders ReminderEmitter
	window    time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Scheduler in UTC with seconds precision and registers every job.
func New(cfg Config, reminders ReminderEmitter, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		reminders: reminders,
		window:    cfg.ReminderWindow,
		now:       time.Now,
		logger:    logger,
	}

	if _, err := s.cron.AddFunc(cfg.StayReminders, s.runStayReminders); err != nil {
		return nil, fmt.Errorf("register stay reminder job %q: %w", cfg.StayReminders, err)
	}
	return s, nil
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runStayReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.reminders.EmitStayReminders(ctx, s.now(), s.window)
	if err != nil {
		s.logger.Error("stay reminder job failed", zap.Error(err))
		return
	}
	s.logger.Info("stay reminders emitted", zap.Int("count", n), zap.Duration("window", s.window))
}
