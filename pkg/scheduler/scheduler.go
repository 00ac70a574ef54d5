package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guildpulse/guildpulse/pkg/aggregation"
	"github.com/guildpulse/guildpulse/pkg/config"
	"github.com/guildpulse/guildpulse/pkg/observability"
	"github.com/guildpulse/guildpulse/pkg/queue"
)

// GuildSource yields the guilds scheduled work fans out over
type GuildSource interface {
	ActiveIDs(ctx context.Context) ([]string, error)
}

// MonthRoller compacts a month of daily rows per guild
type MonthRoller interface {
	RollupMonth(ctx context.Context, guildIDs []string, month string) error
}

// RetentionCleaner enforces the retention windows
type RetentionCleaner interface {
	CleanupRawEvents(ctx context.Context, now time.Time) (int64, error)
	CleanupDailyStats(ctx context.Context, guildIDs []string, now time.Time) (int64, error)
	SweepSessions(ctx context.Context, now time.Time) (int, error)
}

// Scheduler drives the periodic pipeline: window aggregation fan-out,
// retention cleanup, session sweeping and the monthly rollup. Window
// aggregation goes through the job queue so it inherits retry and
// dead-letter handling; cleanup and rollup run in-process.
type Scheduler struct {
	queue    *queue.Queue
	guilds   GuildSource
	roller   MonthRoller
	cleaner  RetentionCleaner
	schedule config.ScheduleConfig
	logger   *observability.Logger

	cron *cron.Cron
	now  func() time.Time
}

// New builds a scheduler. Triggers are not armed until Start.
func New(q *queue.Queue, guilds GuildSource, roller MonthRoller, cleaner RetentionCleaner,
	schedule config.ScheduleConfig, logger *observability.Logger) *Scheduler {
	return &Scheduler{
		queue:    q,
		guilds:   guilds,
		roller:   roller,
		cleaner:  cleaner,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Start arms all six cron triggers and starts the cron runner
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}
	c := cron.New()

	entries := []struct {
		spec string
		name string
		run  func(context.Context) error
	}{
		{s.schedule.FiveMinute, "five-minute-window", s.RunFiveMinute},
		{s.schedule.Hourly, "hourly-window", s.RunHourly},
		{s.schedule.Daily, "daily-window", s.RunDaily},
		{s.schedule.RawCleanup, "raw-event-cleanup", s.RunRawCleanup},
		{s.schedule.DailyCleanup, "daily-stats-cleanup", s.RunDailyCleanup},
		{s.schedule.MonthlyRollup, "monthly-rollup", s.RunMonthlyRollup},
	}

	for _, e := range entries {
		e := e
		if _, err := c.AddFunc(e.spec, func() {
			if err := e.run(ctx); err != nil {
				s.logger.WithError(err).WithField("trigger", e.name).Error("scheduled run failed")
			}
		}); err != nil {
			return fmt.Errorf("failed to arm trigger %s (%q): %w", e.name, e.spec, err)
		}
	}

	c.Start()
	s.cron = c
	s.logger.Info("scheduler started")
	return nil
}

// Stop halts the cron runner and waits for in-flight runs to finish
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

// RunFiveMinute enqueues aggregation of the last closed 5-minute window
func (s *Scheduler) RunFiveMinute(ctx context.Context) error {
	end := s.now().UTC().Truncate(5 * time.Minute)
	return s.enqueueWindows(ctx, end.Add(-5*time.Minute), end, aggregation.PeriodFiveMinute)
}

// RunHourly enqueues aggregation of the last closed hour
func (s *Scheduler) RunHourly(ctx context.Context) error {
	end := s.now().UTC().Truncate(time.Hour)
	return s.enqueueWindows(ctx, end.Add(-time.Hour), end, aggregation.PeriodHourly)
}

// RunDaily enqueues aggregation of the last closed UTC day
func (s *Scheduler) RunDaily(ctx context.Context) error {
	t := s.now().UTC()
	end := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return s.enqueueWindows(ctx, end.AddDate(0, 0, -1), end, aggregation.PeriodDaily)
}

// RunRawCleanup prunes expired raw events and sweeps stale voice sessions
func (s *Scheduler) RunRawCleanup(ctx context.Context) error {
	now := s.now()
	_, pruneErr := s.cleaner.CleanupRawEvents(ctx, now)
	_, sweepErr := s.cleaner.SweepSessions(ctx, now)
	if pruneErr != nil {
		return pruneErr
	}
	return sweepErr
}

// RunDailyCleanup prunes expired, already-compacted daily rows
func (s *Scheduler) RunDailyCleanup(ctx context.Context) error {
	guildIDs, err := s.guilds.ActiveIDs(ctx)
	if err != nil {
		return err
	}
	_, err = s.cleaner.CleanupDailyStats(ctx, guildIDs, s.now())
	return err
}

// RunMonthlyRollup compacts the previous calendar month for every
// active guild.
func (s *Scheduler) RunMonthlyRollup(ctx context.Context) error {
	guildIDs, err := s.guilds.ActiveIDs(ctx)
	if err != nil {
		return err
	}
	month := aggregation.PreviousMonth(s.now())
	s.logger.WithFields(map[string]interface{}{
		"month":  month,
		"guilds": len(guildIDs),
	}).Info("starting monthly rollup")
	return s.roller.RollupMonth(ctx, guildIDs, month)
}

func (s *Scheduler) enqueueWindows(ctx context.Context, start, end time.Time, periodType string) error {
	guildIDs, err := s.guilds.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve active guilds: %w", err)
	}
	s.logger.WithFields(map[string]interface{}{
		"period_type": periodType,
		"start":       start.Format(time.RFC3339),
		"guilds":      len(guildIDs),
	}).Debug("enqueueing window aggregation")
	return aggregation.EnqueueWindows(ctx, s.queue, guildIDs, start.UnixMilli(), end.UnixMilli(), periodType)
}
