// Package reminders sends the day-before appointment reminders.
package reminders

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"barberbot/internal/calendar"
)

// SchedulerConfig holds configuration for the reminder job.
type SchedulerConfig struct {
	// DailyHour and DailyMinute are the local time of the daily run.
	DailyHour   int
	DailyMinute int
	// CheckInterval is how often to check if it's time to run.
	CheckInterval time.Duration
}

// DefaultSchedulerConfig runs at 09:00 and checks every minute.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		DailyHour:     9,
		DailyMinute:   0,
		CheckInterval: time.Minute,
	}
}

// Job runs the reminder selection once a day.
type Job struct {
	config   SchedulerConfig
	store    Store
	sender   *ReminderSender
	location *time.Location
	metrics  *Metrics
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	lastRunDate string
	running     bool
	stopCh      chan struct{}
	done        chan struct{}
}

func NewJob(
	config SchedulerConfig,
	store Store,
	sender *ReminderSender,
	loc *time.Location,
	metrics *Metrics,
	logger zerolog.Logger,
) *Job {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	return &Job{
		config:   config,
		store:    store,
		sender:   sender,
		location: loc,
		metrics:  metrics,
		logger:   logger.With().Str("component", "reminders").Logger(),
		now:      time.Now,
	}
}

// Start launches the scheduler loop in the background.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.done = make(chan struct{})
	stopCh, done := j.stopCh, j.done
	j.mu.Unlock()

	j.logger.Info().
		Str("timezone", j.location.String()).
		Str("daily_time", j.formatTime()).
		Msg("reminder scheduler started")

	go func() {
		defer close(done)
		ticker := time.NewTicker(j.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				j.logger.Info().Msg("reminder scheduler stopped by context")
				return
			case <-stopCh:
				j.logger.Info().Msg("reminder scheduler stopped")
				return
			case <-ticker.C:
				j.checkAndRun(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight run to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	close(j.stopCh)
	done := j.done
	j.mu.Unlock()
	<-done
}

// IsRunning returns whether the scheduler loop is active.
func (j *Job) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// checkAndRun fires once per local day, at or after the configured time.
func (j *Job) checkAndRun(ctx context.Context) {
	now := j.now().In(j.location)
	today := calendar.FormatISODate(now)
	due := time.Date(now.Year(), now.Month(), now.Day(), j.config.DailyHour, j.config.DailyMinute, 0, 0, j.location)

	j.mu.Lock()
	if j.lastRunDate == today || now.Before(due) {
		j.mu.Unlock()
		return
	}
	j.lastRunDate = today
	j.mu.Unlock()

	j.logger.Info().Str("date", today).Str("time", now.Format("15:04:05")).Msg("starting daily reminder processing")
	j.process(ctx, now)
}

// RunNow processes tomorrow's reminders immediately.
func (j *Job) RunNow(ctx context.Context) RunStats {
	j.logger.Info().Msg("manual reminder processing triggered")
	return j.process(ctx, j.now().In(j.location))
}

func (j *Job) process(ctx context.Context, now time.Time) RunStats {
	var stats RunStats
	started := time.Now()

	from, to := calendar.DayBounds(now.AddDate(0, 0, 1), j.location)
	due, err := j.store.ListDueReminders(ctx, from, to)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to fetch due reminders")
		return stats
	}
	stats.Total = len(due)
	j.metrics.setDue(stats.Total)
	j.logger.Info().Int("count", stats.Total).Str("day", calendar.FormatISODate(from)).Msg("found due reminders")

	for i := range due {
		if ctx.Err() != nil {
			j.logger.Info().
				Int("processed", stats.Sent+stats.Skipped+stats.Failed).
				Int("remaining", stats.Total-stats.Sent-stats.Skipped-stats.Failed).
				Msg("reminder processing interrupted")
			return stats
		}
		outcome, err := j.sender.SendWithRetry(ctx, &due[i])
		if err != nil && outcome != OutcomeFailed {
			// sent, but the marker was not stored
			j.logger.Warn().Err(err).Int64("appointment_id", due[i].ID).Msg("reminder sent without marker")
		}
		j.metrics.inc(outcome)
		switch outcome {
		case OutcomeSent:
			stats.Sent++
		case OutcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	j.logger.Info().
		Int("total", stats.Total).
		Int("sent", stats.Sent).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", time.Since(started)).
		Msg("daily reminders processed")
	return stats
}

func (j *Job) formatTime() string {
	return time.Date(2000, 1, 1, j.config.DailyHour, j.config.DailyMinute, 0, 0, time.UTC).Format("15:04")
}
