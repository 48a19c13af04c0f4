package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"barberbot/internal/channels"
	"barberbot/internal/model"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	if len(c.RetryDelays) == 0 {
		return time.Second
	}
	if attempt >= len(c.RetryDelays) {
		return c.RetryDelays[len(c.RetryDelays)-1]
	}
	return c.RetryDelays[attempt]
}

// ReminderSender delivers one reminder with pacing and retries, then marks it sent.
type ReminderSender struct {
	notifier    Notifier
	store       Store
	rateLimiter *RateLimiter
	retry       RetryConfig
	location    *time.Location
	metrics     *Metrics
	logger      zerolog.Logger
}

func NewReminderSender(
	notifier Notifier,
	store Store,
	limiter *RateLimiter,
	retry RetryConfig,
	loc *time.Location,
	metrics *Metrics,
	logger zerolog.Logger,
) *ReminderSender {
	if limiter == nil {
		limiter = NewRateLimiter(DefaultRateLimiterConfig())
	}
	return &ReminderSender{
		notifier:    notifier,
		store:       store,
		rateLimiter: limiter,
		retry:       retry,
		location:    loc,
		metrics:     metrics,
		logger:      logger,
	}
}

// SendWithRetry delivers the reminder for d. Keys without a push channel and
// permanent channel errors are not retried.
func (s *ReminderSender) SendWithRetry(ctx context.Context, d *model.AppointmentDetail) (Outcome, error) {
	waited, err := s.rateLimiter.Wait(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("rate limiter: %w", err)
	}
	if waited {
		s.metrics.incRateLimitWaits()
	}

	started := time.Now()
	defer func() { s.metrics.observeSend(time.Since(started).Seconds()) }()

	text, buttons := FormatReminder(d, s.location)
	log := s.logger.With().Int64("appointment_id", d.ID).Str("client_key", d.ClientKey).Logger()

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		err := s.notifier.Send(ctx, d.ClientKey, text, buttons)
		if err == nil {
			return OutcomeSent, s.markAsSent(ctx, d)
		}
		lastErr = err

		if errors.Is(err, channels.ErrNoPushChannel) {
			log.Debug().Msg("no push channel for reminder")
			return OutcomeSkipped, nil
		}

		wait := s.retry.delay(attempt)
		if se, ok := channels.AsSendError(err); ok {
			if se.Permanent() {
				log.Warn().Err(err).Int("code", se.Code).Msg("reminder rejected by channel")
				return OutcomeFailed, err
			}
			if se.RetryAfter > 0 {
				wait = se.RetryAfter
			}
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.metrics.incRetries()
		log.Info().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying reminder send")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return OutcomeFailed, ctx.Err()
		}
	}

	log.Error().Err(lastErr).Msg("max retries exceeded for reminder")
	return OutcomeFailed, lastErr
}

// markAsSent stamps the appointment. The message is already out, so a failure
// here only means the client may be reminded again on the next run.
func (s *ReminderSender) markAsSent(ctx context.Context, d *model.AppointmentDetail) error {
	if err := s.store.MarkReminderSent(ctx, d.ID); err != nil {
		s.logger.Error().Err(err).Int64("appointment_id", d.ID).Msg("failed to mark reminder as sent")
		return err
	}
	s.logger.Info().Int64("appointment_id", d.ID).Str("client_key", d.ClientKey).Msg("reminder sent")
	return nil
}
