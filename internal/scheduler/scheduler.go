package scheduler

import (
	"context"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/messaging"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const source = "scheduler"

// RecurrenceScheduler enqueues one recurrence pass per day at the configured
// wall clock time. It does not run passes itself; workers consume the command.
type RecurrenceScheduler struct {
	scheduler  gocron.Scheduler
	job        gocron.Job
	dispatcher messaging.Dispatcher
	location   *time.Location
	now        func() time.Time
}

// NewRecurrenceScheduler registers the daily job. Nothing fires until Run.
func NewRecurrenceScheduler(cfg config.RecurrenceConfig, dispatcher messaging.Dispatcher) (*RecurrenceScheduler, error) {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid recurrence timezone %q", cfg.Timezone)
	}
	hour, minute, err := config.ParseClock(cfg.RunAt)
	if err != nil {
		return nil, err
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(location))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create scheduler")
	}

	s := &RecurrenceScheduler{
		scheduler:  scheduler,
		dispatcher: dispatcher,
		location:   location,
		now:        time.Now,
	}

	s.job, err = scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))),
		gocron.NewTask(func() {
			if err := s.Trigger(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to enqueue scheduled recurrence pass")
			}
		}),
		gocron.WithName("recurrence-pass"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return nil, errors.Wrap(err, "failed to register recurrence job")
	}

	return s, nil
}

// Trigger enqueues a pass for today's date in the configured timezone
func (s *RecurrenceScheduler) Trigger(ctx context.Context) error {
	cmd := messaging.NewRunRecurrenceCommand(s.today(), source)
	if err := s.dispatcher.Dispatch(ctx, cmd); err != nil {
		return errors.Wrap(err, "failed to dispatch recurrence command")
	}
	log.Info().
		Str("command_id", cmd.ID).
		Time("as_of", cmd.AsOf).
		Msg("Recurrence pass enqueued")
	return nil
}

// today is the local calendar date as midnight UTC, the form schedule
// anchors and next runs are stored in
func (s *RecurrenceScheduler) today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextRun reports when the job fires next, in the configured timezone
func (s *RecurrenceScheduler) NextRun() (time.Time, error) {
	next, err := s.job.NextRun()
	if err != nil {
		return time.Time{}, errors.Wrap(err, "failed to read next run")
	}
	return next.In(s.location), nil
}

// Run starts the scheduler and blocks until ctx is cancelled
func (s *RecurrenceScheduler) Run(ctx context.Context) error {
	s.scheduler.Start()
	if next, err := s.NextRun(); err == nil {
		log.Info().Time("next_run", next).Msg("Recurrence scheduler started")
	}

	<-ctx.Done()

	log.Info().Msg("Stopping recurrence scheduler")
	return s.scheduler.Shutdown()
}
