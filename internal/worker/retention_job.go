package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/port"
)

// RetentionJob periodically purges registration events older than the retention period.
type RetentionJob struct {
	events    port.EventLog
	retention time.Duration
	schedule  string
	loc       *time.Location
	now       func() time.Time
	log       zerolog.Logger
}

// NewRetentionJob creates a RetentionJob. schedule is a standard cron
// expression or descriptor ("@hourly") evaluated in loc.
func NewRetentionJob(events port.EventLog, retention time.Duration, schedule string, loc *time.Location, log zerolog.Logger) *RetentionJob {
	if loc == nil {
		loc = time.UTC
	}
	return &RetentionJob{
		events:    events,
		retention: retention,
		schedule:  schedule,
		loc:       loc,
		now:       time.Now,
		log:       log.With().Str("component", "retention_job").Logger(),
	}
}

// RunOnce purges once and returns the number of removed events.
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.events.PurgeEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	j.log.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("Retention run complete")
	return n, nil
}

// Start schedules RunOnce and stops the scheduler when ctx is cancelled.
// The returned channel is closed once the scheduler and any running job
// have stopped.
func (j *RetentionJob) Start(ctx context.Context) (<-chan struct{}, error) {
	if j.retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", j.retention)
	}

	c := cron.New(cron.WithLocation(j.loc))
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.log.Error().Err(err).Msg("Retention run failed")
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", j.schedule, err)
	}

	c.Start()
	j.log.Info().Str("schedule", j.schedule).Dur("retention", j.retention).Msg("Retention job scheduled")

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		close(done)
	}()
	return done, nil
}
