// Package scheduler runs subscription updates periodically.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/bnema/rulekit/internal/logging"
	"github.com/bnema/rulekit/internal/registry"
)

// Updater refreshes all enabled subscriptions; *registry.Registry satisfies it.
type Updater interface {
	UpdateAll(ctx context.Context, force bool) (registry.UpdateReport, error)
}

// Scheduler triggers Updater.UpdateAll on a fixed interval. Runs never overlap.
type Scheduler struct {
	cron gocron.Scheduler
	job  gocron.Job
}

// New schedules updates every interval. With onStart the first run happens
// as soon as Start is called.
func New(ctx context.Context, updater Updater, interval time.Duration, onStart bool) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("update interval must be positive, got %s", interval)
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx = logging.WithComponent(ctx, "scheduler")
	log := logging.FromContext(ctx)

	task := func() {
		report, err := updater.UpdateAll(ctx, false)
		if errors.Is(err, registry.ErrUpdateInProgress) {
			log.Debug().Msg("update already running, skipping scheduled run")
			return
		}
		if err != nil {
			log.Warn().Err(err).Msg("scheduled update failed")
			return
		}
		log.Info().
			Int("updated", len(report.Updated)).
			Int("failed", len(report.Failed)).
			Msg("scheduled update finished")
	}

	opts := []gocron.JobOption{
		gocron.WithName("update-subscriptions"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if onStart {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	job, err := cron.NewJob(gocron.DurationJob(interval), gocron.NewTask(task), opts...)
	if err != nil {
		_ = cron.Shutdown()
		return nil, fmt.Errorf("failed to schedule updates: %w", err)
	}

	return &Scheduler{cron: cron, job: job}, nil
}

// Start begins running jobs
func (s *Scheduler) Start() {
	s.cron.Start()
}

// NextRun reports when the next update is due
func (s *Scheduler) NextRun() (time.Time, error) {
	return s.job.NextRun()
}

// Shutdown stops the scheduler and waits for a running update to return
func (s *Scheduler) Shutdown() error {
	return s.cron.Shutdown()
}
