package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"battlearena/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any) (string, error)
}

// Scheduler enqueues periodic maintenance tasks for the worker. It only
// produces tasks, so several api instances may run it; the sweep is
// idempotent.
type Scheduler struct {
	cron          *cron.Cron
	queue         Enqueuer
	sweepSchedule string
	log           zerolog.Logger
}

func NewScheduler(queue Enqueuer, sweepSchedule string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:          c,
		queue:         queue,
		sweepSchedule: sweepSchedule,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweepSchedule, s.enqueueSweep); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits up to timeout for running jobs.
func (s *Scheduler) Stop(timeout time.Duration) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(timeout):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := s.queue.Enqueue(ctx, queue.TaskExpireUnverified, nil); err != nil {
		s.log.Error().Err(err).Msg("enqueue expire-unverified failed")
	}
}
