package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/system"
)

func timeNow() time.Time { return time.Now().UTC() }

// Scheduler enqueues periodic maintenance tasks: an hourly expired-session
// sweep and a nightly full reindex.
type Scheduler struct {
	cron  *cron.Cron
	queue Queue
	log   *logging.Logger
}

var _ system.Service = (*Scheduler)(nil)

// NewScheduler creates the cron schedule.
func NewScheduler(queue Queue, log *logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewDefault("scheduler")
	}
	return &Scheduler{
		cron:  cron.New(),
		queue: queue,
		log:   log,
	}
}

func (s *Scheduler) Name() string { return "cron-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc("@hourly", func() {
		s.enqueue(ctx, NewTask(TaskSweepSessions, nil))
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 3 * * *", func() {
		s.enqueue(ctx, NewTask(TaskReindexAll, nil))
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("cron scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) enqueue(ctx context.Context, t Task) {
	if err := s.queue.Enqueue(ctx, t); err != nil {
		s.log.WithError(err).WithField("kind", t.Kind).Warn("enqueue scheduled task failed")
	}
}
