package cleanup

import (
	"context"

	"github.com/hibiken/asynq"
)

const (
	// TaskTypeSweep is the asynq task type of a cleanup pass.
	TaskTypeSweep = "authcore:cleanup"
	// DefaultCronSpec schedules a pass every DefaultInterval.
	DefaultCronSpec = "@every 30m"
)

// NewSweepTask builds a cleanup task. The task carries no payload; every
// pass runs all configured sweeps.
func NewSweepTask() *asynq.Task {
	return asynq.NewTask(TaskTypeSweep, nil, asynq.MaxRetry(0), asynq.Unique(DefaultInterval/2))
}

// HandleTask runs one pass. Sweep failures are returned so asynq records
// them; the next periodic task runs regardless.
func (s *Scheduler) HandleTask(ctx context.Context, _ *asynq.Task) error {
	return s.RunOnce(ctx).Err
}

// Register adds the handler to mux.
func (s *Scheduler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeSweep, s.HandleTask)
}

// RegisterPeriodic enqueues a cleanup task on cronSpec, or on DefaultCronSpec
// when cronSpec is empty.
func RegisterPeriodic(sched *asynq.Scheduler, cronSpec string) (string, error) {
	if cronSpec == "" {
		cronSpec = DefaultCronSpec
	}
	return sched.Register(cronSpec, NewSweepTask())
}
