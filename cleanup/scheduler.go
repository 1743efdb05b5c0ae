package cleanup

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/multierr"
	"k8s.io/utils/clock"
)

// DefaultInterval is used when Scheduler.Interval is zero.
const DefaultInterval = 30 * time.Minute

// Sweep removes one kind of stale state and reports how many entries it
// deleted.
type Sweep struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Report is the outcome of one pass.
type Report struct {
	StartedAt time.Time
	Duration  time.Duration
	Removed   map[string]int
	Err       error
}

// Total returns the number of entries removed by every sweep.
func (r Report) Total() int {
	n := 0
	for _, c := range r.Removed {
		n += c
	}
	return n
}

// Scheduler runs sweeps periodically. A failing sweep never stops the others
// or later passes.
type Scheduler struct {
	Interval     time.Duration
	RunOnStartup bool
	Clock        clock.WithTicker
	Logger       *slog.Logger
	Sweeps       []Sweep

	// OnReport, when set, observes every completed pass.
	OnReport func(Report)
}

func (s *Scheduler) clock() clock.WithTicker {
	if s.Clock == nil {
		return clock.RealClock{}
	}
	return s.Clock
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// RunOnce runs every sweep once. Failures are logged individually and
// combined into Report.Err.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	clk := s.clock()
	log := s.logger()
	rep := Report{
		StartedAt: clk.Now(),
		Removed:   make(map[string]int, len(s.Sweeps)),
	}

	for _, sw := range s.Sweeps {
		if sw.Run == nil {
			continue
		}
		n, err := sw.Run(ctx)
		rep.Removed[sw.Name] += n
		if err != nil {
			log.Warn("authcore: cleanup sweep failed", "sweep", sw.Name, "error", err)
			rep.Err = multierr.Append(rep.Err, err)
			continue
		}
		if n > 0 {
			log.Debug("authcore: cleanup sweep", "sweep", sw.Name, "removed", n)
		}
	}

	rep.Duration = clk.Since(rep.StartedAt)
	if s.OnReport != nil {
		s.OnReport(rep)
	}
	return rep
}

// Run performs a pass per tick until ctx is cancelled and then returns
// ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if s.RunOnStartup {
		s.RunOnce(ctx)
	}

	ticker := s.clock().NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.RunOnce(ctx)
		}
	}
}
