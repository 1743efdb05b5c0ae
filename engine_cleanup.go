package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/cleanup"
)

// Sweep names reported by the cleanup scheduler.
const (
	SweepRefreshTokens = "refresh_tokens"
	SweepBlacklist     = "blacklist"
	SweepSessions      = "sessions"
)

// CleanupSweeps returns the sweeps that remove expired refresh-token records
// past retention, expired blacklist entries and sessions idle longer than
// Session.InactivityThreshold.
func (e *Engine) CleanupSweeps() []cleanup.Sweep {
	threshold := e.config.Session.InactivityThreshold
	return []cleanup.Sweep{
		{Name: SweepRefreshTokens, Run: e.refresh.SweepExpired},
		{Name: SweepBlacklist, Run: e.blacklist.SweepExpired},
		{Name: SweepSessions, Run: func(ctx context.Context) (int, error) {
			return e.sessions.SweepInactive(ctx, threshold)
		}},
	}
}

// NewCleanupScheduler returns a scheduler over [Engine.CleanupSweeps] that
// shares the engine's clock, logger and metrics.
func (e *Engine) NewCleanupScheduler() *cleanup.Scheduler {
	return &cleanup.Scheduler{
		Interval:     e.config.Cleanup.Interval,
		RunOnStartup: e.config.Cleanup.RunOnStartup,
		Clock:        e.clock,
		Logger:       e.logger,
		Sweeps:       e.CleanupSweeps(),
		OnReport: func(r cleanup.Report) {
			e.metrics.Add(MetricCleanupRemoved, uint64(r.Total()))
			if r.Err != nil {
				e.metricInc(MetricCleanupFailure)
			}
		},
	}
}
