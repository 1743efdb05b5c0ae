// Package cleanup periodically removes expired refresh-token records,
// expired blacklist entries and inactive sessions.
//
// A [Scheduler] runs in-process on a ticker. Deployments with several
// processes can instead register [TaskTypeSweep] with an asynq worker and
// let [RegisterPeriodic] enqueue it, so only one process sweeps per period.
package cleanup
