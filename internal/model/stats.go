package model

import "time"

// SchedulerStats is an advisory snapshot of job and run counts.
type SchedulerStats struct {
	TotalJobs      int64      `json:"total_jobs"`
	EnabledJobs    int64      `json:"enabled_jobs"`
	CronJobs       int64      `json:"cron_jobs"`
	RecurringJobs  int64      `json:"recurring_jobs"`
	OnceJobs       int64      `json:"once_jobs"`
	TotalRuns      int64      `json:"total_runs"`
	SuccessfulRuns int64      `json:"successful_runs"`
	FailedRuns     int64      `json:"failed_runs"`
	RunsLast24h    int64      `json:"runs_last_24h"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
}
