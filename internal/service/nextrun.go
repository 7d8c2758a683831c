package service

import (
	"time"

	"message-scheduler/internal/model"
)

// ComputeNextRun returns the next due timestamp for a job relative to now.
//
// One-time jobs return their RunAt only while it is still in the future;
// otherwise nil, and the caller decides whether to fire immediately.
// Recurring jobs run at least IntervalMinutes apart measured from the actual
// execution time, so drift accumulates deliberately instead of holding a
// fixed phase. Cron jobs always return nil: their timing is owned by the
// cron dispatch table, never by next_run_at.
func ComputeNextRun(job *model.ScheduledJob, now time.Time) *time.Time {
	switch job.ScheduleType {
	case model.ScheduleTypeOnce:
		if job.RunAt != nil && job.RunAt.After(now) {
			t := *job.RunAt
			return &t
		}
		return nil
	case model.ScheduleTypeRecurring:
		if job.IntervalMinutes == nil || *job.IntervalMinutes <= 0 {
			return nil
		}
		t := now.Add(time.Duration(*job.IntervalMinutes) * time.Minute)
		return &t
	default:
		return nil
	}
}
