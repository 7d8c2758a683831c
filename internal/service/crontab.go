package service

import (
	"fmt"
	"sync"
	"time"

	"message-scheduler/internal/model"
	"message-scheduler/pkg/logger"

	"github.com/robfig/cron/v3"
)

// cronTable owns the in-memory map of job id to live cron timer. It is
// mutated only through Schedule/Unschedule/StopAll so the one-timer-per-job
// invariant holds across concurrent CRUD calls.
type cronTable struct {
	log        *logger.Logger
	defaultLoc *time.Location

	mu      sync.Mutex
	entries map[uint]*cron.Cron
}

func newCronTable(log *logger.Logger, defaultTimezone string) *cronTable {
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		log.Warn("Invalid default timezone, falling back to UTC",
			logger.StringField("timezone", defaultTimezone),
			logger.ErrorField(err),
		)
		loc = time.UTC
	}
	return &cronTable{
		log:        log,
		defaultLoc: loc,
		entries:    make(map[uint]*cron.Cron),
	}
}

// Schedule registers a recurring timer for a cron-type job. Re-registering
// the same job id stops the previous timer first. An invalid expression is
// refused with an error; the caller logs it and the job stays dormant.
func (t *cronTable) Schedule(job *model.ScheduledJob, fn func()) error {
	if job.CronExpression == nil {
		return fmt.Errorf("job %q has no cron expression", job.Name)
	}
	if !ValidateCronExpression(*job.CronExpression) {
		return fmt.Errorf("invalid cron expression %q for job %q", *job.CronExpression, job.Name)
	}

	loc := t.defaultLoc
	if job.Timezone != "" {
		jobLoc, err := time.LoadLocation(job.Timezone)
		if err != nil {
			t.log.Warn("Invalid job timezone, using default",
				logger.UintField("job_id", job.ID),
				logger.StringField("timezone", job.Timezone),
				logger.ErrorField(err),
			)
		} else {
			loc = jobLoc
		}
	}

	c := cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))
	if _, err := c.AddFunc(*job.CronExpression, fn); err != nil {
		return fmt.Errorf("failed to register cron timer for job %q: %w", job.Name, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[job.ID]; ok {
		existing.Stop()
	}
	c.Start()
	t.entries[job.ID] = c

	t.log.Info("Cron timer registered",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.Name),
		logger.StringField("cron_expression", *job.CronExpression),
		logger.StringField("timezone", loc.String()),
	)
	return nil
}

// Unschedule stops and removes the timer for a job id; no-op if absent.
func (t *cronTable) Unschedule(jobID uint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.entries[jobID]; ok {
		c.Stop()
		delete(t.entries, jobID)
		t.log.Info("Cron timer removed", logger.UintField("job_id", jobID))
	}
}

// StopAll stops every active timer; used on service shutdown.
func (t *cronTable) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, c := range t.entries {
		c.Stop()
		delete(t.entries, id)
	}
}

// Len reports the number of live timers.
func (t *cronTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
