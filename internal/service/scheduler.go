package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"message-scheduler/config"
	"message-scheduler/internal/model"
	"message-scheduler/internal/repository"
	"message-scheduler/pkg/cache"
	"message-scheduler/pkg/logger"
	"message-scheduler/pkg/utils"

	"github.com/benbjohnson/clock"
)

const statsCacheKey = "scheduler:stats"

// SchedulerService is the facade over job CRUD, the start/stop lifecycle,
// manual run-now and reporting.
type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	CreateJob(ctx context.Context, job *model.ScheduledJob) (*model.ScheduledJob, error)
	GetJob(ctx context.Context, id uint) (*model.ScheduledJob, error)
	GetAllJobs(ctx context.Context) ([]model.ScheduledJob, error)
	UpdateJob(ctx context.Context, id uint, patch *model.UpdateJobInput) (*model.ScheduledJob, error)
	DeleteJob(ctx context.Context, id uint) (bool, error)
	ToggleJob(ctx context.Context, id uint, enabled bool) (*model.ScheduledJob, error)
	RunJobNow(ctx context.Context, id uint) (*ExecutionResult, error)
	GetJobRuns(ctx context.Context, jobID uint, limit int) ([]model.ScheduledJobRun, error)
	GetRecentRuns(ctx context.Context, limit int) ([]model.RunWithJobName, error)
	GetStats(ctx context.Context) (*model.SchedulerStats, error)
}

type schedulerService struct {
	cfg      *config.Config
	log      *logger.Logger
	store    repository.JobStore
	executor JobExecutor
	crontab  *cronTable
	clk      clock.Clock
	cache    cache.Cache

	mu         sync.Mutex
	running    bool
	pollCancel context.CancelFunc
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	store repository.JobStore,
	executor JobExecutor,
	clk clock.Clock,
	inmemoryCache cache.Cache,
) SchedulerService {
	return &schedulerService{
		cfg:      cfg,
		log:      log,
		store:    store,
		executor: executor,
		crontab:  newCronTable(log, cfg.Scheduler.DefaultTimezone),
		clk:      clk,
		cache:    inmemoryCache,
	}
}

// Start loads all persisted jobs, re-registers cron timers for every enabled
// cron job and starts the due-job poller. Starting twice is a no-op with a
// warning.
func (s *schedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("Scheduler already running, ignoring start")
		return nil
	}

	if err := s.store.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	jobs, err := s.store.GetAllJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load jobs: %w", err)
	}

	registered := 0
	for i := range jobs {
		job := jobs[i]
		if job.ScheduleType != model.ScheduleTypeCron || !job.Enabled {
			continue
		}
		if err := s.crontab.Schedule(&job, s.cronCallback(job.ID)); err != nil {
			// Reported, not fatal: the job stays persisted but dormant.
			s.log.ErrorContext(ctx, "Failed to register cron timer",
				logger.ErrorField(err),
				logger.UintField("job_id", job.ID),
				logger.StringField("job_name", job.Name),
			)
			continue
		}
		registered++
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	utils.GoSafe(func() {
		s.pollLoop(pollCtx)
	})

	s.running = true
	s.log.Info("Scheduler started",
		logger.IntField("total_jobs", len(jobs)),
		logger.IntField("cron_timers", registered),
		logger.DurationField("poll_interval", s.cfg.Scheduler.PollInterval),
	)
	return nil
}

// Stop halts every cron timer and the poller. Stopping while not running is
// a no-op.
func (s *schedulerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.crontab.StopAll()
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
	s.running = false
	s.log.Info("Scheduler stopped")
}

func (s *schedulerService) pollLoop(ctx context.Context) {
	ticker := s.clk.Ticker(s.cfg.Scheduler.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDueJobs(ctx)
		}
	}
}

// runDueJobs executes every due recurring/once job sequentially within the
// tick. A slow job delays the rest of the pass but never drops it; a store
// failure abandons the tick and the loop resumes on its next interval.
func (s *schedulerService) runDueJobs(ctx context.Context) {
	now := s.clk.Now()
	jobs, err := s.store.GetDueJobs(ctx, now)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to query due jobs, abandoning tick", logger.ErrorField(err))
		return
	}
	if len(jobs) == 0 {
		return
	}

	s.log.InfoContext(ctx, "Running due jobs", logger.IntField("job_count", len(jobs)))
	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		job := jobs[i]
		result, err := s.executor.Execute(ctx, &job)
		if err != nil {
			if errors.Is(err, ErrJobAlreadyRunning) {
				continue
			}
			s.log.ErrorContextWithAlert(ctx, "Failed to execute due job",
				logger.ErrorField(err),
				logger.UintField("job_id", job.ID),
				logger.StringField("job_name", job.Name),
			)
			continue
		}
		if !result.Success {
			s.log.WarnContext(ctx, "Due job delivery failed",
				logger.UintField("job_id", job.ID),
				logger.StringField("job_name", job.Name),
				logger.ErrorField(result.Err),
			)
		}
	}
}

// cronCallback builds the dispatch-table tick handler for a cron job. The
// job is re-read on every tick so the execution sees fresh state and a job
// disabled mid-flight stops firing without waiting for unschedule.
func (s *schedulerService) cronCallback(jobID uint) func() {
	return func() {
		ctx := context.Background()
		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			s.log.ErrorContext(ctx, "Cron tick failed to load job",
				logger.ErrorField(err),
				logger.UintField("job_id", jobID),
			)
			return
		}
		if job == nil || !job.Enabled {
			return
		}
		if _, err := s.executor.Execute(ctx, job); err != nil && !errors.Is(err, ErrJobAlreadyRunning) {
			s.log.ErrorContextWithAlert(ctx, "Cron job execution failed",
				logger.ErrorField(err),
				logger.UintField("job_id", jobID),
			)
		}
	}
}

// CreateJob validates the schedule descriptor, computes the initial next-run
// timestamp, persists the job and registers a cron timer when applicable.
func (s *schedulerService) CreateJob(ctx context.Context, job *model.ScheduledJob) (*model.ScheduledJob, error) {
	if job.Timezone == "" {
		job.Timezone = s.cfg.Scheduler.DefaultTimezone
	}
	if err := validateJob(job); err != nil {
		return nil, err
	}

	now := s.clk.Now()
	job.NextRunAt = ComputeNextRun(job, now)
	if job.NextRunAt == nil && job.ScheduleType == model.ScheduleTypeOnce {
		// RunAt already passed: due immediately, picked up on the next tick.
		job.NextRunAt = job.RunAt
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.registerCronIfNeeded(ctx, job)

	s.log.InfoContext(ctx, "Job created",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.Name),
		logger.StringField("schedule_type", string(job.ScheduleType)),
	)
	return job, nil
}

func (s *schedulerService) GetJob(ctx context.Context, id uint) (*model.ScheduledJob, error) {
	return s.store.GetJob(ctx, id)
}

func (s *schedulerService) GetAllJobs(ctx context.Context) ([]model.ScheduledJob, error) {
	return s.store.GetAllJobs(ctx)
}

// UpdateJob merges the patch onto the stored job, recomputes scheduling
// state when a schedule-affecting field changed and swaps the cron timer to
// match the result. Returns (nil, nil) when the job does not exist.
func (s *schedulerService) UpdateJob(ctx context.Context, id uint, patch *model.UpdateJobInput) (*model.ScheduledJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	applyPatch(job, patch)
	if err := validateJob(job); err != nil {
		return nil, err
	}

	s.crontab.Unschedule(id)

	if patch.ScheduleChanged() {
		now := s.clk.Now()
		job.NextRunAt = ComputeNextRun(job, now)
		if job.NextRunAt == nil && job.ScheduleType == model.ScheduleTypeOnce {
			job.NextRunAt = job.RunAt
		}
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.registerCronIfNeeded(ctx, job)

	s.log.InfoContext(ctx, "Job updated",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.Name),
	)
	return job, nil
}

// DeleteJob releases any cron timer before removing the job and its runs.
func (s *schedulerService) DeleteJob(ctx context.Context, id uint) (bool, error) {
	s.crontab.Unschedule(id)
	deleted, err := s.store.DeleteJob(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	if deleted {
		s.log.InfoContext(ctx, "Job deleted", logger.UintField("job_id", id))
	}
	return deleted, nil
}

// ToggleJob persists the enabled flag and registers or releases the cron
// timer to match. Returns (nil, nil) when the job does not exist.
func (s *schedulerService) ToggleJob(ctx context.Context, id uint, enabled bool) (*model.ScheduledJob, error) {
	job, err := s.store.ToggleJob(ctx, id, enabled)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	if job.ScheduleType == model.ScheduleTypeCron {
		if enabled {
			s.registerCronIfNeeded(ctx, job)
		} else {
			s.crontab.Unschedule(id)
		}
	}

	s.log.InfoContext(ctx, "Job toggled",
		logger.UintField("job_id", id),
		logger.BoolField("enabled", enabled),
	)
	return job, nil
}

// RunJobNow executes a job immediately, bypassing the poller and the cron
// timer. Post-execution bookkeeping still applies.
func (s *schedulerService) RunJobNow(ctx context.Context, id uint) (*ExecutionResult, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	s.log.InfoContext(ctx, "Running job manually",
		logger.UintField("job_id", id),
		logger.StringField("job_name", job.Name),
	)
	return s.executor.Execute(ctx, job)
}

func (s *schedulerService) GetJobRuns(ctx context.Context, jobID uint, limit int) ([]model.ScheduledJobRun, error) {
	return s.store.GetJobRuns(ctx, jobID, limit)
}

func (s *schedulerService) GetRecentRuns(ctx context.Context, limit int) ([]model.RunWithJobName, error) {
	return s.store.GetRecentRuns(ctx, limit)
}

// GetStats returns aggregate counters, cached briefly since they are
// advisory.
func (s *schedulerService) GetStats(ctx context.Context) (*model.SchedulerStats, error) {
	if cached, found := s.cache.Get(statsCacheKey); found {
		if stats, ok := cached.(*model.SchedulerStats); ok {
			return stats, nil
		}
	}

	stats, err := s.store.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	s.cache.Set(statsCacheKey, stats, s.cfg.Scheduler.StatsCacheTTL)
	return stats, nil
}

func (s *schedulerService) registerCronIfNeeded(ctx context.Context, job *model.ScheduledJob) {
	if job.ScheduleType != model.ScheduleTypeCron || !job.Enabled {
		return
	}
	if err := s.crontab.Schedule(job, s.cronCallback(job.ID)); err != nil {
		s.log.ErrorContext(ctx, "Failed to register cron timer",
			logger.ErrorField(err),
			logger.UintField("job_id", job.ID),
			logger.StringField("job_name", job.Name),
		)
	}
}

// validateJob enforces the schedule-descriptor invariants at create/update
// time so a job is never persisted in an invalid state.
func validateJob(job *model.ScheduledJob) error {
	switch job.ScheduleType {
	case model.ScheduleTypeCron:
		if job.CronExpression == nil || *job.CronExpression == "" {
			return fmt.Errorf("%w: cron job requires a cron expression", ErrValidation)
		}
		if !ValidateCronExpression(*job.CronExpression) {
			return fmt.Errorf("%w: invalid cron expression %q", ErrValidation, *job.CronExpression)
		}
	case model.ScheduleTypeRecurring:
		if job.IntervalMinutes == nil || *job.IntervalMinutes <= 0 {
			return fmt.Errorf("%w: recurring job requires a positive interval", ErrValidation)
		}
	case model.ScheduleTypeOnce:
		if job.RunAt == nil {
			return fmt.Errorf("%w: one-time job requires a run timestamp", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrValidation, job.ScheduleType)
	}

	switch job.Provider {
	case model.ProviderWhatsApp, model.ProviderSlack:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrValidation, job.Provider)
	}

	if job.Timezone != "" {
		if _, err := time.LoadLocation(job.Timezone); err != nil {
			return fmt.Errorf("%w: invalid timezone %q", ErrValidation, job.Timezone)
		}
	}
	return nil
}

func applyPatch(job *model.ScheduledJob, patch *model.UpdateJobInput) {
	if patch.Name != nil {
		job.Name = *patch.Name
	}
	if patch.ScheduleType != nil {
		job.ScheduleType = *patch.ScheduleType
	}
	if patch.CronExpression != nil {
		job.CronExpression = patch.CronExpression
	}
	if patch.IntervalMinutes != nil {
		job.IntervalMinutes = patch.IntervalMinutes
	}
	if patch.RunAt != nil {
		job.RunAt = patch.RunAt
	}
	if patch.Provider != nil {
		job.Provider = *patch.Provider
	}
	if patch.Target != nil {
		job.Target = *patch.Target
	}
	if patch.MessageTemplate != nil {
		job.MessageTemplate = *patch.MessageTemplate
	}
	if patch.ProviderOptions != nil {
		job.ProviderOptions = patch.ProviderOptions
	}
	if patch.Enabled != nil {
		job.Enabled = *patch.Enabled
	}
	if patch.Timezone != nil {
		job.Timezone = *patch.Timezone
	}
}
