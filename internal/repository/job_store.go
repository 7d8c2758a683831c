package repository

import (
	"context"
	"time"

	"message-scheduler/internal/model"
	"message-scheduler/pkg/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// JobStore is the durable source of truth for schedule definitions and run
// history. Missing ids are reported as (nil, nil) so callers can distinguish
// "not found" from "call failed".
type JobStore interface {
	Initialize(ctx context.Context) error
	CreateJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error
	GetJob(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduledJob, error)
	GetAllJobs(ctx context.Context, opts ...utils.DBOption) ([]model.ScheduledJob, error)
	SaveJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error
	DeleteJob(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error)
	ToggleJob(ctx context.Context, id uint, enabled bool, opts ...utils.DBOption) (*model.ScheduledJob, error)
	GetDueJobs(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.ScheduledJob, error)
	RecordJobStart(ctx context.Context, jobID uint, startedAt time.Time, opts ...utils.DBOption) (uint, error)
	RecordJobCompletion(ctx context.Context, runID uint, success bool, output, errMsg *string, opts ...utils.DBOption) error
	UpdateJobAfterRun(ctx context.Context, jobID uint, ranAt time.Time, nextRunAt *time.Time, errMsg *string, opts ...utils.DBOption) error
	GetJobRuns(ctx context.Context, jobID uint, limit int, opts ...utils.DBOption) ([]model.ScheduledJobRun, error)
	GetRecentRuns(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.RunWithJobName, error)
	GetStats(ctx context.Context) (*model.SchedulerStats, error)
}

type jobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) JobStore {
	return &jobStore{db: db}
}

func (s *jobStore) Initialize(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *jobStore) CreateJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error {
	return utils.ApplyOptions(s.db.WithContext(ctx), opts...).Create(job).Error
}

func (s *jobStore) GetJob(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduledJob, error) {
	var job model.ScheduledJob
	err := utils.ApplyOptions(s.db.WithContext(ctx), opts...).First(&job, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (s *jobStore) GetAllJobs(ctx context.Context, opts ...utils.DBOption) ([]model.ScheduledJob, error) {
	var jobs []model.ScheduledJob
	err := utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Order("id ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *jobStore) SaveJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error {
	return utils.ApplyOptions(s.db.WithContext(ctx), opts...).Save(job).Error
}

func (s *jobStore) DeleteJob(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(s.db.WithContext(ctx), opts...)
	if err := db.Where("job_id = ?", id).Delete(&model.ScheduledJobRun{}).Error; err != nil {
		return false, err
	}
	result := db.Delete(&model.ScheduledJob{}, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *jobStore) ToggleJob(ctx context.Context, id uint, enabled bool, opts ...utils.DBOption) (*model.ScheduledJob, error) {
	db := utils.ApplyOptions(s.db.WithContext(ctx), opts...)
	result := db.Model(&model.ScheduledJob{}).Where("id = ?", id).Update("enabled", enabled)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return s.GetJob(ctx, id)
}

// GetDueJobs returns enabled recurring/once jobs whose next run has passed.
// Cron jobs are excluded here; their timing is owned by the cron dispatch
// table and must never double-fire through the poller.
func (s *jobStore) GetDueJobs(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.ScheduledJob, error) {
	var jobs []model.ScheduledJob
	err := utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Where("enabled = ?", true).
		Where("schedule_type IN ?", []model.ScheduleType{model.ScheduleTypeRecurring, model.ScheduleTypeOnce}).
		Where("next_run_at IS NOT NULL AND next_run_at <= ?", now).
		Order("next_run_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *jobStore) RecordJobStart(ctx context.Context, jobID uint, startedAt time.Time, opts ...utils.DBOption) (uint, error) {
	run := &model.ScheduledJobRun{
		JobID:     jobID,
		StartedAt: startedAt,
	}
	if err := utils.ApplyOptions(s.db.WithContext(ctx), opts...).Create(run).Error; err != nil {
		return 0, err
	}
	return run.ID, nil
}

func (s *jobStore) RecordJobCompletion(ctx context.Context, runID uint, success bool, output, errMsg *string, opts ...utils.DBOption) error {
	updates := map[string]interface{}{
		"completed_at": time.Now(),
		"success":      success,
		"output":       output,
		"error":        errMsg,
	}
	return utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Model(&model.ScheduledJobRun{}).
		Where("id = ?", runID).
		Updates(updates).Error
}

// UpdateJobAfterRun applies the post-execution bookkeeping in a single
// update: bump run_count, stamp last_run_at, move next_run_at, record or
// clear last_error, and retire one-time jobs whether they succeeded or not.
func (s *jobStore) UpdateJobAfterRun(ctx context.Context, jobID uint, ranAt time.Time, nextRunAt *time.Time, errMsg *string, opts ...utils.DBOption) error {
	updates := map[string]interface{}{
		"run_count":   gorm.Expr("run_count + 1"),
		"last_run_at": ranAt,
		"next_run_at": nextRunAt,
		"last_error":  errMsg,
		"enabled":     gorm.Expr("CASE WHEN schedule_type = ? THEN false ELSE enabled END", model.ScheduleTypeOnce),
	}
	return utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Model(&model.ScheduledJob{}).
		Where("id = ?", jobID).
		Updates(updates).Error
}

func (s *jobStore) GetJobRuns(ctx context.Context, jobID uint, limit int, opts ...utils.DBOption) ([]model.ScheduledJobRun, error) {
	var runs []model.ScheduledJobRun
	db := utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Where("job_id = ?", jobID).
		Order("started_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *jobStore) GetRecentRuns(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.RunWithJobName, error) {
	var runs []model.RunWithJobName
	db := utils.ApplyOptions(s.db.WithContext(ctx), opts...).
		Model(&model.ScheduledJobRun{}).
		Select("scheduled_job_runs.*, scheduled_jobs.name AS job_name").
		Joins("JOIN scheduled_jobs ON scheduled_jobs.id = scheduled_job_runs.job_id").
		Order("scheduled_job_runs.started_at DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *jobStore) GetStats(ctx context.Context) (*model.SchedulerStats, error) {
	stats := &model.SchedulerStats{}

	g, gctx := errgroup.WithContext(ctx)

	countJobs := func(dest *int64, conds ...interface{}) func() error {
		return func() error {
			db := s.db.WithContext(gctx).Model(&model.ScheduledJob{})
			if len(conds) > 0 {
				db = db.Where(conds[0], conds[1:]...)
			}
			return db.Count(dest).Error
		}
	}
	countRuns := func(dest *int64, conds ...interface{}) func() error {
		return func() error {
			db := s.db.WithContext(gctx).Model(&model.ScheduledJobRun{})
			if len(conds) > 0 {
				db = db.Where(conds[0], conds[1:]...)
			}
			return db.Count(dest).Error
		}
	}

	g.Go(countJobs(&stats.TotalJobs))
	g.Go(countJobs(&stats.EnabledJobs, "enabled = ?", true))
	g.Go(countJobs(&stats.CronJobs, "schedule_type = ?", model.ScheduleTypeCron))
	g.Go(countJobs(&stats.RecurringJobs, "schedule_type = ?", model.ScheduleTypeRecurring))
	g.Go(countJobs(&stats.OnceJobs, "schedule_type = ?", model.ScheduleTypeOnce))
	g.Go(countRuns(&stats.TotalRuns))
	g.Go(countRuns(&stats.SuccessfulRuns, "success = ? AND completed_at IS NOT NULL", true))
	g.Go(countRuns(&stats.FailedRuns, "success = ? AND completed_at IS NOT NULL", false))
	g.Go(countRuns(&stats.RunsLast24h, "started_at >= ?", time.Now().Add(-24*time.Hour)))
	g.Go(func() error {
		var last model.ScheduledJobRun
		err := s.db.WithContext(gctx).
			Order("started_at DESC").
			First(&last).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		stats.LastRunAt = &last.StartedAt
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
