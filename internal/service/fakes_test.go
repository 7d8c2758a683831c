package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"message-scheduler/internal/model"
	"message-scheduler/pkg/utils"

	"gorm.io/datatypes"
)

// fakeStore is an in-memory JobStore mirroring the gorm implementation's
// semantics, including the one-time-job retirement in UpdateJobAfterRun.
type fakeStore struct {
	mu        sync.Mutex
	jobs      map[uint]*model.ScheduledJob
	runs      map[uint]*model.ScheduledJobRun
	nextJobID uint
	nextRunID uint

	failDueQuery bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs: make(map[uint]*model.ScheduledJob),
		runs: make(map[uint]*model.ScheduledJobRun),
	}
}

func (f *fakeStore) Initialize(ctx context.Context) error { return nil }

func (f *fakeStore) CreateJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextJobID++
	job.ID = f.nextJobID
	job.CreatedAt = time.Now()
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, id uint, opts ...utils.DBOption) (*model.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	clone := *job
	return &clone, nil
}

func (f *fakeStore) GetAllJobs(ctx context.Context, opts ...utils.DBOption) ([]model.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	jobs := make([]model.ScheduledJob, 0, len(f.jobs))
	for _, job := range f.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (f *fakeStore) SaveJob(ctx context.Context, job *model.ScheduledJob, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *job
	f.jobs[job.ID] = &clone
	return nil
}

func (f *fakeStore) DeleteJob(ctx context.Context, id uint, opts ...utils.DBOption) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return false, nil
	}
	delete(f.jobs, id)
	for runID, run := range f.runs {
		if run.JobID == id {
			delete(f.runs, runID)
		}
	}
	return true, nil
}

func (f *fakeStore) ToggleJob(ctx context.Context, id uint, enabled bool, opts ...utils.DBOption) (*model.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	job.Enabled = enabled
	clone := *job
	return &clone, nil
}

func (f *fakeStore) GetDueJobs(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.ScheduledJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDueQuery {
		return nil, errors.New("store unreachable")
	}
	var due []model.ScheduledJob
	for _, job := range f.jobs {
		if !job.Enabled || job.ScheduleType == model.ScheduleTypeCron {
			continue
		}
		if job.NextRunAt != nil && !job.NextRunAt.After(now) {
			due = append(due, *job)
		}
	}
	return due, nil
}

func (f *fakeStore) RecordJobStart(ctx context.Context, jobID uint, startedAt time.Time, opts ...utils.DBOption) (uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRunID++
	f.runs[f.nextRunID] = &model.ScheduledJobRun{
		ID:        f.nextRunID,
		JobID:     jobID,
		StartedAt: startedAt,
	}
	return f.nextRunID, nil
}

func (f *fakeStore) RecordJobCompletion(ctx context.Context, runID uint, success bool, output, errMsg *string, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return errors.New("run not found")
	}
	now := time.Now()
	run.CompletedAt = &now
	run.Success = success
	run.Output = output
	run.Error = errMsg
	return nil
}

func (f *fakeStore) UpdateJobAfterRun(ctx context.Context, jobID uint, ranAt time.Time, nextRunAt *time.Time, errMsg *string, opts ...utils.DBOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}
	job.RunCount++
	job.LastRunAt = &ranAt
	job.NextRunAt = nextRunAt
	job.LastError = errMsg
	if job.ScheduleType == model.ScheduleTypeOnce {
		job.Enabled = false
	}
	return nil
}

func (f *fakeStore) GetJobRuns(ctx context.Context, jobID uint, limit int, opts ...utils.DBOption) ([]model.ScheduledJobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []model.ScheduledJobRun
	for _, run := range f.runs {
		if run.JobID == jobID {
			runs = append(runs, *run)
		}
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (f *fakeStore) GetRecentRuns(ctx context.Context, limit int, opts ...utils.DBOption) ([]model.RunWithJobName, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []model.RunWithJobName
	for _, run := range f.runs {
		name := ""
		if job, ok := f.jobs[run.JobID]; ok {
			name = job.Name
		}
		runs = append(runs, model.RunWithJobName{ScheduledJobRun: *run, JobName: name})
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (f *fakeStore) GetStats(ctx context.Context) (*model.SchedulerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.SchedulerStats{}
	for _, job := range f.jobs {
		stats.TotalJobs++
		if job.Enabled {
			stats.EnabledJobs++
		}
	}
	for _, run := range f.runs {
		stats.TotalRuns++
		if run.CompletedAt != nil {
			if run.Success {
				stats.SuccessfulRuns++
			} else {
				stats.FailedRuns++
			}
		}
	}
	return stats, nil
}

func (f *fakeStore) setFailDueQuery(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDueQuery = fail
}

func (f *fakeStore) runsForJob(jobID uint) []model.ScheduledJobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	var runs []model.ScheduledJobRun
	for _, run := range f.runs {
		if run.JobID == jobID {
			runs = append(runs, *run)
		}
	}
	return runs
}

func (f *fakeStore) jobByID(jobID uint) *model.ScheduledJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil
	}
	clone := *job
	return &clone
}

type sentMessage struct {
	provider string
	target   string
	message  string
}

// fakeSender records deliveries and can be told to fail or to block until
// released, for exercising the per-job execution guard.
type fakeSender struct {
	mu       sync.Mutex
	sent     []sentMessage
	failWith error

	started chan struct{}
	gate    chan struct{}
}

func (f *fakeSender) SendWhatsApp(ctx context.Context, target, message string, opts datatypes.JSON) error {
	return f.send("whatsapp", target, message)
}

func (f *fakeSender) SendSlack(ctx context.Context, target, message string, opts datatypes.JSON) error {
	return f.send("slack", target, message)
}

func (f *fakeSender) send(provider, target, message string) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.sent = append(f.sent, sentMessage{provider: provider, target: target, message: message})
	return nil
}

func (f *fakeSender) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeCache is a trivial cache.Cache for tests.
type fakeCache struct {
	mu    sync.Mutex
	items map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{items: make(map[string]interface{})}
}

func (c *fakeCache) Set(key string, value interface{}, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = value
}

func (c *fakeCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *fakeCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *fakeCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]interface{})
}
