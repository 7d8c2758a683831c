package service

import (
	"context"
	"testing"
	"time"

	"message-scheduler/config"
	"message-scheduler/internal/model"
	"message-scheduler/pkg/logger"
	"message-scheduler/pkg/utils"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type schedulerFixture struct {
	svc    *schedulerService
	store  *fakeStore
	sender *fakeSender
	clk    *clock.Mock
	cache  *fakeCache
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Scheduler.PollInterval = time.Minute
	cfg.Scheduler.DefaultTimezone = "UTC"
	cfg.Scheduler.StatsCacheTTL = 30 * time.Second

	store := newFakeStore()
	sender := &fakeSender{}
	clk := clock.NewMock()
	clk.Set(time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC))
	c := newFakeCache()

	log := logger.NewNop()
	executor := NewJobExecutor(log, store, sender, clk)
	svc := NewSchedulerService(cfg, log, store, executor, clk, c).(*schedulerService)
	t.Cleanup(svc.Stop)

	return &schedulerFixture{svc: svc, store: store, sender: sender, clk: clk, cache: c}
}

func recurringJob(name string, minutes int) *model.ScheduledJob {
	return &model.ScheduledJob{
		Name:            name,
		ScheduleType:    model.ScheduleTypeRecurring,
		IntervalMinutes: utils.ToPointer(minutes),
		Provider:        model.ProviderSlack,
		Target:          "#general",
		MessageTemplate: "hello",
		Enabled:         true,
	}
}

// advance moves the mock clock one poll interval and yields so the poller
// goroutine can observe the tick.
func (f *schedulerFixture) advance() {
	f.clk.Add(time.Minute)
	time.Sleep(5 * time.Millisecond)
}

func TestStartStopAreIdempotent(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Start(ctx))
	require.NoError(t, f.svc.Start(ctx))

	f.svc.Stop()
	f.svc.Stop()
}

func TestStartRegistersPersistedCronJobs(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	good := cronJob(0, "morning-report", "0 9 * * *")
	require.NoError(t, f.store.CreateJob(ctx, good))
	bad := cronJob(0, "broken", "not a cron")
	require.NoError(t, f.store.CreateJob(ctx, bad))
	disabled := cronJob(0, "paused", "0 12 * * *")
	disabled.Enabled = false
	require.NoError(t, f.store.CreateJob(ctx, disabled))

	require.NoError(t, f.svc.Start(ctx))

	// Only the valid enabled cron job gets a timer; the broken one is
	// reported and stays dormant rather than failing startup.
	assert.Equal(t, 1, f.svc.crontab.Len())
}

func TestPollerExecutesDueRecurringJob(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, recurringJob("digest", 1))
	require.NoError(t, err)
	require.NotNil(t, created.NextRunAt)

	require.NoError(t, f.svc.Start(ctx))

	require.Eventually(t, func() bool {
		f.advance()
		return len(f.store.runsForJob(created.ID)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	updated := f.store.jobByID(created.ID)
	assert.GreaterOrEqual(t, updated.RunCount, 1)
	require.NotNil(t, updated.NextRunAt)
}

func TestPollerRunsPastDueOnceJobExactlyOnce(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	runAt := f.clk.Now().Add(-time.Hour)
	job := &model.ScheduledJob{
		Name:            "belated-announcement",
		ScheduleType:    model.ScheduleTypeOnce,
		RunAt:           &runAt,
		Provider:        model.ProviderWhatsApp,
		Target:          "+628111222333",
		MessageTemplate: "better late",
		Enabled:         true,
	}
	created, err := f.svc.CreateJob(ctx, job)
	require.NoError(t, err)
	// A run time already in the past makes the job due immediately.
	require.NotNil(t, created.NextRunAt)
	assert.True(t, created.NextRunAt.Equal(runAt))

	require.NoError(t, f.svc.Start(ctx))

	require.Eventually(t, func() bool {
		f.advance()
		return len(f.store.runsForJob(created.ID)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Further ticks never pick it up again.
	for i := 0; i < 5; i++ {
		f.advance()
	}
	assert.Len(t, f.store.runsForJob(created.ID), 1)

	updated := f.store.jobByID(created.ID)
	assert.False(t, updated.Enabled)
	assert.Nil(t, updated.NextRunAt)
}

func TestPollerSurvivesStoreFailure(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, recurringJob("resilient", 1))
	require.NoError(t, err)

	f.store.setFailDueQuery(true)
	require.NoError(t, f.svc.Start(ctx))

	for i := 0; i < 3; i++ {
		f.advance()
	}
	assert.Empty(t, f.store.runsForJob(created.ID))

	// The loop resumes on the next interval once the store recovers.
	f.store.setFailDueQuery(false)
	require.Eventually(t, func() bool {
		f.advance()
		return len(f.store.runsForJob(created.ID)) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCreateJobValidation(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	base := func() *model.ScheduledJob { return recurringJob("valid", 5) }

	tests := []struct {
		name   string
		mutate func(*model.ScheduledJob)
	}{
		{"cron without expression", func(j *model.ScheduledJob) {
			j.ScheduleType = model.ScheduleTypeCron
			j.IntervalMinutes = nil
		}},
		{"cron with invalid expression", func(j *model.ScheduledJob) {
			j.ScheduleType = model.ScheduleTypeCron
			j.CronExpression = utils.ToPointer("@daily")
		}},
		{"recurring without interval", func(j *model.ScheduledJob) {
			j.IntervalMinutes = nil
		}},
		{"recurring with zero interval", func(j *model.ScheduledJob) {
			j.IntervalMinutes = utils.ToPointer(0)
		}},
		{"once without run_at", func(j *model.ScheduledJob) {
			j.ScheduleType = model.ScheduleTypeOnce
			j.IntervalMinutes = nil
		}},
		{"unknown schedule type", func(j *model.ScheduledJob) {
			j.ScheduleType = model.ScheduleType("hourly")
		}},
		{"unknown provider", func(j *model.ScheduledJob) {
			j.Provider = model.Provider("telegram")
		}},
		{"invalid timezone", func(j *model.ScheduledJob) {
			j.Timezone = "Not/AZone"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := base()
			tt.mutate(job)
			_, err := f.svc.CreateJob(ctx, job)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	jobs, err := f.svc.GetAllJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs, "invalid jobs must never be persisted")
}

func TestCreateJobInitialState(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()
	now := f.clk.Now()

	recurring, err := f.svc.CreateJob(ctx, recurringJob("every-15", 15))
	require.NoError(t, err)
	require.NotNil(t, recurring.NextRunAt)
	assert.True(t, recurring.NextRunAt.Equal(now.Add(15*time.Minute)))
	assert.Equal(t, "UTC", recurring.Timezone)

	cronJ := cronJob(0, "weekday-standup", "0 9 * * 1-5")
	created, err := f.svc.CreateJob(ctx, cronJ)
	require.NoError(t, err)
	// Cron timing is owned by the dispatch table, not next_run_at.
	assert.Nil(t, created.NextRunAt)
	assert.Equal(t, 1, f.svc.crontab.Len())

	future := now.Add(time.Hour)
	once, err := f.svc.CreateJob(ctx, &model.ScheduledJob{
		Name:            "reminder",
		ScheduleType:    model.ScheduleTypeOnce,
		RunAt:           &future,
		Provider:        model.ProviderSlack,
		Target:          "#me",
		MessageTemplate: "now",
		Enabled:         true,
	})
	require.NoError(t, err)
	require.NotNil(t, once.NextRunAt)
	assert.True(t, once.NextRunAt.Equal(future))
}

func TestUpdateJobMissingReturnsNil(t *testing.T) {
	f := newSchedulerFixture(t)

	job, err := f.svc.UpdateJob(context.Background(), 99, &model.UpdateJobInput{
		Name: utils.ToPointer("ghost"),
	})
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestUpdateJobRecomputesScheduleOnlyWhenChanged(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, recurringJob("tunable", 5))
	require.NoError(t, err)
	originalNext := *created.NextRunAt

	// A rename leaves the schedule alone.
	renamed, err := f.svc.UpdateJob(ctx, created.ID, &model.UpdateJobInput{
		Name: utils.ToPointer("tunable-v2"),
	})
	require.NoError(t, err)
	require.NotNil(t, renamed.NextRunAt)
	assert.True(t, renamed.NextRunAt.Equal(originalNext))

	// Changing the interval recomputes from the current time.
	f.clk.Add(2 * time.Minute)
	widened, err := f.svc.UpdateJob(ctx, created.ID, &model.UpdateJobInput{
		IntervalMinutes: utils.ToPointer(30),
	})
	require.NoError(t, err)
	require.NotNil(t, widened.NextRunAt)
	assert.True(t, widened.NextRunAt.Equal(f.clk.Now().Add(30*time.Minute)))
}

func TestUpdateJobSwitchingToCronDropsNextRun(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, recurringJob("promoted", 5))
	require.NoError(t, err)
	require.NotNil(t, created.NextRunAt)

	updated, err := f.svc.UpdateJob(ctx, created.ID, &model.UpdateJobInput{
		ScheduleType:   utils.ToPointer(model.ScheduleTypeCron),
		CronExpression: utils.ToPointer("0 9 * * *"),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.NextRunAt)
	assert.Equal(t, 1, f.svc.crontab.Len())
}

func TestUpdateJobRejectsInvalidPatch(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, recurringJob("stable", 5))
	require.NoError(t, err)

	_, err = f.svc.UpdateJob(ctx, created.ID, &model.UpdateJobInput{
		IntervalMinutes: utils.ToPointer(-1),
	})
	assert.ErrorIs(t, err, ErrValidation)

	// The stored job keeps its previous interval.
	stored := f.store.jobByID(created.ID)
	assert.Equal(t, 5, *stored.IntervalMinutes)
}

func TestToggleJobManagesCronTimer(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, cronJob(0, "toggle-me", "0 9 * * *"))
	require.NoError(t, err)
	require.Equal(t, 1, f.svc.crontab.Len())

	disabled, err := f.svc.ToggleJob(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.Equal(t, 0, f.svc.crontab.Len())

	enabled, err := f.svc.ToggleJob(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Equal(t, 1, f.svc.crontab.Len())

	missing, err := f.svc.ToggleJob(ctx, 99, true)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeleteJobReleasesCronTimer(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateJob(ctx, cronJob(0, "short-lived", "0 9 * * *"))
	require.NoError(t, err)
	require.Equal(t, 1, f.svc.crontab.Len())

	deleted, err := f.svc.DeleteJob(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, 0, f.svc.crontab.Len())

	deleted, err = f.svc.DeleteJob(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRunJobNow(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := f.svc.RunJobNow(ctx, 42)
	assert.ErrorIs(t, err, ErrJobNotFound)

	created, err := f.svc.CreateJob(ctx, recurringJob("on-demand", 60))
	require.NoError(t, err)

	result, err := f.svc.RunJobNow(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, f.store.runsForJob(created.ID), 1)
}

func TestGetStatsUsesCache(t *testing.T) {
	f := newSchedulerFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, recurringJob("first", 5))
	require.NoError(t, err)

	stats, err := f.svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalJobs)

	// A second read within the TTL serves the cached snapshot.
	_, err = f.svc.CreateJob(ctx, recurringJob("second", 5))
	require.NoError(t, err)

	cached, err := f.svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.TotalJobs)

	f.cache.Flush()
	fresh, err := f.svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.TotalJobs)
}
