package service

import (
	"testing"
	"time"

	"message-scheduler/internal/model"
	"message-scheduler/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNextRun(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Hour)
	past := now.Add(-2 * time.Hour)

	tests := []struct {
		name string
		job  *model.ScheduledJob
		want *time.Time
	}{
		{
			name: "once with future run_at returns run_at",
			job: &model.ScheduledJob{
				ScheduleType: model.ScheduleTypeOnce,
				RunAt:        &future,
			},
			want: &future,
		},
		{
			name: "once with past run_at returns nil",
			job: &model.ScheduledJob{
				ScheduleType: model.ScheduleTypeOnce,
				RunAt:        &past,
			},
			want: nil,
		},
		{
			name: "once with run_at exactly now returns nil",
			job: &model.ScheduledJob{
				ScheduleType: model.ScheduleTypeOnce,
				RunAt:        &now,
			},
			want: nil,
		},
		{
			name: "recurring returns now plus interval",
			job: &model.ScheduledJob{
				ScheduleType:    model.ScheduleTypeRecurring,
				IntervalMinutes: utils.ToPointer(15),
			},
			want: utils.ToPointer(now.Add(15 * time.Minute)),
		},
		{
			name: "recurring without interval returns nil",
			job: &model.ScheduledJob{
				ScheduleType: model.ScheduleTypeRecurring,
			},
			want: nil,
		},
		{
			name: "cron always returns nil",
			job: &model.ScheduledJob{
				ScheduleType:   model.ScheduleTypeCron,
				CronExpression: utils.ToPointer("0 9 * * 1-5"),
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeNextRun(tt.job, now)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(*tt.want), "want %v, got %v", tt.want, got)
		})
	}
}

func TestComputeNextRunDoesNotMutateJob(t *testing.T) {
	now := time.Now()
	interval := 5
	job := &model.ScheduledJob{
		ScheduleType:    model.ScheduleTypeRecurring,
		IntervalMinutes: &interval,
	}

	first := ComputeNextRun(job, now)
	second := ComputeNextRun(job, now)

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.True(t, first.Equal(*second))
	assert.Equal(t, 5, *job.IntervalMinutes)
	assert.Nil(t, job.NextRunAt)
}
