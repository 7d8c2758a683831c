package model

import (
	"time"

	"gorm.io/datatypes"
)

type ScheduleType string

const (
	ScheduleTypeCron      ScheduleType = "cron"
	ScheduleTypeRecurring ScheduleType = "recurring"
	ScheduleTypeOnce      ScheduleType = "once"
)

type Provider string

const (
	ProviderWhatsApp Provider = "whatsapp"
	ProviderSlack    Provider = "slack"
)

// ScheduledJob is a named, persistent schedule definition. Exactly one of
// CronExpression, IntervalMinutes or RunAt is meaningful, selected by
// ScheduleType. NextRunAt is nil for cron jobs, whose timing is owned by the
// cron dispatch table, and nil for one-time jobs after they have fired.
type ScheduledJob struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	ScheduleType    ScheduleType `gorm:"type:varchar(50);not null" json:"schedule_type"`
	CronExpression  *string      `gorm:"type:varchar(100)" json:"cron_expression,omitempty"`
	IntervalMinutes *int         `json:"interval_minutes,omitempty"`
	RunAt           *time.Time   `json:"run_at,omitempty"`
	Provider        Provider     `gorm:"type:varchar(50);not null" json:"provider"`
	Target          string       `gorm:"type:varchar(255);not null" json:"target"`
	MessageTemplate string       `gorm:"type:text;not null" json:"message_template"`
	ProviderOptions datatypes.JSON `gorm:"type:jsonb" json:"provider_options,omitempty"`
	Enabled         bool         `gorm:"default:true" json:"enabled"`
	Timezone        string       `gorm:"type:varchar(100)" json:"timezone"`
	NextRunAt       *time.Time   `json:"next_run_at,omitempty"`
	LastRunAt       *time.Time   `json:"last_run_at,omitempty"`
	RunCount        int          `gorm:"default:0" json:"run_count"`
	LastError       *string      `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt       time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"autoUpdateTime" json:"updated_at"`

	Runs []ScheduledJobRun `gorm:"foreignKey:JobID" json:"runs,omitempty"`
}

func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}

// UpdateJobInput is a partial patch merged onto a stored job. Nil fields are
// left untouched.
type UpdateJobInput struct {
	Name            *string       `json:"name"`
	ScheduleType    *ScheduleType `json:"schedule_type"`
	CronExpression  *string       `json:"cron_expression"`
	IntervalMinutes *int          `json:"interval_minutes"`
	RunAt           *time.Time    `json:"run_at"`
	Provider        *Provider     `json:"provider"`
	Target          *string       `json:"target"`
	MessageTemplate *string       `json:"message_template"`
	ProviderOptions datatypes.JSON `json:"provider_options"`
	Enabled         *bool         `json:"enabled"`
	Timezone        *string       `json:"timezone"`
}

// ScheduleChanged reports whether the patch touches any field that affects
// when the job fires.
func (in *UpdateJobInput) ScheduleChanged() bool {
	return in.ScheduleType != nil ||
		in.CronExpression != nil ||
		in.IntervalMinutes != nil ||
		in.RunAt != nil ||
		in.Timezone != nil
}
