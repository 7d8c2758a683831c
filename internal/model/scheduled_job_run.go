package model

import (
	"time"
)

// ScheduledJobRun is the audit record of one execution attempt. A row is
// created when the attempt starts and completed exactly once; it is never
// mutated afterwards.
type ScheduledJobRun struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobID       uint       `gorm:"not null;index" json:"job_id"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Success     bool       `gorm:"default:false" json:"success"`
	Output      *string    `gorm:"type:text" json:"output,omitempty"`
	Error       *string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (ScheduledJobRun) TableName() string {
	return "scheduled_job_runs"
}

// RunWithJobName joins a run with its job's name for global run listings.
type RunWithJobName struct {
	ScheduledJobRun
	JobName string `json:"job_name"`
}
