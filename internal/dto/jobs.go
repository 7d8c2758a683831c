package dto

import (
	"time"

	"message-scheduler/internal/model"

	"gorm.io/datatypes"
)

type CreateJobRequest struct {
	Name            string         `json:"name" validate:"required,max=255"`
	ScheduleType    string         `json:"schedule_type" validate:"required,oneof=cron recurring once"`
	CronExpression  *string        `json:"cron_expression"`
	IntervalMinutes *int           `json:"interval_minutes" validate:"omitempty,gt=0"`
	RunAt           *time.Time     `json:"run_at"`
	Provider        string         `json:"provider" validate:"required,oneof=whatsapp slack"`
	Target          string         `json:"target" validate:"required"`
	MessageTemplate string         `json:"message_template" validate:"required"`
	ProviderOptions datatypes.JSON `json:"provider_options"`
	Enabled         *bool          `json:"enabled"`
	Timezone        string         `json:"timezone"`
}

func (r *CreateJobRequest) ToModel() *model.ScheduledJob {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &model.ScheduledJob{
		Name:            r.Name,
		ScheduleType:    model.ScheduleType(r.ScheduleType),
		CronExpression:  r.CronExpression,
		IntervalMinutes: r.IntervalMinutes,
		RunAt:           r.RunAt,
		Provider:        model.Provider(r.Provider),
		Target:          r.Target,
		MessageTemplate: r.MessageTemplate,
		ProviderOptions: r.ProviderOptions,
		Enabled:         enabled,
		Timezone:        r.Timezone,
	}
}

type UpdateJobRequest struct {
	Name            *string        `json:"name" validate:"omitempty,max=255"`
	ScheduleType    *string        `json:"schedule_type" validate:"omitempty,oneof=cron recurring once"`
	CronExpression  *string        `json:"cron_expression"`
	IntervalMinutes *int           `json:"interval_minutes" validate:"omitempty,gt=0"`
	RunAt           *time.Time     `json:"run_at"`
	Provider        *string        `json:"provider" validate:"omitempty,oneof=whatsapp slack"`
	Target          *string        `json:"target"`
	MessageTemplate *string        `json:"message_template"`
	ProviderOptions datatypes.JSON `json:"provider_options"`
	Enabled         *bool          `json:"enabled"`
	Timezone        *string        `json:"timezone"`
}

func (r *UpdateJobRequest) ToInput() *model.UpdateJobInput {
	input := &model.UpdateJobInput{
		Name:            r.Name,
		CronExpression:  r.CronExpression,
		IntervalMinutes: r.IntervalMinutes,
		RunAt:           r.RunAt,
		Target:          r.Target,
		MessageTemplate: r.MessageTemplate,
		ProviderOptions: r.ProviderOptions,
		Enabled:         r.Enabled,
		Timezone:        r.Timezone,
	}
	if r.ScheduleType != nil {
		st := model.ScheduleType(*r.ScheduleType)
		input.ScheduleType = &st
	}
	if r.Provider != nil {
		p := model.Provider(*r.Provider)
		input.Provider = &p
	}
	return input
}

type ToggleJobRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type CronExpressionRequest struct {
	Expression string `json:"expression" validate:"required"`
}

type CronExpressionResponse struct {
	Expression  string `json:"expression"`
	Valid       bool   `json:"valid"`
	Description string `json:"description"`
}

type RunJobResponse struct {
	Success     bool   `json:"success"`
	MessageSent string `json:"message_sent,omitempty"`
	Error       string `json:"error,omitempty"`
}
