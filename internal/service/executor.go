package service

import (
	"context"
	"fmt"
	"sync"

	"message-scheduler/internal/delivery/messenger"
	"message-scheduler/internal/model"
	"message-scheduler/internal/repository"
	"message-scheduler/pkg/logger"

	"github.com/benbjohnson/clock"
)

// ExecutionResult reports the outcome of one execution attempt. Err carries
// the delivery failure when Success is false.
type ExecutionResult struct {
	Success     bool
	MessageSent string
	Err         error
}

// JobExecutor is the single authoritative execution path for a job run,
// shared by the due-job poller, the cron dispatch callbacks and manual
// run-now requests.
type JobExecutor interface {
	Execute(ctx context.Context, job *model.ScheduledJob) (*ExecutionResult, error)
}

type jobExecutor struct {
	log    *logger.Logger
	store  repository.JobStore
	sender messenger.MessageSender
	clk    clock.Clock

	mu       sync.Mutex
	inflight map[uint]bool
}

func NewJobExecutor(log *logger.Logger, store repository.JobStore, sender messenger.MessageSender, clk clock.Clock) JobExecutor {
	return &jobExecutor{
		log:      log,
		store:    store,
		sender:   sender,
		clk:      clk,
		inflight: make(map[uint]bool),
	}
}

// Execute runs one job attempt: record start, render, deliver, record
// completion, update the job's post-run state. A trigger for a job that is
// still executing returns ErrJobAlreadyRunning instead of running twice.
// Exactly one run record is written per invocation; there are no automatic
// retries beyond the due-job mechanism's next natural tick.
func (e *jobExecutor) Execute(ctx context.Context, job *model.ScheduledJob) (*ExecutionResult, error) {
	if !e.acquire(job.ID) {
		e.log.WarnContext(ctx, "Job is already executing, skipping trigger",
			logger.UintField("job_id", job.ID),
			logger.StringField("job_name", job.Name),
		)
		return nil, ErrJobAlreadyRunning
	}
	defer e.release(job.ID)

	now := e.clk.Now()
	e.log.DebugContext(ctx, "Executing job",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.Name),
		logger.StringField("schedule_type", string(job.ScheduleType)),
		logger.StringField("provider", string(job.Provider)),
	)

	runID, err := e.store.RecordJobStart(ctx, job.ID, now)
	if err != nil {
		e.log.ErrorContext(ctx, "Failed to record job start",
			logger.ErrorField(err),
			logger.UintField("job_id", job.ID),
		)
		return nil, fmt.Errorf("failed to record job start: %w", err)
	}

	message := RenderTemplate(job.MessageTemplate, job, now)
	sendErr := e.deliver(ctx, job, message)

	completedAt := e.clk.Now()
	nextRun := ComputeNextRun(job, completedAt)

	if sendErr != nil {
		errMsg := sendErr.Error()
		if err := e.store.RecordJobCompletion(ctx, runID, false, nil, &errMsg); err != nil {
			e.log.ErrorContext(ctx, "Failed to record job completion",
				logger.ErrorField(err),
				logger.UintField("job_id", job.ID),
			)
		}
		// Failure does not stop future attempts; the next run is still
		// scheduled. One-time jobs retire inside UpdateJobAfterRun.
		if err := e.store.UpdateJobAfterRun(ctx, job.ID, completedAt, nextRun, &errMsg); err != nil {
			e.log.ErrorContext(ctx, "Failed to update job after run",
				logger.ErrorField(err),
				logger.UintField("job_id", job.ID),
			)
		}
		e.log.ErrorContextWithAlert(ctx, "Job delivery failed",
			logger.ErrorField(sendErr),
			logger.UintField("job_id", job.ID),
			logger.StringField("job_name", job.Name),
			logger.StringField("provider", string(job.Provider)),
		)
		return &ExecutionResult{Success: false, Err: sendErr}, nil
	}

	if err := e.store.RecordJobCompletion(ctx, runID, true, &message, nil); err != nil {
		e.log.ErrorContext(ctx, "Failed to record job completion",
			logger.ErrorField(err),
			logger.UintField("job_id", job.ID),
		)
	}
	if err := e.store.UpdateJobAfterRun(ctx, job.ID, completedAt, nextRun, nil); err != nil {
		e.log.ErrorContext(ctx, "Failed to update job after run",
			logger.ErrorField(err),
			logger.UintField("job_id", job.ID),
		)
	}

	e.log.InfoContext(ctx, "Job executed",
		logger.UintField("job_id", job.ID),
		logger.StringField("job_name", job.Name),
		logger.IntField("run_ordinal", job.RunCount+1),
	)
	return &ExecutionResult{Success: true, MessageSent: message}, nil
}

func (e *jobExecutor) deliver(ctx context.Context, job *model.ScheduledJob, message string) error {
	switch job.Provider {
	case model.ProviderWhatsApp:
		return e.sender.SendWhatsApp(ctx, job.Target, message, job.ProviderOptions)
	case model.ProviderSlack:
		return e.sender.SendSlack(ctx, job.Target, message, job.ProviderOptions)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, job.Provider)
	}
}

func (e *jobExecutor) acquire(jobID uint) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[jobID] {
		return false
	}
	e.inflight[jobID] = true
	return true
}

func (e *jobExecutor) release(jobID uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, jobID)
}
