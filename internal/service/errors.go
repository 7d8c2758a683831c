package service

import "errors"

var (
	// ErrJobNotFound is returned by operations that need an existing job.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyRunning marks a trigger that arrived while the same job
	// was still executing; the trigger is skipped, not queued.
	ErrJobAlreadyRunning = errors.New("job is already running")

	// ErrUnknownProvider marks a job whose provider is neither whatsapp nor
	// slack. This is a hard error, never silently ignored.
	ErrUnknownProvider = errors.New("unknown message provider")

	// ErrValidation wraps schedule-descriptor validation failures at
	// create/update time.
	ErrValidation = errors.New("invalid job definition")
)
