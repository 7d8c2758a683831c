package service

import (
	"message-scheduler/config"
	"message-scheduler/internal/delivery/messenger"
	"message-scheduler/internal/repository"
	"message-scheduler/pkg/cache"
	"message-scheduler/pkg/logger"

	"github.com/benbjohnson/clock"
)

type Service struct {
	SchedulerService SchedulerService
	JobExecutor      JobExecutor
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	sender messenger.MessageSender,
) *Service {
	clk := clock.New()
	executor := NewJobExecutor(log, repo.JobStore, sender, clk)
	scheduler := NewSchedulerService(cfg, log, repo.JobStore, executor, clk, inmemoryCache)
	return &Service{
		SchedulerService: scheduler,
		JobExecutor:      executor,
	}
}
