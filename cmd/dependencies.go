package cmd

import (
	"context"

	"message-scheduler/config"
	"message-scheduler/internal/delivery/messenger"
	"message-scheduler/pkg/cache"
	"message-scheduler/pkg/logger"
	"message-scheduler/pkg/postgres"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AppDependency struct {
	db        *postgres.DB
	cfg       *config.Config
	log       *logger.Logger
	validator *goValidator.Validate
	echo      *echo.Echo
	cache     cache.Cache
	sender    *messenger.Sender
}

func NewAppDependency(ctx context.Context) (*AppDependency, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, err
	}
	if cfg.Slack.AlertWebhookURL != "" {
		log = logger.WithSlackAlerts(log, cfg.Slack.AlertWebhookURL, zapcore.ErrorLevel)
	}

	db, err := postgres.NewDB(cfg.DB, log)
	if err != nil {
		log.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true

	return &AppDependency{
		cfg:       cfg,
		log:       log,
		validator: goValidator.New(),
		db:        db,
		echo:      e,
		cache:     cache.NewCache(cfg.Scheduler.StatsCacheTTL, 2*cfg.Scheduler.StatsCacheTTL),
		sender:    messenger.NewSender(cfg, log),
	}, nil
}

func (d *AppDependency) Close() error {
	d.log.Info("Closing app dependency")
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
