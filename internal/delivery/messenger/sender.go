package messenger

import (
	"context"
	"time"

	"message-scheduler/config"
	"message-scheduler/pkg/httpclient"
	"message-scheduler/pkg/logger"
	"message-scheduler/pkg/ratelimit"

	"golang.org/x/time/rate"
	"gorm.io/datatypes"
)

// Sender bundles the provider clients behind the MessageSender interface.
type Sender struct {
	whatsapp *WhatsAppClient
	slack    *SlackClient
}

func NewSender(cfg *config.Config, log *logger.Logger) *Sender {
	waLimiter := ratelimit.NewLimiterStore(perMinute(cfg.WhatsApp.MaxRequestPerMin), 1)
	slackLimiter := ratelimit.NewLimiterStore(perMinute(cfg.Slack.MaxRequestPerMin), 1)

	waClient := httpclient.New(cfg.WhatsApp.BaseURL, cfg.WhatsApp.TimeoutDuration, cfg.WhatsApp.AccessToken)
	slackClient := httpclient.New(cfg.Slack.BaseURL, cfg.Slack.TimeoutDuration, cfg.Slack.BotToken)

	return &Sender{
		whatsapp: NewWhatsAppClient(&cfg.WhatsApp, log, waClient, waLimiter),
		slack:    NewSlackClient(&cfg.Slack, log, slackClient, slackLimiter),
	}
}

func (s *Sender) SendWhatsApp(ctx context.Context, target, message string, opts datatypes.JSON) error {
	return s.whatsapp.Send(ctx, target, message, opts)
}

func (s *Sender) SendSlack(ctx context.Context, target, message string, opts datatypes.JSON) error {
	return s.slack.Send(ctx, target, message, opts)
}

func perMinute(n int) rate.Limit {
	if n <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Minute / time.Duration(n))
}
