package messenger

import (
	"context"
	"encoding/json"
	"fmt"

	"message-scheduler/config"
	"message-scheduler/pkg/httpclient"
	"message-scheduler/pkg/logger"
	"message-scheduler/pkg/ratelimit"

	"gorm.io/datatypes"
)

type slackPostMessage struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type SlackClient struct {
	cfg     *config.SlackConfig
	log     *logger.Logger
	client  httpclient.HTTPClient
	limiter *ratelimit.LimiterStore
}

func NewSlackClient(cfg *config.SlackConfig, log *logger.Logger, client httpclient.HTTPClient, limiter *ratelimit.LimiterStore) *SlackClient {
	return &SlackClient{
		cfg:     cfg,
		log:     log,
		client:  client,
		limiter: limiter,
	}
}

// Send posts a message via chat.postMessage. Target is a channel id or name.
// Options may carry "username" and "icon_emoji" overrides.
func (s *SlackClient) Send(ctx context.Context, target, message string, opts datatypes.JSON) error {
	if err := s.limiter.GetLimiter("slack").Wait(ctx); err != nil {
		return fmt.Errorf("slack rate limiter: %w", err)
	}

	payload := slackPostMessage{
		Channel:   target,
		Text:      message,
		Username:  optString(opts, "username"),
		IconEmoji: optString(opts, "icon_emoji"),
	}

	var result slackResponse
	resp, err := s.client.Post(ctx, "/chat.postMessage", payload, nil, &result)
	if err != nil {
		return fmt.Errorf("slack send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack api error: status %d", resp.StatusCode)
	}
	if !result.OK {
		return fmt.Errorf("slack api error: %s", result.Error)
	}

	s.log.DebugContext(ctx, "Slack message delivered", logger.StringField("target", target))
	return nil
}

func optString(opts datatypes.JSON, key string) string {
	if len(opts) == 0 {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(opts, &m); err != nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
