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

// whatsappText is the WhatsApp Cloud API text message payload.
type whatsappText struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type whatsappError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

type WhatsAppClient struct {
	cfg     *config.WhatsAppConfig
	log     *logger.Logger
	client  httpclient.HTTPClient
	limiter *ratelimit.LimiterStore
}

func NewWhatsAppClient(cfg *config.WhatsAppConfig, log *logger.Logger, client httpclient.HTTPClient, limiter *ratelimit.LimiterStore) *WhatsAppClient {
	return &WhatsAppClient{
		cfg:     cfg,
		log:     log,
		client:  client,
		limiter: limiter,
	}
}

// Send posts a text message to the WhatsApp Cloud API. Target is the
// recipient phone number in E.164 form. Options may carry "preview_url".
func (w *WhatsAppClient) Send(ctx context.Context, target, message string, opts datatypes.JSON) error {
	if err := w.limiter.GetLimiter("whatsapp").Wait(ctx); err != nil {
		return fmt.Errorf("whatsapp rate limiter: %w", err)
	}

	payload := whatsappText{
		MessagingProduct: "whatsapp",
		To:               target,
		Type:             "text",
	}
	payload.Text.Body = message
	payload.Text.PreviewURL = optBool(opts, "preview_url")

	endpoint := fmt.Sprintf("/%s/messages", w.cfg.PhoneNumberID)
	resp, err := w.client.Post(ctx, endpoint, payload, nil, nil)
	if err != nil {
		return fmt.Errorf("whatsapp send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		var apiErr whatsappError
		if jsonErr := json.Unmarshal(resp.Body, &apiErr); jsonErr == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("whatsapp api error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("whatsapp api error: status %d", resp.StatusCode)
	}

	w.log.DebugContext(ctx, "WhatsApp message delivered", logger.StringField("target", target))
	return nil
}

func optBool(opts datatypes.JSON, key string) bool {
	if len(opts) == 0 {
		return false
	}
	var m map[string]interface{}
	if err := json.Unmarshal(opts, &m); err != nil {
		return false
	}
	v, ok := m[key].(bool)
	return ok && v
}
