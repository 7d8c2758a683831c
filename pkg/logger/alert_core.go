package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithSlackAlerts wraps the logger's core so entries logged through
// ErrorContextWithAlert are also posted to the given webhook.
func WithSlackAlerts(l *Logger, webhookURL string, minLevel zapcore.Level) *Logger {
	wrapped := l.Logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return NewAlertCore(core, webhookURL, minLevel)
	}))
	return &Logger{wrapped}
}

// AlertCore is a zapcore.Core that forwards marked error entries to a Slack
// incoming webhook in addition to the wrapped core's normal output.
type AlertCore struct {
	core       zapcore.Core
	webhookURL string
	minLevel   zapcore.Level
}

func NewAlertCore(core zapcore.Core, webhookURL string, minLevel zapcore.Level) *AlertCore {
	return &AlertCore{
		core:       core,
		webhookURL: webhookURL,
		minLevel:   minLevel,
	}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:       a.core.With(fields),
		webhookURL: a.webhookURL,
		minLevel:   a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		// Only self is added; Write delegates to the wrapped core, so adding
		// both would emit every entry twice.
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	shouldSend := false
	for _, f := range fields {
		if f.Key == KeySendAlert && f.Type == zapcore.BoolType && f.Integer == 1 {
			shouldSend = true
			break
		}
	}
	if entry.Level >= a.minLevel && shouldSend && a.webhookURL != "" {
		go a.sendSlackAlert(entry, fields) // async so logging never blocks
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func (a *AlertCore) sendSlackAlert(entry zapcore.Entry, fields []zapcore.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}

	fieldStr := ""
	for k, v := range enc.Fields {
		if k == KeySendAlert {
			continue
		}
		fieldStr += fmt.Sprintf("• %s: %v\n", k, v)
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")

	text := fmt.Sprintf(
		":rotating_light: *%s Alert*\n\n*Message:* %s\n\n*Fields:*\n%s\n*Time:* %s",
		entry.Level.CapitalString(),
		entry.Message,
		fieldStr,
		timestamp,
	)

	payload := map[string]interface{}{
		"text": text,
	}

	jsonBody, _ := json.Marshal(payload)
	http.Post(a.webhookURL, "application/json", bytes.NewBuffer(jsonBody))
}
