package notify

import (
	"context"
	"sort"
	"time"

	"reddit-alpha-agent/internal/api"
	"reddit-alpha-agent/internal/interfaces"
	"reddit-alpha-agent/internal/logger"
	"reddit-alpha-agent/internal/store"
	"reddit-alpha-agent/internal/types"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

// WebhookNotifier posts a Slack-compatible message to an incoming webhook.
type WebhookNotifier struct {
	url     string
	channel string
	http    *api.Client
}

var (
	_ interfaces.Notifier = (*WebhookNotifier)(nil)
	_ interfaces.Notifier = LogNotifier{}
)

func NewWebhook(url, channel string, timeout time.Duration) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		channel: channel,
		http:    api.NewClient(api.WithTimeout(timeout), api.WithService("webhook")),
	}
}

// New returns a webhook notifier, or a log-only one when no URL is set.
func New(cfg store.NotifyConfig) interfaces.Notifier {
	if cfg.WebhookURL == "" {
		return LogNotifier{}
	}
	return NewWebhook(cfg.WebhookURL, cfg.Channel, time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func (w *WebhookNotifier) Notify(ctx context.Context, n types.Notification) error {
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}
	msg := slackMessage{
		Channel: w.channel,
		Text:    "*" + n.Title + "*\n" + n.Text,
	}

	keys := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]slackField, 0, len(keys)+1)
	for _, k := range keys {
		fields = append(fields, slackField{Title: k, Value: n.Fields[k], Short: len(n.Fields[k]) < 40})
	}
	if n.RunID != "" {
		fields = append(fields, slackField{Title: "run_id", Value: n.RunID, Short: true})
	}
	msg.Attachments = []slackAttachment{{Color: color(n.Level), Fields: fields}}

	if err := w.http.PostJSON(ctx, w.url, msg, nil); err != nil {
		logger.ErrorWithErr(ctx, "webhook notification failed", err, "title", n.Title)
		return err
	}
	logger.Info(ctx, "notification sent", "title", n.Title, "level", n.Level)
	return nil
}

func color(level string) string {
	switch level {
	case LevelError:
		return "danger"
	case LevelWarning:
		return "warning"
	default:
		return "good"
	}
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n types.Notification) error {
	args := []any{"title", n.Title, "text", n.Text, "level", n.Level, "run_id", n.RunID}
	for k, v := range n.Fields {
		args = append(args, k, v)
	}
	if n.Level == LevelError {
		logger.Error(ctx, "notification", args...)
	} else {
		logger.Info(ctx, "notification", args...)
	}
	return nil
}
