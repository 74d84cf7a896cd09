package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackWebhook posts a summary of each completed round to a Slack incoming
// webhook. Other events are ignored.
type SlackWebhook struct {
	url      string
	username string
	emoji    string
	logger   *zap.Logger
}

// NewSlackWebhook creates a sink for the given incoming-webhook URL.
func NewSlackWebhook(url, username string, logger *zap.Logger) *SlackWebhook {
	if username == "" {
		username = "crew"
	}
	return &SlackWebhook{url: url, username: username, emoji: ":robot_face:", logger: logger}
}

func (s *SlackWebhook) Name() string { return "slack" }

func (s *SlackWebhook) Publish(ctx context.Context, ev Event) error {
	if ev.Type != EventRoundCompleted {
		return nil
	}
	msg := &slack.WebhookMessage{
		Username:  s.username,
		IconEmoji: s.emoji,
		Text:      fmt.Sprintf("*[%s] round %s*\n%s", ev.Status, ev.RoundID, ev.Message),
	}
	if err := slack.PostWebhookContext(ctx, s.url, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	s.logger.Debug("slack notified", zap.String("round", ev.RoundID))
	return nil
}

func (s *SlackWebhook) Close() error { return nil }
