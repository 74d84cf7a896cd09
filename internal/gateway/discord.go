package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordWebhook posts a summary of each completed round through a Discord
// channel webhook. Other events are ignored.
type DiscordWebhook struct {
	id       string
	token    string
	username string
	session  *discordgo.Session
	logger   *zap.Logger
}

// NewDiscordWebhook parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordWebhook(webhookURL, username string, logger *zap.Logger) (*DiscordWebhook, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	if username == "" {
		username = "crew"
	}
	return &DiscordWebhook{id: id, token: token, username: username, session: session, logger: logger}, nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url %q has no webhooks/<id>/<token> path", raw)
}

func (d *DiscordWebhook) Name() string { return "discord" }

func (d *DiscordWebhook) Publish(ctx context.Context, ev Event) error {
	if ev.Type != EventRoundCompleted {
		return nil
	}
	params := &discordgo.WebhookParams{
		Content:  fmt.Sprintf("**[%s] round %s**\n%s", ev.Status, ev.RoundID, ev.Message),
		Username: d.username,
	}
	if _, err := d.session.WebhookExecute(d.id, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord webhook execute: %w", err)
	}
	d.logger.Debug("discord notified", zap.String("round", ev.RoundID))
	return nil
}

func (d *DiscordWebhook) Close() error { return nil }
