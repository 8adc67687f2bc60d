package telegram

import (
	"context"
	"fmt"
	"log/slog"
)

// EnsureWebhook points the bot's update webhook at url, replacing any
// stale registration. No-op when the registration already matches.
func EnsureWebhook(ctx context.Context, bot *Bot, url string) error {
	info, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("read webhook info: %w", err)
	}
	if info.URL == url {
		slog.Debug("telegram webhook already registered", "url", url)
		return nil
	}
	if info.URL != "" {
		slog.Info("replacing telegram webhook", "old", info.URL, "new", url)
		if err := bot.DeleteWebhook(ctx); err != nil {
			return fmt.Errorf("delete stale webhook: %w", err)
		}
	}
	if err := bot.SetWebhook(ctx, url); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	slog.Info("telegram webhook registered", "url", url)
	return nil
}
