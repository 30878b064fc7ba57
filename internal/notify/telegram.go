// Package notify delivers signal and trade notifications to Telegram,
// with a persisted cooldown gate so one market alerts at most once per
// window.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Web3Newcomer/polymarket-weather/internal/config"
)

// Telegram sends messages through the Bot API. A zero-value token
// disables sending; every method becomes a no-op so call sites never
// branch on configuration.
type Telegram struct {
	httpClient *resty.Client
	cfg        config.TelegramConfig
	logger     *slog.Logger
}

// NewTelegram creates the notifier.
func NewTelegram(cfg config.TelegramConfig, logger *slog.Logger) *Telegram {
	client := resty.New().
		SetBaseURL("https://api.telegram.org").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Telegram{
		httpClient: client,
		cfg:        cfg,
		logger:     logger.With("component", "notify"),
	}
}

// Send posts one Markdown message to the configured chat and reports
// whether it was delivered. Errors are logged, not returned: a failed
// notification never disturbs trading, but callers use the result to
// decide whether the alert counts as sent.
func (t *Telegram) Send(ctx context.Context, text string) bool {
	if !t.cfg.Enabled() {
		return false
	}

	body := map[string]string{
		"chat_id":    t.cfg.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	if t.cfg.TopicID != "" {
		body["message_thread_id"] = t.cfg.TopicID
	}

	resp, err := t.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.cfg.BotToken))
	if err != nil {
		t.logger.Error("telegram send failed", "error", err)
		return false
	}
	if resp.StatusCode() != http.StatusOK {
		t.logger.Error("telegram send rejected", "status", resp.StatusCode(), "body", resp.String())
		return false
	}
	return true
}
