package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramConfig configures the feedback channel. An empty token disables it.
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `envconfig:"TELEGRAM_CHAT_ID"`
}

// TelegramNotifier forwards user feedback to a Telegram chat through the Bot
// API sendMessage endpoint.
type TelegramNotifier struct {
	cfg     TelegramConfig
	client  *http.Client
	baseURL string
}

// NewTelegramNotifier returns nil when no bot token is configured, which
// callers treat as feedback forwarding being disabled.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil
	}
	return &TelegramNotifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: telegramAPIBase,
	}
}

func (t *TelegramNotifier) SendFeedback(ctx context.Context, sessionID string, score int, comment string) error {
	text := fmt.Sprintf("New feedback\nSession: %s\nScore: %d\n%s", sessionID, score, comment)

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
