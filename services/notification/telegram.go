package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Notifier delivers proactive messages to a customer chat, outside the
// webhook request/reply cycle.
type Notifier interface {
	SendMessage(ctx context.Context, telegramID, text string) error
}

// TelegramNotifier sends messages through the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	BaseURL  string
	HTTP     *http.Client
}

// NewTelegramNotifier builds a notifier for the given bot token.
func NewTelegramNotifier(botToken string) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: botToken,
		BaseURL:  "https://api.telegram.org",
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SendMessage posts a sendMessage call for the chat.
func (n *TelegramNotifier) SendMessage(ctx context.Context, telegramID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": telegramID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sendMessage payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.BaseURL, n.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram sendMessage returned %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
