package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	maxMessageLen      = 3800
	sendAttempts       = 3
)

// Telegram posts alerts to a chat through the Bot API.
type Telegram struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client

	backoff func(attempt int) time.Duration
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramAPI,
		Client:   &http.Client{Timeout: 15 * time.Second},
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt+1) * time.Second },
	}
}

// SendText sends a plain text message, retrying up to three times.
func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram bot_token and chat_id are required")
	}
	text = strings.TrimSpace(text)
	text = truncate(text, maxMessageLen)
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.BaseURL, "/"), t.BotToken)
	body, err := json.Marshal(map[string]any{
		"chat_id": t.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < sendAttempts; i++ {
		if i > 0 && t.backoff != nil {
			time.Sleep(t.backoff(i - 1))
		}
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return lastErr
}

// truncate cuts text to at most limit bytes on a rune boundary.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
