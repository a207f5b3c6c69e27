// Package notify pushes short operator messages to a group-chat webhook
// robot. Delivery is best effort: the daily pipeline never fails because
// a chat message did not land.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Notifier delivers one plain-text message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Webhook is a text-robot webhook client. The robot matches messages on a
// configured keyword, so every outgoing text is prefixed with it.
type Webhook struct {
	url     string
	keyword string
	client  *http.Client
	now     func() time.Time
}

func NewWebhook(url, keyword string) *Webhook {
	return &Webhook{
		url:     url,
		keyword: keyword,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

// Send posts text to the webhook. The message is stamped so repeated
// identical bodies are not collapsed by the robot's dedup.
func (w *Webhook) Send(ctx context.Context, text string) error {
	body := map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": fmt.Sprintf("%s %s\n%s", w.keyword, text, w.now().Format("2006-01-02 15:04:05")),
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("notify: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notify: webhook status %d", resp.StatusCode)
	}

	var reply struct {
		ErrCode int    `json:"errcode"`
		ErrMsg  string `json:"errmsg"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notify: read reply: %w", err)
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("notify: decode reply: %w", err)
	}
	if reply.ErrCode != 0 {
		return fmt.Errorf("notify: robot rejected message: %d %s", reply.ErrCode, reply.ErrMsg)
	}
	return nil
}

// BestEffort wraps a Notifier so send failures are logged and swallowed.
type BestEffort struct {
	N Notifier
}

func (b BestEffort) Send(ctx context.Context, text string) error {
	if b.N == nil {
		return nil
	}
	if err := b.N.Send(ctx, text); err != nil {
		log.Warn().Err(err).Msg("notification not delivered")
	}
	return nil
}

// Nop discards every message. Used when no webhook is configured.
type Nop struct{}

func (Nop) Send(context.Context, string) error { return nil }
