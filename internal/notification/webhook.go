package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

const (
	discordContentLimit = 2000
	responseSnippetSize = 256
	webhookUsername     = "hostpulse"
)

// WebhookSender posts JSON payloads to Slack or Discord incoming webhooks.
type WebhookSender struct {
	channel entities.ChannelName
	client  *http.Client
	limiter *rate.Limiter
}

// NewSlackSender creates a sender for Slack incoming webhooks. perSecond
// bounds the request rate across all Slack alerts.
func NewSlackSender(client *http.Client, perSecond float64) *WebhookSender {
	return newWebhookSender(entities.ChannelSlack, client, perSecond)
}

// NewDiscordSender creates a sender for Discord webhooks.
func NewDiscordSender(client *http.Client, perSecond float64) *WebhookSender {
	return newWebhookSender(entities.ChannelDiscord, client, perSecond)
}

func newWebhookSender(channel entities.ChannelName, client *http.Client, perSecond float64) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := max(int(perSecond), 1)
	return &WebhookSender{
		channel: channel,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Send implements Sender.
func (s *WebhookSender) Send(ctx context.Context, target entities.ChannelConfig, msg Message) error {
	if target.Channel() != s.channel {
		return wrongTarget(s.channel, target)
	}
	payload, err := s.payload(msg)
	if err != nil {
		return err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Target(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", s.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s webhook: %w", s.channel, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, responseSnippetSize))
		return fmt.Errorf("%s webhook returned HTTP %d: %s", s.channel, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *WebhookSender) payload(msg Message) ([]byte, error) {
	switch s.channel {
	case entities.ChannelSlack:
		return json.Marshal(map[string]string{"text": msg.Text()})
	case entities.ChannelDiscord:
		return json.Marshal(map[string]string{
			"content":  truncateRunes(msg.Text(), discordContentLimit),
			"username": webhookUsername,
		})
	default:
		return nil, fmt.Errorf("unsupported webhook channel %q", s.channel)
	}
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
