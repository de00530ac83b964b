package notification

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

const (
	slackURL   = "https://hooks.slack.com/services/T000/B000/XXXX"
	discordURL = "https://discord.com/api/webhooks/123/token"
)

func mockClient() (*http.Client, *httpmock.MockTransport) {
	mock := httpmock.NewMockTransport()
	return &http.Client{Transport: mock}, mock
}

func captureJSON(t *testing.T, status int, into *map[string]string) httpmock.Responder {
	t.Helper()
	return func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, into); err != nil {
			return nil, err
		}
		return httpmock.NewStringResponse(status, ""), nil
	}
}

func TestSlackSender_Payload(t *testing.T) {
	t.Parallel()
	client, mock := mockClient()

	var got map[string]string
	mock.RegisterResponder(http.MethodPost, slackURL, captureJSON(t, http.StatusOK, &got))

	s := NewSlackSender(client, 10)
	err := s.Send(t.Context(), entities.SlackChannel{WebhookURL: slackURL}, Message{Subject: "CPU high", Body: "web-1 at 92%"})
	require.NoError(t, err)

	assert.Equal(t, "CPU high\nweb-1 at 92%", got["text"])
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestDiscordSender_AcceptsNoContentAndTruncates(t *testing.T) {
	t.Parallel()
	client, mock := mockClient()

	var got map[string]string
	mock.RegisterResponder(http.MethodPost, discordURL, captureJSON(t, http.StatusNoContent, &got))

	s := NewDiscordSender(client, 10)
	long := strings.Repeat("é", 2500)
	require.NoError(t, s.Send(t.Context(), entities.DiscordChannel{WebhookURL: discordURL}, Message{Body: long}))

	assert.Equal(t, webhookUsername, got["username"])
	assert.Equal(t, discordContentLimit, len([]rune(got["content"])))
}

func TestWebhookSender_HTTPError(t *testing.T) {
	t.Parallel()
	client, mock := mockClient()
	mock.RegisterResponder(http.MethodPost, slackURL, httpmock.NewStringResponder(http.StatusForbidden, "invalid_token"))

	err := NewSlackSender(client, 10).Send(t.Context(), entities.SlackChannel{WebhookURL: slackURL}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestWebhookSender_TransportError(t *testing.T) {
	t.Parallel()
	client, mock := mockClient()
	mock.RegisterResponder(http.MethodPost, discordURL, httpmock.NewErrorResponder(errors.New("connection reset")))

	err := NewDiscordSender(client, 10).Send(t.Context(), entities.DiscordChannel{WebhookURL: discordURL}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWebhookSender_WrongTarget(t *testing.T) {
	t.Parallel()
	client, mock := mockClient()

	err := NewSlackSender(client, 10).Send(t.Context(), entities.DiscordChannel{WebhookURL: discordURL}, Message{Body: "x"})
	require.Error(t, err)
	assert.Zero(t, mock.GetTotalCallCount())
}

func TestNewSenders_EmailOnlyWithSMTP(t *testing.T) {
	t.Parallel()

	without := NewSenders(conf.NotificationSettings{WebhookRate: 1}, nil)
	assert.Contains(t, without, entities.ChannelSlack)
	assert.Contains(t, without, entities.ChannelDiscord)
	assert.NotContains(t, without, entities.ChannelEmail)

	with := NewSenders(conf.NotificationSettings{
		WebhookRate: 1,
		SMTP:        conf.SMTPSettings{Host: "smtp.example.com", Port: 587, From: "alerts@example.com"},
	}, nil)
	assert.Contains(t, with, entities.ChannelEmail)
}
