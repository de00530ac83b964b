package notification

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

func testSMTP() conf.SMTPSettings {
	return conf.SMTPSettings{
		Host: "smtp.example.com", Port: 587, Username: "bot", Password: "p@ss",
		From: "alerts@example.com", StartTLS: true,
	}
}

func TestEmailSender_BuildsShoutrrrURL(t *testing.T) {
	t.Parallel()

	var gotURL, gotBody string
	s := NewEmailSender(testSMTP())
	s.send = func(rawURL, message string) error {
		gotURL, gotBody = rawURL, message
		return nil
	}

	err := s.Send(t.Context(), entities.EmailChannel{Address: "ops@example.com"}, Message{Subject: "CPU high", Body: "web-1 at 92%"})
	require.NoError(t, err)
	assert.Equal(t, "web-1 at 92%", gotBody)

	u, err := url.Parse(gotURL)
	require.NoError(t, err)
	assert.Equal(t, "smtp", u.Scheme)
	assert.Equal(t, "smtp.example.com:587", u.Host)
	assert.Equal(t, "bot", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	q := u.Query()
	assert.Equal(t, "alerts@example.com", q.Get("fromaddress"))
	assert.Equal(t, "ops@example.com", q.Get("toaddresses"))
	assert.Equal(t, "CPU high", q.Get("subject"))
	assert.Equal(t, "Plain", q.Get("auth"))
}

func TestEmailSender_Failures(t *testing.T) {
	t.Parallel()

	s := NewEmailSender(testSMTP())
	s.send = func(string, string) error { return errors.New("550 mailbox unavailable") }

	err := s.Send(t.Context(), entities.EmailChannel{Address: "ops@example.com"}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "550")

	err = s.Send(t.Context(), entities.EmailChannel{Address: "not-an-address"}, Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email address")

	err = NewEmailSender(conf.SMTPSettings{}).Send(t.Context(), entities.EmailChannel{Address: "ops@example.com"}, Message{})
	require.Error(t, err)
}

func TestEmailSender_HonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)
	s := NewEmailSender(testSMTP())
	s.send = func(string, string) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	err := s.Send(ctx, entities.EmailChannel{Address: "ops@example.com"}, Message{Body: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
