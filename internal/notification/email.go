package notification

import (
	"context"
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strconv"

	"github.com/nicholas-fedor/shoutrrr"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// EmailSender delivers through SMTP using a shoutrrr smtp:// URL.
type EmailSender struct {
	smtp conf.SMTPSettings
	send func(rawURL, message string) error
}

// NewEmailSender creates an EmailSender for the given SMTP relay.
func NewEmailSender(smtp conf.SMTPSettings) *EmailSender {
	return &EmailSender{smtp: smtp, send: shoutrrr.Send}
}

// Send implements Sender.
func (s *EmailSender) Send(ctx context.Context, target entities.ChannelConfig, msg Message) error {
	email, ok := target.(entities.EmailChannel)
	if !ok {
		return wrongTarget(entities.ChannelEmail, target)
	}
	if !s.smtp.Enabled() {
		return fmt.Errorf("smtp is not configured")
	}
	if _, err := mail.ParseAddress(email.Address); err != nil {
		return fmt.Errorf("invalid email address %q: %w", email.Address, err)
	}
	rawURL := s.serviceURL(email.Address, msg.Subject)

	// shoutrrr has no context support; abandon the send when ctx ends.
	done := make(chan error, 1)
	go func() { done <- s.send(rawURL, msg.Body) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", email.Address, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *EmailSender) serviceURL(to, subject string) string {
	u := url.URL{
		Scheme: "smtp",
		Host:   net.JoinHostPort(s.smtp.Host, strconv.Itoa(s.smtp.Port)),
		Path:   "/",
	}
	q := url.Values{}
	q.Set("fromaddress", s.smtp.From)
	q.Set("toaddresses", to)
	q.Set("subject", subject)
	q.Set("usestarttls", strconv.FormatBool(s.smtp.StartTLS))
	if s.smtp.Username != "" {
		u.User = url.UserPassword(s.smtp.Username, s.smtp.Password)
		q.Set("auth", "Plain")
	} else {
		q.Set("auth", "None")
	}
	u.RawQuery = q.Encode()
	return u.String()
}
