// Package notification delivers alert messages to email, Slack and Discord
// and fans a single message out to every channel of an alert.
package notification

import (
	"context"
	"fmt"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
)

// Message is a rendered notification.
type Message struct {
	Subject string
	Body    string
}

// Text joins subject and body for channels without a subject line.
func (m Message) Text() string {
	if m.Subject == "" {
		return m.Body
	}
	if m.Body == "" {
		return m.Subject
	}
	return m.Subject + "\n" + m.Body
}

// Sender delivers a message to one channel target. Send must return once ctx
// is done.
type Sender interface {
	Send(ctx context.Context, target entities.ChannelConfig, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target entities.ChannelConfig, msg Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, target entities.ChannelConfig, msg Message) error {
	return f(ctx, target, msg)
}

// DispatchError is a failed delivery on one channel.
type DispatchError struct {
	Channel entities.ChannelName
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Category() errors.Category { return errors.CategoryDispatch }

func wrongTarget(expected entities.ChannelName, got entities.ChannelConfig) error {
	return fmt.Errorf("%s sender cannot deliver to %T", expected, got)
}
