package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/logger"
)

func allChannels() entities.NotificationChannels {
	return entities.NotificationChannels{
		entities.ChannelEmail:   entities.EmailChannel{Address: "ops@example.com"},
		entities.ChannelSlack:   entities.SlackChannel{WebhookURL: "https://hooks.slack.com/services/T/B/X"},
		entities.ChannelDiscord: entities.DiscordChannel{WebhookURL: "https://discord.com/api/webhooks/1/abc"},
	}
}

func okSender(calls *atomic.Int32) Sender {
	return SenderFunc(func(context.Context, entities.ChannelConfig, Message) error {
		calls.Add(1)
		return nil
	})
}

func TestDispatch_OneFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDispatcher(map[entities.ChannelName]Sender{
		entities.ChannelEmail: okSender(&calls),
		entities.ChannelSlack: okSender(&calls),
		entities.ChannelDiscord: SenderFunc(func(context.Context, entities.ChannelConfig, Message) error {
			return errors.New("HTTP 500")
		}),
	}, time.Second, logger.NewNop(), nil)

	results := d.Dispatch(t.Context(), allChannels(), Message{Subject: "s", Body: "b"})

	require.Len(t, results, 3)
	assert.Equal(t, entities.ChannelResult{Delivered: true, Detail: DetailSent}, results[entities.ChannelEmail])
	assert.True(t, results[entities.ChannelSlack].Delivered)
	assert.False(t, results[entities.ChannelDiscord].Delivered)
	assert.Contains(t, results[entities.ChannelDiscord].Detail, "HTTP 500")
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatch_SlowChannelTimesOut(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDispatcher(map[entities.ChannelName]Sender{
		entities.ChannelEmail: SenderFunc(func(ctx context.Context, _ entities.ChannelConfig, _ Message) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		entities.ChannelSlack: okSender(&calls),
	}, 30*time.Millisecond, logger.NewNop(), nil)

	start := time.Now()
	results := d.Dispatch(t.Context(), entities.NotificationChannels{
		entities.ChannelEmail: entities.EmailChannel{Address: "ops@example.com"},
		entities.ChannelSlack: entities.SlackChannel{WebhookURL: "https://example.com/hook"},
	}, Message{Body: "x"})

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, results[entities.ChannelEmail].Delivered)
	assert.Contains(t, results[entities.ChannelEmail].Detail, "timed out")
	assert.True(t, results[entities.ChannelSlack].Delivered)
}

func TestDispatch_SendsConcurrently(t *testing.T) {
	t.Parallel()

	// Each sender waits for the other; a sequential dispatcher would deadlock
	// until the timeout.
	barrier := make(chan struct{}, 2)
	waitForPeer := SenderFunc(func(ctx context.Context, _ entities.ChannelConfig, _ Message) error {
		barrier <- struct{}{}
		for len(barrier) < 2 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
		}
		return nil
	})
	d := NewDispatcher(map[entities.ChannelName]Sender{
		entities.ChannelSlack:   waitForPeer,
		entities.ChannelDiscord: waitForPeer,
	}, 2*time.Second, logger.NewNop(), nil)

	results := d.Dispatch(t.Context(), entities.NotificationChannels{
		entities.ChannelSlack:   entities.SlackChannel{WebhookURL: "https://example.com/a"},
		entities.ChannelDiscord: entities.DiscordChannel{WebhookURL: "https://example.com/b"},
	}, Message{Body: "x"})

	assert.True(t, results[entities.ChannelSlack].Delivered)
	assert.True(t, results[entities.ChannelDiscord].Delivered)
}

func TestDispatch_MissingSenderAndPanic(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(map[entities.ChannelName]Sender{
		entities.ChannelSlack: SenderFunc(func(context.Context, entities.ChannelConfig, Message) error {
			panic("boom")
		}),
	}, time.Second, logger.NewNop(), nil)

	results := d.Dispatch(t.Context(), allChannels(), Message{Body: "x"})

	require.Len(t, results, 3)
	assert.False(t, results[entities.ChannelSlack].Delivered)
	assert.Contains(t, results[entities.ChannelSlack].Detail, "panic")
	assert.Contains(t, results[entities.ChannelEmail].Detail, "no sender configured")
	assert.False(t, results[entities.ChannelDiscord].Delivered)
	assert.False(t, results.AnyDelivered())
}

func TestDispatch_NoChannels(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, 0, logger.NewNop(), nil)
	results := d.Dispatch(t.Context(), entities.NotificationChannels{}, Message{})
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestDispatchError(t *testing.T) {
	t.Parallel()

	inner := errors.New("refused")
	err := &DispatchError{Channel: entities.ChannelSlack, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "slack delivery failed: refused", err.Error())
}
