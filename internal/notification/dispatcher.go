package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/observability/metrics"
	"github.com/tphakala/hostpulse/internal/observability/telemetry"
)

// DefaultSendTimeout bounds each channel send when none is configured.
const DefaultSendTimeout = 10 * time.Second

// DetailSent is the result detail of a delivered message.
const DetailSent = "sent"

// Dispatcher sends one message to several channels concurrently. A failing
// or slow channel never affects the others.
type Dispatcher struct {
	senders map[entities.ChannelName]Sender
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewDispatcher creates a Dispatcher. Channels without a sender are reported
// as undelivered.
func NewDispatcher(senders map[entities.ChannelName]Sender, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{senders: senders, timeout: timeout, log: log, metrics: m}
}

// Dispatch sends msg on every channel and waits for all sends. The result
// has exactly one entry per channel.
func (d *Dispatcher) Dispatch(ctx context.Context, channels entities.NotificationChannels, msg Message) entities.ChannelResults {
	results := make(entities.ChannelResults, len(channels))
	var mu sync.Mutex

	var g errgroup.Group
	for name, target := range channels {
		g.Go(func() error {
			res := d.sendOne(ctx, name, target, msg)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) sendOne(ctx context.Context, name entities.ChannelName, target entities.ChannelConfig, msg Message) (res entities.ChannelResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			telemetry.CapturePanic(r, "notification")
			res = entities.ChannelResult{Delivered: false, Detail: fmt.Sprintf("sender panic: %v", r)}
		}
		d.metrics.ObserveDelivery(string(name), res.Delivered)
		fields := []logger.Field{
			logger.String("channel", string(name)),
			logger.Bool("delivered", res.Delivered),
			logger.Duration("elapsed", time.Since(start)),
		}
		if res.Delivered {
			d.log.Debug("notification delivered", fields...)
		} else {
			d.log.Warn("notification delivery failed", append(fields, logger.String("detail", res.Detail))...)
		}
	}()

	sender, ok := d.senders[name]
	if !ok || sender == nil {
		return entities.ChannelResult{Delivered: false, Detail: fmt.Sprintf("no sender configured for %s", name)}
	}
	if target == nil {
		return entities.ChannelResult{Delivered: false, Detail: "missing channel target"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := sender.Send(sendCtx, target, msg); err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", d.timeout, err)
		}
		derr := &DispatchError{Channel: name, Err: err}
		return entities.ChannelResult{Delivered: false, Detail: derr.Error()}
	}
	return entities.ChannelResult{Delivered: true, Detail: DetailSent}
}
