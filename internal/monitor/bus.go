package monitor

import (
	"context"
	"sync"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
)

// subscriberBuffer is the per-subscriber queue depth. Samples are dropped for
// a subscriber whose queue is full so collection never blocks on a slow
// reader.
const subscriberBuffer = 16

type subscriber struct {
	hostID string
	ch     chan *entities.ResourceSample
}

// SampleBus fans new samples out to live subscribers such as websocket
// streams.
type SampleBus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewSampleBus creates an empty bus.
func NewSampleBus() *SampleBus {
	return &SampleBus{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel of samples for hostID (all hosts when empty)
// and a cancel func that closes it. The channel is also closed by Stop.
func (b *SampleBus) Subscribe(hostID string) (<-chan *entities.ResourceSample, func()) {
	s := &subscriber{hostID: hostID, ch: make(chan *entities.ResourceSample, subscriberBuffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		return s.ch, func() {}
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[s]; ok {
				delete(b.subs, s)
				close(s.ch)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers sample to matching subscribers without blocking. It has
// the SampleHandler signature so it can be registered on a Collector.
func (b *SampleBus) Publish(_ context.Context, sample *entities.ResourceSample) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		if s.hostID != "" && s.hostID != sample.HostID {
			continue
		}
		select {
		case s.ch <- sample:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *SampleBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stop closes every subscriber channel. Later subscriptions receive a closed
// channel. Safe to call multiple times.
func (b *SampleBus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
