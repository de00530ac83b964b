package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/hostpulse/internal/datastore/repository"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/observability/telemetry"
)

const (
	retentionInterval = time.Hour
	retentionTimeout  = 30 * time.Second
)

// Poller runs one collection loop per configured host and an optional sample
// retention loop.
type Poller struct {
	collector     *Collector
	store         repository.MetricRepository
	interval      time.Duration
	retentionDays int
	log           logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a Poller. retentionDays <= 0 keeps samples forever.
func NewPoller(collector *Collector, store repository.MetricRepository, interval time.Duration, retentionDays int, log logger.Logger) *Poller {
	return &Poller{
		collector:     collector,
		store:         store,
		interval:      interval,
		retentionDays: retentionDays,
		log:           log,
	}
}

// Start launches the loops. Calling Start on a running poller restarts it.
func (p *Poller) Start(ctx context.Context) {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	ctx, p.cancel = context.WithCancel(ctx)

	for _, host := range p.collector.Hosts() {
		p.wg.Add(1)
		go p.pollHost(ctx, host.ID)
	}
	if p.retentionDays > 0 && p.store != nil {
		p.wg.Add(1)
		go p.retain(ctx)
	}
	p.log.Info("poller started",
		logger.Int("hosts", len(p.collector.Hosts())),
		logger.Duration("interval", p.interval))
}

// Stop cancels all loops and waits for them to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

func (p *Poller) pollHost(ctx context.Context, hostID string) {
	defer p.wg.Done()

	p.tick(ctx, hostID)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, hostID)
		}
	}
}

func (p *Poller) tick(ctx context.Context, hostID string) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic during collection", logger.String("host_id", hostID), logger.Any("panic", r))
			telemetry.CapturePanic(r, "monitor")
		}
	}()

	_, err := p.collector.Collect(ctx, hostID)
	if err == nil || ctx.Err() != nil {
		return
	}
	// Probe failures are already logged by the collector; only unexpected
	// failures are reported upstream.
	if errors.CategoryOf(err) != errors.CategoryCollection {
		p.log.Error("collection failed", logger.String("host_id", hostID), logger.Error(err))
		telemetry.CaptureError(err, "monitor", map[string]string{"host_id": hostID})
	}
}

func (p *Poller) retain(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := p.collector.clock.Now().AddDate(0, 0, -p.retentionDays)
			pruneCtx, cancel := context.WithTimeout(ctx, retentionTimeout)
			deleted, err := p.store.DeleteSamplesBefore(pruneCtx, cutoff)
			cancel()
			if err != nil {
				p.log.Error("sample retention failed", logger.Error(err))
			} else if deleted > 0 {
				p.log.Info("sample retention completed",
					logger.Int64("deleted", deleted),
					logger.Int("retention_days", p.retentionDays))
			}
		}
	}
}
