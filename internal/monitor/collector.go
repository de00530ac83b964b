// Package monitor collects resource samples from hosts, serves history and
// process queries, and schedules periodic collection.
package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tphakala/hostpulse/internal/clock"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/datastore/repository"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/hostprobe"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/observability/metrics"
)

// DefaultProbeTimeout applies when no timeout is configured.
const DefaultProbeTimeout = 10 * time.Second

// SampleHandler is invoked synchronously after a sample is stored.
type SampleHandler func(ctx context.Context, sample *entities.ResourceSample)

// HostDirectory resolves host IDs.
type HostDirectory interface {
	Lookup(id string) (hostprobe.Host, error)
	List() []hostprobe.Host
}

// Collector takes samples from hosts and answers read queries.
type Collector struct {
	hosts   HostDirectory
	probe   hostprobe.Probe
	store   repository.MetricRepository
	clock   clock.Clock
	log     logger.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	locks    *hostLocks
	handlers []SampleHandler
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithProbeTimeout bounds each probe call.
func WithProbeTimeout(d time.Duration) CollectorOption {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the sample timestamp source.
func WithClock(clk clock.Clock) CollectorOption {
	return func(c *Collector) { c.clock = clk }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) CollectorOption {
	return func(c *Collector) { c.metrics = m }
}

// NewCollector creates a Collector.
func NewCollector(hosts HostDirectory, probe hostprobe.Probe, store repository.MetricRepository, log logger.Logger, opts ...CollectorOption) *Collector {
	c := &Collector{
		hosts:   hosts,
		probe:   probe,
		store:   store,
		clock:   clock.Real{},
		log:     log,
		timeout: DefaultProbeTimeout,
		locks:   newHostLocks(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSample registers a handler run after every stored sample, in
// registration order. Register handlers before collection starts.
func (c *Collector) OnSample(h SampleHandler) {
	c.handlers = append(c.handlers, h)
}

// Hosts returns the configured hosts.
func (c *Collector) Hosts() []hostprobe.Host {
	return c.hosts.List()
}

// Collect probes hostID and stores one sample. If a collection for the host
// is already running it returns (nil, nil) without probing.
func (c *Collector) Collect(ctx context.Context, hostID string) (*entities.ResourceSample, error) {
	unlock, ok := c.locks.TryLock(hostID)
	if !ok {
		c.log.Debug("collection already in flight, skipping", logger.String("host_id", hostID))
		c.metrics.ObserveCollection(hostID, metrics.CollectionSkipped, 0)
		return nil, nil
	}
	defer unlock()

	host, err := c.hosts.Lookup(hostID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	reading, err := c.probe.Sample(probeCtx, host)
	cancel()
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.ObserveCollection(hostID, metrics.CollectionError, elapsed)
		cerr := newCollectionError(hostID, err)
		c.log.Warn("host collection failed",
			logger.String("host_id", hostID),
			logger.Bool("timeout", cerr.Timeout),
			logger.Duration("elapsed", elapsed),
			logger.Error(err))
		return nil, cerr
	}

	sample := &entities.ResourceSample{
		HostID:        hostID,
		CPUPercent:    reading.CPUPercent,
		MemoryPercent: reading.MemoryPercent,
		DiskPercent:   reading.DiskPercent,
		Load1m:        reading.Load1m,
		RecordedAt:    c.clock.Now(),
	}
	if err := c.store.SaveSample(ctx, sample); err != nil {
		c.metrics.ObserveCollection(hostID, metrics.CollectionError, elapsed)
		return nil, errors.Wrap(err, errors.CategoryDatabase, "monitor")
	}
	c.metrics.ObserveCollection(hostID, metrics.CollectionOK, elapsed)
	c.metrics.SetLastSample(hostID, sample.RecordedAt)

	c.log.Debug("sample stored",
		logger.String("host_id", hostID),
		logger.Float64("cpu", sample.CPUPercent),
		logger.Float64("memory", sample.MemoryPercent),
		logger.Float64("disk", sample.DiskPercent),
		logger.Float64("load_1m", sample.Load1m))

	for _, h := range c.handlers {
		h(ctx, sample)
	}
	return sample, nil
}

// Latest returns the newest sample for hostID, or nil if none exists.
func (c *Collector) Latest(ctx context.Context, hostID string) (*entities.ResourceSample, error) {
	if _, err := c.hosts.Lookup(hostID); err != nil {
		return nil, err
	}
	sample, err := c.store.LatestSample(ctx, hostID)
	if errors.Is(err, repository.ErrSampleNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "monitor")
	}
	return sample, nil
}

// History returns the samples of hostID inside period, oldest first.
func (c *Collector) History(ctx context.Context, hostID string, period entities.Period) ([]entities.ResourceSample, error) {
	lookback := period.Lookback()
	if lookback == 0 {
		return nil, errors.NewValidation("period", fmt.Sprintf("unsupported period %q", period))
	}
	if _, err := c.hosts.Lookup(hostID); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	samples, err := c.store.ListSamples(ctx, hostID, now.Add(-lookback), now)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryDatabase, "monitor")
	}
	return samples, nil
}

// Process sort keys.
const (
	ProcessSortCPU    = "cpu"
	ProcessSortMemory = "memory"
)

// TopProcesses returns up to limit processes of hostID ordered by resource
// descending, ties broken by pid ascending.
func (c *Collector) TopProcesses(ctx context.Context, hostID, resource string, limit int) ([]hostprobe.Process, error) {
	verr := &errors.ValidationError{}
	if resource != ProcessSortCPU && resource != ProcessSortMemory {
		verr.Add("resource", "must be cpu or memory")
	}
	if limit < 1 {
		verr.Add("limit", "must be at least 1")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	host, err := c.hosts.Lookup(hostID)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	procs, err := c.probe.Processes(probeCtx, host)
	if err != nil {
		return nil, newCollectionError(hostID, err)
	}
	return rankProcesses(procs, resource, limit), nil
}

func rankProcesses(procs []hostprobe.Process, resource string, limit int) []hostprobe.Process {
	key := func(p *hostprobe.Process) float64 { return p.CPUPercent }
	if resource == ProcessSortMemory {
		key = func(p *hostprobe.Process) float64 { return p.MemoryPercent }
	}
	sorted := make([]hostprobe.Process, len(procs))
	copy(sorted, procs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := key(&sorted[i]), key(&sorted[j])
		if a != b {
			return a > b
		}
		return sorted[i].PID < sorted[j].PID
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
