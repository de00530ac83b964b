package alerting

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/hostpulse/internal/clock"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/datastore/repository"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/hostprobe"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/notification"
	"github.com/tphakala/hostpulse/internal/observability/metrics"
	"github.com/tphakala/hostpulse/internal/observability/telemetry"
)

// Dispatcher fans a message out to an alert's channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, channels entities.NotificationChannels, msg notification.Message) entities.ChannelResults
}

// SampleSource supplies the latest sample used by test dispatches.
type SampleSource interface {
	LatestSample(ctx context.Context, hostID string) (*entities.ResourceSample, error)
}

// HostLookup resolves host IDs referenced by alerts.
type HostLookup interface {
	Lookup(id string) (hostprobe.Host, error)
}

// TestResult is the outcome of a test dispatch.
type TestResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Results entities.ChannelResults `json:"results"`
}

// Engine owns the alert lifecycle: CRUD, evaluation of new samples, test
// dispatch and firing history.
type Engine struct {
	repo       repository.AlertRepository
	dispatcher Dispatcher
	samples    SampleSource
	hosts      HostLookup
	clock      clock.Clock
	log        logger.Logger
	metrics    *metrics.Metrics

	// Active alerts per host. Cooldown state is never read from here.
	rules    *cache.Cache
	rulesTTL time.Duration
	rulesGen atomic.Uint64

	mu          sync.Mutex
	cleanupStop chan struct{}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for cooldowns.
func WithClock(clk clock.Clock) Option {
	return func(e *Engine) { e.clock = clk }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSampleSource lets Test use the host's latest reading.
func WithSampleSource(s SampleSource) Option {
	return func(e *Engine) { e.samples = s }
}

// WithHosts rejects alerts for hosts the lookup does not know.
func WithHosts(h HostLookup) Option {
	return func(e *Engine) { e.hosts = h }
}

// WithRuleCacheTTL sets how long active alerts stay cached per host.
func WithRuleCacheTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.rulesTTL = ttl
		}
	}
}

// NewEngine creates an alert engine.
func NewEngine(repo repository.AlertRepository, dispatcher Dispatcher, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:       repo,
		dispatcher: dispatcher,
		clock:      clock.Real{},
		log:        log,
		rulesTTL:   defaultRuleCacheTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.rules = cache.New(e.rulesTTL, 2*e.rulesTTL)
	return e
}

// Create validates spec and stores a new alert. New alerts are active unless
// spec says otherwise.
func (e *Engine) Create(ctx context.Context, spec AlertSpec) (*entities.Alert, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkHost(spec.HostID); err != nil {
		return nil, err
	}
	alert := &entities.Alert{IsActive: true}
	spec.apply(alert)
	if err := e.repo.CreateAlert(ctx, alert); err != nil {
		return nil, storeError(err)
	}
	e.invalidate(alert.HostID)
	e.log.Info("alert created",
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.String("host_id", alert.HostID),
		logger.String("resource", string(alert.ResourceType)))
	return alert, nil
}

// Update replaces the editable fields of an alert. The cooldown clock is
// preserved.
func (e *Engine) Update(ctx context.Context, id uint, spec AlertSpec) (*entities.Alert, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := e.checkHost(spec.HostID); err != nil {
		return nil, err
	}
	alert, err := e.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, alertError(id, err)
	}
	previousHost := alert.HostID
	spec.apply(alert)
	if err := e.repo.UpdateAlert(ctx, alert); err != nil {
		return nil, alertError(id, err)
	}
	e.invalidate(previousHost, alert.HostID)
	e.log.Info("alert updated", logger.Uint64("alert_id", uint64(id)))
	return alert, nil
}

// Delete removes an alert. Its firing history is kept.
func (e *Engine) Delete(ctx context.Context, id uint) error {
	alert, err := e.repo.GetAlert(ctx, id)
	if err != nil {
		return alertError(id, err)
	}
	if err := e.repo.DeleteAlert(ctx, id); err != nil {
		return alertError(id, err)
	}
	e.invalidate(alert.HostID)
	e.log.Info("alert deleted", logger.Uint64("alert_id", uint64(id)))
	return nil
}

// Toggle flips is_active and returns the alert.
func (e *Engine) Toggle(ctx context.Context, id uint) (*entities.Alert, error) {
	alert, err := e.repo.ToggleAlert(ctx, id)
	if err != nil {
		return nil, alertError(id, err)
	}
	e.invalidate(alert.HostID)
	e.log.Info("alert toggled",
		logger.Uint64("alert_id", uint64(id)),
		logger.Bool("active", alert.IsActive))
	return alert, nil
}

// Get returns one alert.
func (e *Engine) Get(ctx context.Context, id uint) (*entities.Alert, error) {
	alert, err := e.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, alertError(id, err)
	}
	return alert, nil
}

// List returns every alert on hostID ordered by id.
func (e *Engine) List(ctx context.Context, hostID string) ([]entities.Alert, error) {
	if err := e.checkHost(hostID); err != nil {
		return nil, err
	}
	alerts, err := e.repo.ListAlerts(ctx, repository.AlertFilter{HostID: hostID})
	if err != nil {
		return nil, storeError(err)
	}
	return alerts, nil
}

// HandleSample evaluates sample and logs failures. It matches the collector's
// sample handler signature.
func (e *Engine) HandleSample(ctx context.Context, sample *entities.ResourceSample) {
	if _, err := e.Evaluate(ctx, sample); err != nil {
		e.log.Error("alert evaluation failed",
			logger.String("host_id", sample.HostID),
			logger.Error(err))
	}
}

// Evaluate checks sample against every active alert of its host and
// dispatches the ones that fire outside their cooldown. Failures of a single
// alert are logged and skipped; the returned error only reports a failure to
// load the host's alerts.
func (e *Engine) Evaluate(ctx context.Context, sample *entities.ResourceSample) ([]*entities.AlertFiring, error) {
	if sample == nil {
		return nil, nil
	}
	alerts, err := e.activeAlerts(ctx, sample.HostID)
	if err != nil {
		return nil, err
	}

	var firings []*entities.AlertFiring
	for i := range alerts {
		firing, err := e.evaluateOne(ctx, &alerts[i], sample)
		if err != nil {
			e.metrics.ObserveEvaluation(metrics.EvaluationFailed)
			e.log.Error("failed to evaluate alert",
				logger.Uint64("alert_id", uint64(alerts[i].ID)),
				logger.String("host_id", sample.HostID),
				logger.Error(err))
			telemetry.CaptureError(err, "alerting", map[string]string{"host_id": sample.HostID})
			continue
		}
		if firing != nil {
			firings = append(firings, firing)
		}
	}
	return firings, nil
}

func (e *Engine) evaluateOne(ctx context.Context, cached *entities.Alert, sample *entities.ResourceSample) (*entities.AlertFiring, error) {
	if !Fires(sample, cached) {
		return nil, nil
	}
	now := e.clock.Now().UTC().Truncate(time.Second)

	// The cached copy may predate an edit or an earlier firing.
	alert, err := e.repo.GetAlert(ctx, cached.ID)
	if errors.Is(err, repository.ErrAlertNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !alert.IsActive || !Fires(sample, alert) {
		return nil, nil
	}
	if alert.InCooldown(now) {
		e.metrics.ObserveEvaluation(metrics.EvaluationSuppressed)
		e.log.Debug("alert suppressed by cooldown",
			logger.Uint64("alert_id", uint64(alert.ID)),
			logger.Time("last_triggered_at", *alert.LastTriggeredAt))
		return nil, nil
	}

	won, err := e.repo.ClaimFiring(ctx, alert.ID, alert.FiringSeq, now)
	if err != nil {
		return nil, err
	}
	if !won {
		e.metrics.ObserveEvaluation(metrics.EvaluationLostClaim)
		e.log.Debug("alert firing claimed by concurrent evaluation", logger.Uint64("alert_id", uint64(alert.ID)))
		return nil, nil
	}

	// The claim is spent; finish dispatch and history even if the caller
	// goes away. Each channel send carries its own timeout.
	ctx = context.WithoutCancel(ctx)
	value, _ := sample.Value(alert.ResourceType)
	msg := buildMessage(alert, value, now, false)
	dispatchID := uuid.NewString()
	results := e.dispatcher.Dispatch(ctx, alert.NotificationChannels, msg)

	firing := &entities.AlertFiring{
		AlertID:        alert.ID,
		HostID:         alert.HostID,
		ResourceType:   alert.ResourceType,
		MetricValue:    value,
		TriggeredAt:    now,
		Message:        msg.Text(),
		ChannelResults: results,
		DispatchID:     dispatchID,
	}
	saveCtx, cancel := context.WithTimeout(ctx, saveFiringTimeout)
	defer cancel()
	if err := e.repo.SaveFiring(saveCtx, firing); err != nil {
		return nil, fmt.Errorf("alert %d dispatched as %s but history was not saved: %w", alert.ID, dispatchID, err)
	}

	e.metrics.ObserveEvaluation(metrics.EvaluationFired)
	e.log.Info("alert fired",
		logger.Uint64("alert_id", uint64(alert.ID)),
		logger.String("host_id", alert.HostID),
		logger.String("resource", string(alert.ResourceType)),
		logger.Float64("value", value),
		logger.String("dispatch_id", dispatchID),
		logger.Bool("delivered", results.AnyDelivered()))
	return firing, nil
}

// Test sends a test notification on every channel of the alert. Cooldown is
// neither checked nor updated and no firing is recorded.
func (e *Engine) Test(ctx context.Context, id uint) (*TestResult, error) {
	alert, err := e.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, alertError(id, err)
	}

	value := alert.ThresholdValue
	if e.samples != nil {
		latest, err := e.samples.LatestSample(ctx, alert.HostID)
		switch {
		case err == nil && latest != nil:
			if v, ok := latest.Value(alert.ResourceType); ok {
				value = v
			}
		case err != nil && !errors.Is(err, errors.ErrNotFound):
			e.log.Warn("test dispatch falling back to threshold value",
				logger.Uint64("alert_id", uint64(id)),
				logger.Error(err))
		}
	}

	msg := buildMessage(alert, value, e.clock.Now(), true)
	results := e.dispatcher.Dispatch(ctx, alert.NotificationChannels, msg)
	result := &TestResult{
		Success: results.AnyDelivered(),
		Message: summarizeTest(results),
		Results: results,
	}
	e.log.Info("alert test dispatched",
		logger.Uint64("alert_id", uint64(id)),
		logger.Bool("success", result.Success))
	return result, nil
}

// History returns one page of an alert's firings, newest first, with the
// total count. Firings of deleted alerts remain queryable.
func (e *Engine) History(ctx context.Context, alertID uint, page, pageSize int) ([]entities.AlertFiring, int64, error) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultHistoryPageSize
	case pageSize > MaxHistoryPageSize:
		pageSize = MaxHistoryPageSize
	}
	if page > math.MaxInt/pageSize {
		verr := &errors.ValidationError{}
		verr.Add("page", fmt.Sprintf("must be at most %d", math.MaxInt/pageSize))
		return nil, 0, verr
	}
	firings, total, err := e.repo.ListFirings(ctx, repository.FiringFilter{
		AlertID: alertID,
		Limit:   pageSize,
		Offset:  (page - 1) * pageSize,
	})
	if err != nil {
		return nil, 0, storeError(err)
	}
	return firings, total, nil
}

// activeAlerts returns the host's active alerts from cache or store.
func (e *Engine) activeAlerts(ctx context.Context, hostID string) ([]entities.Alert, error) {
	if cached, ok := e.rules.Get(hostID); ok {
		return cached.([]entities.Alert), nil
	}
	gen := e.rulesGen.Load()
	active := true
	alerts, err := e.repo.ListAlerts(ctx, repository.AlertFilter{HostID: hostID, Active: &active})
	if err != nil {
		return nil, storeError(err)
	}
	// Skip caching when an edit landed while the query ran.
	if e.rulesGen.Load() == gen {
		e.rules.Set(hostID, alerts, cache.DefaultExpiration)
	}
	return alerts, nil
}

func (e *Engine) invalidate(hostIDs ...string) {
	e.rulesGen.Add(1)
	for _, id := range hostIDs {
		e.rules.Delete(id)
	}
}

func (e *Engine) checkHost(hostID string) error {
	if e.hosts == nil {
		return nil
	}
	if _, err := e.hosts.Lookup(hostID); err != nil {
		return err
	}
	return nil
}

// StartHistoryCleanup starts a background goroutine that periodically deletes
// firings older than retentionDays. A value of 0 disables cleanup.
func (e *Engine) StartHistoryCleanup(retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	e.stopCleanup()
	e.mu.Lock()
	e.cleanupStop = make(chan struct{})
	stopCh := e.cleanupStop
	e.mu.Unlock()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.cleanupHistory(retentionDays)
			case <-stopCh:
				return
			}
		}
	}()
}

func (e *Engine) cleanupHistory(retentionDays int) {
	cutoff := e.clock.Now().AddDate(0, 0, -retentionDays)
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	deleted, err := e.repo.DeleteFiringsBefore(ctx, cutoff)
	if err != nil {
		e.log.Error("alert history cleanup failed", logger.Error(err))
		return
	}
	if deleted > 0 {
		e.log.Info("alert history cleanup completed",
			logger.Int64("deleted", deleted),
			logger.Int("retention_days", retentionDays))
	}
}

// stopCleanup closes the stop channel under mu so Stop and
// StartHistoryCleanup never double-close it.
func (e *Engine) stopCleanup() {
	e.mu.Lock()
	ch := e.cleanupStop
	e.cleanupStop = nil
	e.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

// Stop shuts down background goroutines.
func (e *Engine) Stop() {
	e.stopCleanup()
}

func alertError(id uint, err error) error {
	if errors.Is(err, repository.ErrAlertNotFound) {
		return &errors.NotFoundError{Resource: "alert", ID: strconv.FormatUint(uint64(id), 10)}
	}
	return storeError(err)
}

// storeError marks uncategorized repository failures as database errors.
func storeError(err error) error {
	if err == nil || errors.CategoryOf(err) != errors.CategoryUnknown {
		return err
	}
	return errors.Wrap(err, errors.CategoryDatabase, "alerting")
}
