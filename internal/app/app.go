// Package app wires configuration, storage, collection, alerting and the
// HTTP API into a running hostpulse process.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/tphakala/hostpulse/internal/alerting"
	"github.com/tphakala/hostpulse/internal/api"
	apiv2 "github.com/tphakala/hostpulse/internal/api/v2"
	"github.com/tphakala/hostpulse/internal/charts"
	"github.com/tphakala/hostpulse/internal/clock"
	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore"
	"github.com/tphakala/hostpulse/internal/datastore/repository"
	"github.com/tphakala/hostpulse/internal/hostprobe"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/monitor"
	"github.com/tphakala/hostpulse/internal/notification"
	"github.com/tphakala/hostpulse/internal/observability/metrics"
	"github.com/tphakala/hostpulse/internal/observability/telemetry"
)

const shutdownTimeout = 15 * time.Second

// App holds every long-lived component of a hostpulse process.
type App struct {
	settings *conf.Settings
	log      logger.Logger
	db       *gorm.DB

	collector *monitor.Collector
	engine    *alerting.Engine
	bus       *monitor.SampleBus
	poller    *monitor.Poller
	server    *api.Server
	cancel    context.CancelFunc
}

// NewLogger builds the process logger from log settings.
func NewLogger(w io.Writer, settings *conf.Settings) logger.Logger {
	return logger.NewSlogLoggerWithOptions(w, logger.Options{
		Level:    logger.ParseLevel(settings.Log.Level),
		Format:   logger.Format(settings.Log.Format),
		Location: settings.Location(),
	})
}

// New opens the database and builds all components without starting any
// background work. probe overrides the kind-based host probe router when
// non-nil.
func New(settings *conf.Settings, log logger.Logger, probe hostprobe.Probe) (*App, error) {
	// Open also migrates the schema.
	db, err := datastore.Open(settings.Database)
	if err != nil {
		return nil, err
	}

	if probe == nil {
		probe = hostprobe.NewRouter(map[string]hostprobe.Probe{
			conf.HostKindSSH:   hostprobe.NewSSHProbe(log.Module("ssh")),
			conf.HostKindLocal: hostprobe.NewLocalProbe(),
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	hosts := hostprobe.NewDirectory(settings.Hosts)
	metricRepo := repository.NewMetricRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	clk := clock.Real{}

	collector := monitor.NewCollector(hosts, probe, metricRepo, log.Module("monitor"),
		monitor.WithClock(clk),
		monitor.WithProbeTimeout(settings.Monitor.ProbeTimeout.Std()),
		monitor.WithMetrics(m),
	)

	sendTimeout := settings.Notification.SendTimeout.Std()
	httpClient := &http.Client{Timeout: sendTimeout}
	dispatcher := notification.NewDispatcher(
		notification.NewSenders(settings.Notification, httpClient),
		sendTimeout, log.Module("notification"), m)

	engine := alerting.NewEngine(alertRepo, dispatcher, log.Module("alerting"),
		alerting.WithClock(clk),
		alerting.WithMetrics(m),
		alerting.WithSampleSource(metricRepo),
		alerting.WithHosts(hosts),
		alerting.WithRuleCacheTTL(settings.Alerting.RuleCacheTTL.Std()),
	)

	bus := monitor.NewSampleBus()
	collector.OnSample(engine.HandleSample)
	collector.OnSample(bus.Publish)

	poller := monitor.NewPoller(collector, metricRepo, settings.Monitor.PollInterval.Std(),
		settings.Monitor.SampleRetentionDays, log.Module("poller"))

	a := &App{
		settings:  settings,
		log:       log,
		db:        db,
		collector: collector,
		engine:    engine,
		bus:       bus,
		poller:    poller,
	}

	a.server = api.NewServer(log.Module("http"), registry, a.ping)
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	apiv2.New(ctx, a.server.APIGroup(), collector, engine, bus,
		charts.NewAggregator(settings.Location()), log.Module("api"))

	return a, nil
}

func (a *App) ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Server exposes the HTTP server.
func (a *App) Server() *api.Server { return a.server }

// Collector exposes the sample collector.
func (a *App) Collector() *monitor.Collector { return a.collector }

// Start launches polling, history cleanup and the HTTP listener. Listener
// errors are delivered on the returned channel.
func (a *App) Start(ctx context.Context) <-chan error {
	a.poller.Start(ctx)
	a.engine.StartHistoryCleanup(a.settings.Alerting.HistoryRetentionDays)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(a.settings.Web.Listen)
	}()
	a.log.Info("hostpulse started",
		logger.String("listen", a.settings.Web.Listen),
		logger.Int("hosts", len(a.settings.Hosts)),
		logger.Duration("poll_interval", a.settings.Monitor.PollInterval.Std()))
	return errCh
}

// Shutdown stops the listener and background work, then closes the database.
func (a *App) Shutdown(ctx context.Context) error {
	// Live streams end on cancel; hijacked connections are not waited on
	// by the HTTP shutdown.
	a.cancel()
	var firstErr error
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error("http shutdown failed", logger.Error(err))
		firstErr = err
	}
	a.poller.Stop()
	a.engine.Stop()
	a.bus.Stop()
	if err := datastore.Close(a.db); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Close releases resources of an App that was never started.
func (a *App) Close() error {
	a.cancel()
	a.engine.Stop()
	a.bus.Stop()
	return datastore.Close(a.db)
}

// Run loads cfgFile and serves until SIGINT or SIGTERM.
func Run(cfgFile string) error {
	settings, err := conf.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := NewLogger(os.Stdout, settings)

	flush, err := telemetry.Init(settings.Sentry, Release())
	if err != nil {
		log.Warn("sentry disabled", logger.Error(err))
	} else {
		defer flush()
	}

	log.Info("starting hostpulse", logger.String("version", Version), logger.String("commit", Commit))

	a, err := New(settings, log, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := a.Start(ctx)
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error("http server stopped", logger.Error(serveErr))
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", logger.Error(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	log.Info("hostpulse stopped")
	return serveErr
}

// Collect takes one sample from hostID, evaluates alerts against it and
// writes it to w as JSON.
func Collect(ctx context.Context, cfgFile, hostID string, w io.Writer) error {
	settings, err := conf.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a, err := New(settings, NewLogger(os.Stderr, settings), nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return a.collectTo(ctx, hostID, w)
}

func (a *App) collectTo(ctx context.Context, hostID string, w io.Writer) error {
	sample, err := a.collector.Collect(ctx, hostID)
	if err != nil {
		return err
	}
	if sample == nil {
		return fmt.Errorf("collection for host %s skipped: another collection is in progress", hostID)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sample)
}
