// Package telemetry reports unexpected failures to Sentry when a DSN is
// configured. Every function is a no-op otherwise.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/hostpulse/internal/conf"
)

const flushTimeout = 2 * time.Second

// Init configures the Sentry client. The returned flush func must be called
// on shutdown.
func Init(settings conf.SentrySettings, release string) (func(), error) {
	if settings.DSN == "" {
		return func() {}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     release,
	})
	if err != nil {
		return func() {}, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return func() { sentry.Flush(flushTimeout) }, nil
}

// Enabled reports whether a Sentry client is active.
func Enabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureError reports err with component and tag context.
func CaptureError(err error, component string, tags map[string]string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(recovered any, component string) {
	if recovered == nil || !Enabled() {
		return
	}
	CaptureError(fmt.Errorf("panic: %v", recovered), component, nil)
}
