// Package api hosts the HTTP server: the v2 JSON API, Prometheus metrics and
// the health probe.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/observability/telemetry"
)

// APIPrefix is the mount point of the versioned JSON API.
const APIPrefix = "/api/v2"

const healthTimeout = 2 * time.Second

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Server wraps the echo instance.
type Server struct {
	echo   *echo.Echo
	log    logger.Logger
	health HealthFunc
}

// NewServer creates a server with recovery and request logging, and the
// /metrics and /healthz endpoints. health may be nil.
func NewServer(log logger.Logger, gatherer prometheus.Gatherer, health HealthFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, log: log, health: health}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			telemetry.CaptureError(err, "api", map[string]string{"path": c.Path()})
			log.Error("handler panic",
				logger.String("path", c.Path()),
				logger.Error(err),
				logger.String("stack", string(stack)))
			return err
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug("request",
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency))
			return nil
		},
	}))

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	return s
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// APIGroup returns the group the v2 controller registers on.
func (s *Server) APIGroup() *echo.Group {
	return s.echo.Group(APIPrefix)
}

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", logger.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
