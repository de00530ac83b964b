// Package api implements the hostpulse JSON API under /api/v2.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/hostpulse/internal/alerting"
	"github.com/tphakala/hostpulse/internal/charts"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/monitor"
)

// Controller serves the v2 API routes.
type Controller struct {
	Group *echo.Group

	collector *monitor.Collector
	engine    *alerting.Engine
	bus       *monitor.SampleBus
	charts    *charts.Aggregator
	logger    logger.Logger

	// ctx ends on server shutdown and closes open streams.
	ctx context.Context
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  []errors.FieldError `json:"fields,omitempty"`
}

// New creates the controller and registers its routes on group.
func New(ctx context.Context, group *echo.Group, collector *monitor.Collector, engine *alerting.Engine,
	bus *monitor.SampleBus, aggregator *charts.Aggregator, log logger.Logger) *Controller {
	c := &Controller{
		Group:     group,
		collector: collector,
		engine:    engine,
		bus:       bus,
		charts:    aggregator,
		logger:    log,
		ctx:       ctx,
	}
	c.initHostRoutes()
	c.initAlertRoutes()
	return c
}

// HandleError writes err as JSON with a status derived from its category.
// fallbackStatus applies to uncategorized errors.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, fallbackStatus int) error {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		resp := ErrorResponse{Error: "validation failed", Message: message}
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			resp.Fields = verr.Fields
		}
		return ctx.JSON(http.StatusUnprocessableEntity, resp)
	case errors.CategoryNotFound:
		return ctx.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.CategoryCollection:
		return ctx.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error(), Message: message})
	}

	c.logErrorIfEnabled(message,
		logger.String("path", ctx.Path()),
		logger.Error(err))
	return ctx.JSON(fallbackStatus, ErrorResponse{Error: message})
}

func (c *Controller) logErrorIfEnabled(msg string, fields ...logger.Field) {
	if c.logger != nil {
		c.logger.Error(msg, fields...)
	}
}

func (c *Controller) logInfoIfEnabled(msg string, fields ...logger.Field) {
	if c.logger != nil {
		c.logger.Info(msg, fields...)
	}
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// queryInt parses an optional integer query parameter. Missing values return
// def; malformed values are recorded on verr.
func queryInt(ctx echo.Context, name string, def int, verr *errors.ValidationError) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(name, "must be an integer")
		return def
	}
	return v
}
