package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/logger"
	"github.com/tphakala/hostpulse/internal/monitor"
)

const defaultProcessLimit = 10

// SampleResponse carries a sample and whether it is the last known good one
// after a failed collection.
type SampleResponse struct {
	HostID  string                   `json:"host_id"`
	Sample  *entities.ResourceSample `json:"sample"`
	Stale   bool                     `json:"stale"`
	Skipped bool                     `json:"skipped,omitempty"`
	Error   string                   `json:"error,omitempty"`
	Timeout bool                     `json:"timeout,omitempty"`
}

// initHostRoutes registers host and metric endpoints.
func (c *Controller) initHostRoutes() {
	c.Group.GET("/hosts", c.ListHosts)

	host := c.Group.Group("/hosts/:host")
	host.GET("/metrics/latest", c.GetLatestSample)
	host.GET("/metrics/history", c.GetSampleHistory)
	host.GET("/metrics/chart", c.GetChartData)
	host.POST("/metrics/refresh", c.RefreshSample)
	host.GET("/metrics/stream", c.StreamSamples)
	host.GET("/processes", c.GetTopProcesses)
	host.GET("/alerts", c.ListHostAlerts)
}

// ListHosts returns the configured hosts.
func (c *Controller) ListHosts(ctx echo.Context) error {
	hosts := c.collector.Hosts()
	return ctx.JSON(http.StatusOK, map[string]any{
		"hosts": hosts,
		"count": len(hosts),
	})
}

// GetLatestSample returns the newest sample of a host; sample is null when
// the host has never been sampled.
func (c *Controller) GetLatestSample(ctx echo.Context) error {
	hostID := ctx.Param("host")
	sample, err := c.collector.Latest(ctx.Request().Context(), hostID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get latest sample", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, SampleResponse{HostID: hostID, Sample: sample})
}

// GetSampleHistory returns samples within ?period=, oldest first.
func (c *Controller) GetSampleHistory(ctx echo.Context) error {
	hostID := ctx.Param("host")
	period, samples, err := c.loadHistory(ctx, hostID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get sample history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"host_id": hostID,
		"period":  period,
		"samples": samples,
		"count":   len(samples),
	})
}

// GetChartData returns chart series for ?period=.
func (c *Controller) GetChartData(ctx echo.Context) error {
	period, samples, err := c.loadHistory(ctx, ctx.Param("host"))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build chart data", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, c.charts.ForPeriod(period).Build(samples))
}

func (c *Controller) loadHistory(ctx echo.Context, hostID string) (entities.Period, []entities.ResourceSample, error) {
	period, err := entities.ParsePeriod(ctx.QueryParam("period"))
	if err != nil {
		return "", nil, errors.NewValidation("period", err.Error())
	}
	samples, err := c.collector.History(ctx.Request().Context(), hostID, period)
	if err != nil {
		return "", nil, err
	}
	if samples == nil {
		samples = []entities.ResourceSample{}
	}
	return period, samples, nil
}

// RefreshSample collects a sample now. A failed collection answers 502 with
// the last good sample marked stale.
func (c *Controller) RefreshSample(ctx echo.Context) error {
	hostID := ctx.Param("host")
	reqCtx := ctx.Request().Context()

	sample, err := c.collector.Collect(reqCtx, hostID)
	if err == nil && sample != nil {
		return ctx.JSON(http.StatusOK, SampleResponse{HostID: hostID, Sample: sample})
	}

	var cerr *monitor.CollectionError
	switch {
	case err == nil:
		// Another collection for this host is in flight.
		last, lerr := c.collector.Latest(reqCtx, hostID)
		if lerr != nil {
			return c.HandleError(ctx, lerr, "Failed to get latest sample", http.StatusInternalServerError)
		}
		return ctx.JSON(http.StatusAccepted, SampleResponse{HostID: hostID, Sample: last, Skipped: true})
	case errors.As(err, &cerr):
		last, lerr := c.collector.Latest(reqCtx, hostID)
		if lerr != nil {
			c.logErrorIfEnabled("failed to load last sample after collection error",
				logger.String("host_id", hostID), logger.Error(lerr))
		}
		return ctx.JSON(http.StatusBadGateway, SampleResponse{
			HostID:  hostID,
			Sample:  last,
			Stale:   true,
			Error:   cerr.Error(),
			Timeout: cerr.Timeout,
		})
	default:
		return c.HandleError(ctx, err, "Failed to collect sample", http.StatusInternalServerError)
	}
}

// GetTopProcesses returns the busiest processes by ?resource=cpu|memory.
func (c *Controller) GetTopProcesses(ctx echo.Context) error {
	hostID := ctx.Param("host")
	verr := &errors.ValidationError{}
	limit := queryInt(ctx, "limit", defaultProcessLimit, verr)
	if err := verr.Err(); err != nil {
		return c.HandleError(ctx, err, "Invalid process query", http.StatusBadRequest)
	}
	resource := ctx.QueryParam("resource")
	if resource == "" {
		resource = monitor.ProcessSortCPU
	}

	procs, err := c.collector.TopProcesses(ctx.Request().Context(), hostID, resource, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list processes", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"host_id":   hostID,
		"resource":  resource,
		"processes": procs,
	})
}
