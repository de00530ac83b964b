package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/hostpulse/internal/alerting"
	"github.com/tphakala/hostpulse/internal/errors"
	"github.com/tphakala/hostpulse/internal/logger"
)

// initAlertRoutes registers alert endpoints.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")

	alerts.GET("/schema", c.GetAlertSchema)
	alerts.POST("", c.CreateAlert)
	alerts.GET("/:id", c.GetAlert)
	alerts.PUT("/:id", c.UpdateAlert)
	alerts.DELETE("/:id", c.DeleteAlert)
	alerts.PATCH("/:id/toggle", c.ToggleAlert)
	alerts.POST("/:id/test", c.TestAlert)
	alerts.GET("/:id/history", c.ListAlertHistory)
}

// GetAlertSchema returns the alert form schema. ?host_id= adds suggested
// alerts for that host.
func (c *Controller) GetAlertSchema(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, alerting.GetSchema(ctx.QueryParam("host_id")))
}

// ListHostAlerts returns all alerts of a host.
func (c *Controller) ListHostAlerts(ctx echo.Context) error {
	hostID := ctx.Param("host")
	alerts, err := c.engine.List(ctx.Request().Context(), hostID)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"host_id": hostID,
		"alerts":  alerts,
		"count":   len(alerts),
	})
}

// GetAlert returns a single alert by ID.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	alert, err := c.engine.Get(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// CreateAlert creates an alert.
func (c *Controller) CreateAlert(ctx echo.Context) error {
	spec, err := decodeSpec(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Message: err.Error()})
	}
	alert, err := c.engine.Create(ctx.Request().Context(), spec)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create alert", http.StatusInternalServerError)
	}
	c.logInfoIfEnabled("alert created via api",
		logger.Uint64("id", uint64(alert.ID)),
		logger.String("host_id", alert.HostID))
	return ctx.JSON(http.StatusCreated, alert)
}

// UpdateAlert replaces an alert's editable fields.
func (c *Controller) UpdateAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	spec, err := decodeSpec(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Message: err.Error()})
	}
	alert, err := c.engine.Update(ctx.Request().Context(), id, spec)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// DeleteAlert deletes an alert. Its history is kept.
func (c *Controller) DeleteAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	if err := c.engine.Delete(ctx.Request().Context(), id); err != nil {
		return c.HandleError(ctx, err, "Failed to delete alert", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ToggleAlert flips an alert between active and inactive.
func (c *Controller) ToggleAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	alert, err := c.engine.Toggle(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to toggle alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// TestAlert sends a test notification on every channel of an alert.
func (c *Controller) TestAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	result, err := c.engine.Test(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to test alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, result)
}

// ListAlertHistory returns a page of an alert's firings, newest first.
func (c *Controller) ListAlertHistory(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid alert ID"})
	}
	verr := &errors.ValidationError{}
	page := queryInt(ctx, "page", 1, verr)
	pageSize := queryInt(ctx, "page_size", alerting.DefaultHistoryPageSize, verr)
	if err := verr.Err(); err != nil {
		return c.HandleError(ctx, err, "Invalid history query", http.StatusBadRequest)
	}
	page = max(page, 1)
	pageSize = min(max(pageSize, 1), alerting.MaxHistoryPageSize)

	items, total, err := c.engine.History(ctx.Request().Context(), id, page, pageSize)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alert history", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"history":   items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func decodeSpec(ctx echo.Context) (alerting.AlertSpec, error) {
	var spec alerting.AlertSpec
	err := json.NewDecoder(ctx.Request().Body).Decode(&spec)
	return spec, err
}
