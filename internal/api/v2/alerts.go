package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/errors"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

const maxAlertPageSize = 200

// initAlertRoutes registers alert endpoints. The detailed routes are
// registered before /:id so echo does not treat "detailed" as an ID.
func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.GET("/detailed", c.ListDetailedAlerts)
	alerts.GET("/detailed/count", c.CountDetailedAlerts)
	alerts.GET("/detailed/:id", c.GetDetailedAlert)
	alerts.GET("", c.ListAlerts)
	alerts.GET("/:id", c.GetAlert)
	alerts.PATCH("/:id/status", c.UpdateAlertStatus)
}

func alertFilterFromQuery(ctx echo.Context) (repository.AlertFilter, error) {
	filter := repository.AlertFilter{
		Status:   ctx.QueryParam("status"),
		GroupKey: ctx.QueryParam("group_key"),
		Limit:    parseIntQuery(ctx, "limit", 50),
		Offset:   parseIntQuery(ctx, "offset", 0),
	}
	if filter.Status != "" && !entities.ValidStatus(filter.Status) {
		return filter, errors.New("unknown status")
	}
	if filter.Limit > maxAlertPageSize {
		filter.Limit = maxAlertPageSize
	}
	if ruleID := parseIntQuery(ctx, "rule_id", 0); ruleID > 0 {
		filter.RuleID = uint(ruleID)
	}
	return filter, nil
}

func detailedFilterFromQuery(ctx echo.Context) (repository.DetailedAlertFilter, error) {
	base, err := alertFilterFromQuery(ctx)
	if err != nil {
		return repository.DetailedAlertFilter{}, err
	}
	return repository.DetailedAlertFilter{
		AlertFilter: base,
		SeverityMin: parseSeverityQuery(ctx, "severity_min"),
		SeverityMax: parseSeverityQuery(ctx, "severity_max"),
		Source:      ctx.QueryParam("source"),
		Query:       ctx.QueryParam("q"),
	}, nil
}

// ListAlerts returns alerts newest first.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter, err := alertFilterFromQuery(ctx)
	if err != nil {
		return badRequest(ctx, "Unknown alert status")
	}

	alerts, err := c.stores.Alerts.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// ListDetailedAlerts returns the joined alert + rule + event projection.
func (c *Controller) ListDetailedAlerts(ctx echo.Context) error {
	filter, err := detailedFilterFromQuery(ctx)
	if err != nil {
		return badRequest(ctx, "Unknown alert status")
	}

	alerts, err := c.stores.Alerts.ListDetailed(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// CountDetailedAlerts returns the total matching the detailed filter, for
// pagination UIs.
func (c *Controller) CountDetailedAlerts(ctx echo.Context) error {
	filter, err := detailedFilterFromQuery(ctx)
	if err != nil {
		return badRequest(ctx, "Unknown alert status")
	}

	count, err := c.stores.Alerts.CountDetailed(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to count alerts", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]int64{"count": count})
}

// GetAlert returns a single alert by ID.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}

	alert, err := c.stores.Alerts.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// GetDetailedAlert returns the joined projection for one alert.
func (c *Controller) GetDetailedAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}

	alert, err := c.stores.Alerts.GetDetailed(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, alert)
}

// UpdateAlertStatus transitions an alert between open, ack, and closed.
// Closing an alert frees its rule/group pair for future alerts.
func (c *Controller) UpdateAlertStatus(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid alert ID")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if !entities.ValidStatus(req.Status) {
		return badRequest(ctx, "Status must be one of open, ack, closed")
	}

	alert, err := c.stores.Alerts.UpdateStatus(ctx.Request().Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.HandleError(ctx, err, "Failed to update alert status", http.StatusInternalServerError)
	}

	c.log.Info("alert status updated",
		logger.Uint64("alert_id", uint64(id)),
		logger.String("status", req.Status))
	return ctx.JSON(http.StatusOK, alert)
}
