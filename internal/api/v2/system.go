package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

const statsCacheKey = "stats"

// statsResponse aggregates store counts for dashboards.
type statsResponse struct {
	Events         int64            `json:"events"`
	Rules          int64            `json:"rules"`
	RulesEnabled   int64            `json:"rules_enabled"`
	Alerts         int64            `json:"alerts"`
	AlertsByStatus map[string]int64 `json:"alerts_by_status"`
	TopGroupKeys   []groupKeyStat   `json:"top_group_keys"`
}

type groupKeyStat struct {
	GroupKey string `json:"group_key"`
	Count    int64  `json:"count"`
}

// Health reports liveness, including database connectivity.
func (c *Controller) Health(ctx echo.Context) error {
	if err := c.manager.Ping(ctx.Request().Context()); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Info returns build and runtime information.
func (c *Controller) Info(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"name":           c.settings.Main.Name,
		"version":        c.version,
		"build_date":     c.buildDate,
		"instance_id":    c.instanceID,
		"go_version":     runtime.Version(),
		"system_time":    time.Now().UTC(),
		"uptime_seconds": int64(time.Since(c.startTime).Seconds()),
		"database":       c.settings.Database.Type,
		"group_attr":     c.settings.Correlation.GroupAttribute,
	})
}

// Stats returns store aggregates, cached briefly to keep dashboards from
// hammering the database.
func (c *Controller) Stats(ctx echo.Context) error {
	if cached, found := c.statsCache.Get(statsCacheKey); found {
		return ctx.JSON(http.StatusOK, cached)
	}

	reqCtx := ctx.Request().Context()
	stats := statsResponse{AlertsByStatus: map[string]int64{}}

	var err error
	if stats.Events, err = c.stores.Events.Count(reqCtx); err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	if stats.Rules, err = c.stores.Rules.Count(reqCtx); err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	if stats.RulesEnabled, err = c.stores.Rules.CountEnabled(reqCtx); err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	if stats.Alerts, err = c.stores.Alerts.Count(reqCtx); err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	byStatus, err := c.stores.Alerts.CountByStatus(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	stats.AlertsByStatus = byStatus

	top, err := c.stores.Alerts.TopGroupKeys(reqCtx, 10)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to compute stats", http.StatusInternalServerError)
	}
	for _, g := range top {
		stats.TopGroupKeys = append(stats.TopGroupKeys, groupKeyStat{GroupKey: g.GroupKey, Count: g.Count})
	}

	c.statsCache.SetDefault(statsCacheKey, stats)
	return ctx.JSON(http.StatusOK, stats)
}
