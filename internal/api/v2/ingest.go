package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
)

// ingestRequest is the payload accepted by POST /api/v2/ingest.
type ingestRequest struct {
	Timestamp *time.Time        `json:"ts"`
	Source    string            `json:"source"`
	Severity  int               `json:"severity"`
	Message   string            `json:"message"`
	Meta      map[string]string `json:"meta"`
}

// ingestResponse reports the stored event and any alerts it raised.
type ingestResponse struct {
	Event  *entities.Event   `json:"event"`
	Alerts []*entities.Alert `json:"alerts"`
}

// initIngestRoutes registers the ingest endpoint, rate limited per IP.
func (c *Controller) initIngestRoutes() {
	if limiter := c.ingestRateLimiter(); limiter != nil {
		c.Group.POST("/ingest", c.Ingest, limiter)
		return
	}
	c.Group.POST("/ingest", c.Ingest)
}

// Ingest validates the event, persists it, and runs correlation. On
// success it returns 201 with the event and any alerts created; on
// failure nothing is stored.
func (c *Controller) Ingest(ctx echo.Context) error {
	var req ingestRequest
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	if req.Source == "" {
		return badRequest(ctx, "Source is required")
	}
	if len(req.Source) > 64 {
		return badRequest(ctx, "Source must be at most 64 characters")
	}
	if req.Message == "" {
		return badRequest(ctx, "Message is required")
	}
	if req.Severity < entities.SeverityMin || req.Severity > entities.SeverityMax {
		return badRequest(ctx, "Severity must be between 0 and 10")
	}

	event := &entities.Event{
		Source:   req.Source,
		Severity: req.Severity,
		Message:  req.Message,
		Meta:     req.Meta,
	}
	if req.Timestamp != nil {
		event.Timestamp = req.Timestamp.UTC()
	}

	alerts, err := c.ingestor.Ingest(ctx.Request().Context(), event)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to ingest event", http.StatusInternalServerError)
	}
	if alerts == nil {
		alerts = []*entities.Alert{}
	}

	return ctx.JSON(http.StatusCreated, ingestResponse{Event: event, Alerts: alerts})
}
