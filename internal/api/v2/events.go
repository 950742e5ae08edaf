package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/errors"
)

const maxEventPageSize = 500

// initEventRoutes registers event endpoints.
func (c *Controller) initEventRoutes() {
	events := c.Group.Group("/events")
	events.GET("", c.ListEvents)
	events.POST("", c.CreateEvent)
	events.GET("/:id", c.GetEvent)
}

// createEventRequest is the payload accepted by POST /api/v2/events.
type createEventRequest struct {
	Timestamp *time.Time `json:"ts"`
	Source    string     `json:"source"`
	Severity  int        `json:"severity"`
	Message   string     `json:"message"`
}

// CreateEvent stores an event directly, bypassing correlation. Use
// /ingest for events that should be evaluated against rules.
func (c *Controller) CreateEvent(ctx echo.Context) error {
	var req createEventRequest
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
		Timestamp: time.Now().UTC(),
		Source:    req.Source,
		Severity:  req.Severity,
		Message:   req.Message,
	}
	if req.Timestamp != nil {
		event.Timestamp = req.Timestamp.UTC()
	}

	if err := c.stores.Events.Create(ctx.Request().Context(), event); err != nil {
		return c.HandleError(ctx, err, "Failed to create event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusCreated, event)
}

// ListEvents returns events newest first with keyset pagination: pass the
// smallest ID from the previous page as before_id to continue.
func (c *Controller) ListEvents(ctx echo.Context) error {
	filter := repository.EventFilter{
		Source:      ctx.QueryParam("source"),
		SeverityMin: parseSeverityQuery(ctx, "severity_min"),
		SeverityMax: parseSeverityQuery(ctx, "severity_max"),
		Query:       ctx.QueryParam("q"),
		MetaKey:     ctx.QueryParam("meta_key"),
		MetaValue:   ctx.QueryParam("meta_value"),
		Limit:       parseIntQuery(ctx, "limit", 50),
	}
	if filter.Limit > maxEventPageSize {
		filter.Limit = maxEventPageSize
	}
	if beforeID := parseIntQuery(ctx, "before_id", 0); beforeID > 0 {
		filter.BeforeID = uint(beforeID)
	}

	events, err := c.stores.Events.List(ctx.Request().Context(), filter)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list events", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// GetEvent returns a single event by ID.
func (c *Controller) GetEvent(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid event ID")
	}

	event, err := c.stores.Events.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Event not found"})
		}
		return c.HandleError(ctx, err, "Failed to get event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, event)
}
