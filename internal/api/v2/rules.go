package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkarvo/sentinel-go/internal/datastore/entities"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/errors"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

// initRuleRoutes registers rule management endpoints.
func (c *Controller) initRuleRoutes() {
	rules := c.Group.Group("/rules")
	rules.GET("", c.ListRules)
	rules.GET("/:id", c.GetRule)
	rules.POST("", c.CreateRule)
	rules.PATCH("/:id/toggle", c.ToggleRule)
	rules.DELETE("/:id", c.DeleteRule)
}

// ListRules returns rules newest first.
func (c *Controller) ListRules(ctx echo.Context) error {
	limit := parseIntQuery(ctx, "limit", 100)
	rules, err := c.stores.Rules.List(ctx.Request().Context(), limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list rules", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule returns a single rule by ID.
func (c *Controller) GetRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	rule, err := c.stores.Rules.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to get rule", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, rule)
}

// CreateRule validates and stores a new rule. Names must be unique.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var rule entities.Rule
	if err := ctx.Bind(&rule); err != nil {
		return badRequest(ctx, "Invalid request body")
	}
	rule.ID = 0

	if err := rule.Validate(); err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			return badRequest(ctx, verr.Error())
		}
		return badRequest(ctx, "Invalid rule")
	}

	count, err := c.stores.Rules.CountByName(ctx.Request().Context(), rule.Name)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create rule", http.StatusInternalServerError)
	}
	if count > 0 {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A rule with this name already exists"})
	}

	if err := c.stores.Rules.Create(ctx.Request().Context(), &rule); err != nil {
		return c.HandleError(ctx, err, "Failed to create rule", http.StatusInternalServerError)
	}

	c.log.Info("rule created",
		logger.Uint64("rule_id", uint64(rule.ID)),
		logger.String("name", rule.Name))
	return ctx.JSON(http.StatusCreated, rule)
}

// ToggleRule enables or disables a rule. Takes effect on the next
// ingested event.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&req); err != nil {
		return badRequest(ctx, "Invalid request body")
	}

	if err := c.stores.Rules.Toggle(ctx.Request().Context(), id, req.Enabled); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to toggle rule", http.StatusInternalServerError)
	}

	c.log.Info("rule toggled",
		logger.Uint64("rule_id", uint64(id)),
		logger.Bool("enabled", req.Enabled))
	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": req.Enabled})
}

// DeleteRule removes a rule. Existing alerts keep their rule_id.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return badRequest(ctx, "Invalid rule ID")
	}

	if err := c.stores.Rules.Delete(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Rule not found"})
		}
		return c.HandleError(ctx, err, "Failed to delete rule", http.StatusInternalServerError)
	}

	c.log.Info("rule deleted", logger.Uint64("rule_id", uint64(id)))
	return ctx.NoContent(http.StatusNoContent)
}
