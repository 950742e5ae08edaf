// Package api implements the v2 HTTP API: event ingestion, rule and alert
// management, and operational endpoints.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tkarvo/sentinel-go/internal/conf"
	"github.com/tkarvo/sentinel-go/internal/correlation"
	"github.com/tkarvo/sentinel-go/internal/datastore"
	"github.com/tkarvo/sentinel-go/internal/datastore/repository"
	"github.com/tkarvo/sentinel-go/internal/logger"
)

// statsCacheTTL bounds how stale the /stats aggregates may be. The counts
// behind it hit three tables, so they are not recomputed per request.
const statsCacheTTL = 10 * time.Second

// Controller wires the HTTP surface to the stores and the ingest pipeline.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	settings   *conf.Settings
	manager    *datastore.Manager
	stores     repository.Stores
	ingestor   *correlation.Ingestor
	log        logger.Logger
	statsCache *cache.Cache
	registry   prometheus.Gatherer

	version    string
	buildDate  string
	instanceID string
	startTime  time.Time
}

// New creates the controller and registers all routes on e.
func New(e *echo.Echo, settings *conf.Settings, manager *datastore.Manager, ingestor *correlation.Ingestor, registry prometheus.Gatherer, log logger.Logger, version, buildDate string) *Controller {
	c := &Controller{
		Echo:       e,
		settings:   settings,
		manager:    manager,
		stores:     repository.NewStores(manager.DB(), manager.IsMySQL()),
		ingestor:   ingestor,
		log:        log.With(logger.String("component", "api")),
		statsCache: cache.New(statsCacheTTL, time.Minute),
		registry:   registry,
		version:    version,
		buildDate:  buildDate,
		instanceID: uuid.NewString(),
		startTime:  time.Now(),
	}

	c.Group = e.Group("/api/v2")
	c.initIngestRoutes()
	c.initEventRoutes()
	c.initRuleRoutes()
	c.initAlertRoutes()
	c.initSystemRoutes()
	return c
}

// initSystemRoutes registers health, info, stats, and metrics endpoints.
func (c *Controller) initSystemRoutes() {
	c.Group.GET("/healthz", c.Health)
	c.Group.GET("/info", c.Info)
	c.Group.GET("/stats", c.Stats)
	if c.registry != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})))
	}
}

// ingestRateLimiter builds the per-IP token bucket used on the ingest
// endpoint. A non-positive limit disables rate limiting.
func (c *Controller) ingestRateLimiter() echo.MiddlewareFunc {
	limit := c.settings.Server.IngestRateLimit
	if limit <= 0 {
		return nil
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     int(limit * 2),
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiter(store)
}

// HandleError logs the underlying error and returns a JSON error response
// with a client-safe message.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, status int) error {
	c.log.Error(message,
		logger.Error(err),
		logger.String("path", ctx.Path()),
		logger.Int("status", status))
	return ctx.JSON(status, map[string]string{"error": message})
}

// parseUintParam parses a numeric path parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}

// parseIntQuery parses an optional integer query parameter, returning the
// fallback when absent or malformed.
func parseIntQuery(ctx echo.Context, name string, fallback int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// parseSeverityQuery parses an optional severity bound.
func parseSeverityQuery(ctx echo.Context, name string) *int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, map[string]string{"error": message})
}
