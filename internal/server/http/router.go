// Package http exposes the assistant as a JSON API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tasfish/internal/logging"
	"tasfish/internal/observability"
)

// RouterDeps are the collaborators served by the router.
type RouterDeps struct {
	Pipeline  Pipeline
	Tools     ToolCatalog
	Documents DocumentCounter
	Metrics   *observability.MetricsCollector
	Logger    logging.Logger
}

// RouterConfig holds HTTP-level settings.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	Debug          bool
}

// NewRouter builds the gin engine with middleware and every endpoint.
func NewRouter(deps RouterDeps, config RouterConfig) *gin.Engine {
	if !config.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := deps.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("http")
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	engine.Use(LoggingMiddleware(logger))
	engine.Use(CORSMiddleware(config.AllowedOrigins))

	handler := NewAPIHandler(deps.Pipeline, deps.Tools, deps.Documents, logger)

	api := engine.Group("/api")
	{
		api.GET("/health", handler.HandleHealth)
		api.GET("/welcome", handler.HandleWelcome)
		api.GET("/tools", handler.HandleTools)
		api.GET("/stats", handler.HandleStats)
	}
	limited := api.Group("", RateLimitMiddleware(config.RateLimit))
	{
		limited.POST("/ask", handler.HandleAsk)
		limited.POST("/route", handler.HandleRoute)
	}

	engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apiErrorResponse{Error: "not found"})
	})
	return engine
}
