package server

import (
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/planloom/planloom-backend/internal/handlers"
	"github.com/planloom/planloom-backend/internal/middleware"
	"github.com/planloom/planloom-backend/internal/observability"
)

type RouterConfig struct {
	ServiceName        string
	CORSOrigins        []string
	HealthHandler      *handlers.HealthHandler
	MaintenanceHandler *handlers.MaintenanceHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(apiMetrics())

	// Public
	router.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	router.GET("/metrics", cfg.HealthHandler.Metrics)

	// Protected
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireCredential())
	protected.GET("/maintenance/analyze", cfg.MaintenanceHandler.Analyze)
	protected.DELETE("/maintenance/cleanup", cfg.MaintenanceHandler.Cleanup)
	protected.GET("/maintenance/history", cfg.MaintenanceHandler.History)

	return router
}

func apiMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m := observability.Current()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
