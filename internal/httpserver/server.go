package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wastetrack/anomaly-service/internal/auth"
	"github.com/wastetrack/anomaly-service/internal/config"
	"github.com/wastetrack/anomaly-service/internal/handlers"
	"github.com/wastetrack/anomaly-service/internal/models"
	"github.com/wastetrack/anomaly-service/internal/pipeline"
	"github.com/wastetrack/anomaly-service/internal/report"
	"github.com/wastetrack/anomaly-service/internal/store"
)

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /metrics, /internal/detect
// Facility role: /submissions
// Oversight role: /dashboard/anomalies
func NewRouter(cfg config.Config, st *store.PostgresStore, orc *pipeline.Orchestrator, rpt *report.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the DB dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The detection endpoint sits outside the API-key group: the invocation
	// wrapper reaches it over plain HTTP exactly as it would a separately
	// deployed detector.
	handlers.RegisterDetectRoutes(r)

	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	facility := authGroup.Group("/")
	facility.Use(auth.RequireRole(models.RoleFacility))
	handlers.RegisterSubmissionRoutes(facility, orc, cfg.Location)

	oversight := authGroup.Group("/")
	oversight.Use(auth.RequireRole(models.RoleOversight))
	handlers.RegisterDashboardRoutes(oversight, rpt)

	return r
}
