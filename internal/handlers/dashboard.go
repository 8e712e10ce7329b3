package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wastetrack/anomaly-service/internal/models"
	"github.com/wastetrack/anomaly-service/internal/report"
)

// RegisterDashboardRoutes registers the oversight read path.
//
// GET /dashboard/anomalies?limit=N
// - Requires X-API-Key with the oversight role (enforced by the route group)
// - Three independent reads; each is consistent as of its own query time
func RegisterDashboardRoutes(r gin.IRoutes, svc *report.Service) {
	r.GET("/dashboard/anomalies", func(c *gin.Context) {
		limit := report.DefaultRecentLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		ctx := c.Request.Context()

		today, err := svc.CountToday(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		recent, err := svc.Recent(ctx, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		highRisk, err := svc.HighRisk(ctx, report.DefaultHighRiskWindow, report.DefaultHighRiskMinCount)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, models.DashboardResponse{
			AnomaliesToday:   today,
			Recent:           recent,
			HighRiskSubjects: highRisk,
		})
	})
}
