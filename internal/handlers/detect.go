package handlers

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wastetrack/anomaly-service/internal/models"
	"github.com/wastetrack/anomaly-service/internal/stats"
)

// RegisterDetectRoutes registers the detection endpoint the invocation
// wrapper calls. It runs on an internal path outside the API-key group so
// the wrapper can reach it the same way it would reach a separately
// deployed detector.
//
// POST /internal/detect
func RegisterDetectRoutes(r gin.IRoutes) {
	r.POST("/internal/detect", func(c *gin.Context) {
		var req models.DetectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		if req.SubjectID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subjectId required"})
			return
		}
		if req.CurrentQuantity == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "currentQuantity required"})
			return
		}
		if math.IsNaN(*req.CurrentQuantity) || math.IsInf(*req.CurrentQuantity, 0) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "currentQuantity must be finite"})
			return
		}

		v := stats.Classify(*req.CurrentQuantity, req.History)

		c.JSON(http.StatusOK, models.DetectResponse{
			SubjectID: req.SubjectID,
			IsAnomaly: &v.IsAnomaly,
			ZScore:    &v.ZScore,
			Mean:      &v.Mean,
			StdDev:    &v.StdDev,
		})
	})
}
