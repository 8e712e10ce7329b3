package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wastetrack/anomaly-service/internal/auth"
	"github.com/wastetrack/anomaly-service/internal/models"
	"github.com/wastetrack/anomaly-service/internal/pipeline"
)

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to loc.
func parseRFC3339(ts string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// RegisterSubmissionRoutes registers the primary write path.
//
// POST /submissions
// - Requires X-API-Key with the facility role
// - Durable: returns success only after the submission row is written
// - Anomaly detection runs after the write and can never fail the request
// - Idempotent: duplicates detected via submission id uniqueness
func RegisterSubmissionRoutes(r gin.IRoutes, orc *pipeline.Orchestrator, loc *time.Location) {
	r.POST("/submissions", func(c *gin.Context) {
		caller := auth.Caller(c)
		if caller.ID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req models.SubmissionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Required fields per contract.
		if req.Quantity == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity required"})
			return
		}
		if math.IsNaN(*req.Quantity) || math.IsInf(*req.Quantity, 0) || *req.Quantity < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be a non-negative number"})
			return
		}
		if req.Timestamp == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp required"})
			return
		}

		ts, err := parseRFC3339(req.Timestamp, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
			return
		}

		// A facility may only submit for itself.
		subjectID := req.SubjectID
		if subjectID == "" {
			subjectID = caller.ID
		}
		if subjectID != caller.ID {
			c.JSON(http.StatusForbidden, gin.H{"error": "subject_id does not match caller"})
			return
		}

		// Idempotency precedence:
		// 1) Idempotency-Key header (recommended for retries)
		// 2) submission_id in payload
		// 3) generated UUID (fallback; cannot dedupe client retries)
		submissionID := c.GetHeader("Idempotency-Key")
		if submissionID == "" {
			submissionID = req.SubmissionID
		}
		if submissionID == "" {
			submissionID = uuid.New().String()
		}

		out, err := orc.Process(c.Request.Context(), models.Submission{
			ID:        submissionID,
			SubjectID: subjectID,
			Quantity:  *req.Quantity,
			CreatedAt: ts,
		})
		if err != nil {
			// The only fatal stage: the submission row itself was not written.
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db insert failed"})
			return
		}

		// 201 for new submissions, 200 for duplicates (idempotent success).
		// The response shape never reflects detection outcomes.
		status := http.StatusCreated
		if out.Duplicate {
			status = http.StatusOK
		}

		c.JSON(status, models.SubmissionResponse{
			SubmissionID: out.SubmissionID,
			Duplicate:    out.Duplicate,
		})
	})
}
