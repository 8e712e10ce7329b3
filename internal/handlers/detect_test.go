package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastetrack/anomaly-service/internal/models"
)

func detectRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterDetectRoutes(r)
	return r
}

func postDetect(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/detect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	detectRouter().ServeHTTP(w, req)
	return w
}

func TestDetectEndpoint_ClassifiesAnomaly(t *testing.T) {
	w := postDetect(t, `{"subjectId":"facility-9","currentQuantity":150,"history":[100,110,105,95,100]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, "facility-9", resp.SubjectID)
	require.NotNil(t, resp.IsAnomaly)
	assert.True(t, *resp.IsAnomaly)
	assert.InDelta(t, 8.42, *resp.ZScore, 0.001)
	assert.InDelta(t, 102.0, *resp.Mean, 0.001)
	assert.InDelta(t, 5.70, *resp.StdDev, 0.001)
}

func TestDetectEndpoint_ShortHistoryIsNotAnomalous(t *testing.T) {
	w := postDetect(t, `{"subjectId":"s","currentQuantity":1e6,"history":[1,2,3,4]}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.DetectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.IsAnomaly)
	assert.False(t, *resp.IsAnomaly)
	assert.Zero(t, *resp.ZScore)
}

func TestDetectEndpoint_AllFieldsAlwaysPresent(t *testing.T) {
	w := postDetect(t, `{"subjectId":"s","currentQuantity":200,"history":[50,50,50,50,50]}`)

	require.Equal(t, http.StatusOK, w.Code)

	// Degenerate verdicts still carry every field; clients treat a missing
	// field as a malformed response.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, field := range []string{"subjectId", "isAnomaly", "zScore", "mean", "stdDev"} {
		assert.Contains(t, raw, field)
	}
}

func TestDetectEndpoint_RejectsMissingFields(t *testing.T) {
	for name, body := range map[string]string{
		"no subject":  `{"currentQuantity":1,"history":[]}`,
		"no quantity": `{"subjectId":"s","history":[]}`,
		"not json":    `{{{`,
	} {
		w := postDetect(t, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
		assert.Contains(t, w.Body.String(), "error", name)
	}
}
