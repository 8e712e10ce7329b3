package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// DefaultTimeout is the hard deadline for one detection call. A slow or hung
// detector is cut off here; it can never hold a submission request longer.
const DefaultTimeout = 5 * time.Second

// Result is the outcome of a detection call: either a Verdict or
// Unavailable. It is a value, not an error — callers branch on Unavailable
// explicitly and there is no third state.
type Result struct {
	Verdict     models.Verdict
	Unavailable bool
	// Cause describes why detection was unavailable, for audit logging only.
	Cause string
}

func unavailable(format string, args ...any) Result {
	return Result{Unavailable: true, Cause: fmt.Sprintf(format, args...)}
}

// Client calls the remote detection endpoint. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a detection client for the given base URL
// (e.g. "http://localhost:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		timeout:    DefaultTimeout,
	}
}

// WithTimeout overrides the detection deadline. Used by tests and by
// deployments with a detector on a slow link.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.timeout = timeout
	c.httpClient.Timeout = timeout
	return c
}

// Detect asks the detector to classify current against history. Every
// failure mode — timeout, transport error, non-2xx status, malformed or
// incomplete body — collapses into an Unavailable result; Detect never
// returns an error.
func (c *Client) Detect(ctx context.Context, subjectID string, current float64, history []float64) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(models.DetectRequest{
		SubjectID:       subjectID,
		CurrentQuantity: &current,
		History:         history,
	})
	if err != nil {
		return unavailable("encode request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/detect", bytes.NewReader(body))
	if err != nil {
		return unavailable("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unavailable("transport: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable("read response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unavailable("detector returned status %d", resp.StatusCode)
	}

	var out models.DetectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return unavailable("decode response: %v", err)
	}

	// All four verdict fields must be present; a partial response is
	// malformed, not a zero verdict.
	if out.IsAnomaly == nil || out.ZScore == nil || out.Mean == nil || out.StdDev == nil {
		return unavailable("response missing verdict fields")
	}

	return Result{Verdict: models.Verdict{
		IsAnomaly: *out.IsAnomaly,
		ZScore:    *out.ZScore,
		Mean:      *out.Mean,
		StdDev:    *out.StdDev,
	}}
}
