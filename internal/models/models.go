package models

import "time"

// Roles recognized by the API-key layer.
const (
	RoleFacility  = "facility"
	RoleOversight = "oversight"
)

// Principal identifies an authenticated caller: a facility submitting for its
// own subject id, or an oversight user reading aggregated anomaly data.
type Principal struct {
	ID   string
	Role string
}

// Submission is one waste-quantity report for a subject. Immutable once
// written; the pipeline writes it exactly once and only ever reads it back
// through the historical window.
type Submission struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	Quantity  float64   `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// Verdict is the classifier output. Never persisted directly; its fields are
// copied onto an AnomalyRecord only when IsAnomaly is true.
type Verdict struct {
	IsAnomaly bool    `json:"isAnomaly"`
	ZScore    float64 `json:"zScore"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"stdDev"`
}

// AnomalyRecord is the persisted fact that a submission was flagged.
// Created only for flagged verdicts and never mutated afterwards, except for
// ReportRef which is filled in once when an archived report exists.
type AnomalyRecord struct {
	ID           int64     `json:"id"`
	SubjectID    string    `json:"subjectId"`
	SubmissionID string    `json:"submissionId"`
	Quantity     float64   `json:"quantity"`
	Mean         float64   `json:"mean"`
	StdDev       float64   `json:"stdDev"`
	ZScore       float64   `json:"zScore"`
	Flagged      bool      `json:"flagged"`
	ReportRef    string    `json:"reportRef,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SubmissionRequest is the POST /submissions payload.
// submission_id is optional; best practice is to pass Idempotency-Key header
// for retries. subject_id defaults to the authenticated facility.
type SubmissionRequest struct {
	SubmissionID string   `json:"submission_id,omitempty"`
	SubjectID    string   `json:"subject_id,omitempty"`
	Quantity     *float64 `json:"quantity"`
	Timestamp    string   `json:"timestamp"`
}

// SubmissionResponse is returned by POST /submissions. Its shape is the same
// whether anomaly detection succeeded, degraded, or was skipped.
type SubmissionResponse struct {
	SubmissionID string `json:"submission_id"`
	Duplicate    bool   `json:"duplicate"`
}

// DetectRequest is the wire payload sent to the detection endpoint.
type DetectRequest struct {
	SubjectID       string    `json:"subjectId"`
	CurrentQuantity *float64  `json:"currentQuantity"`
	History         []float64 `json:"history"`
}

// DetectResponse is the detection endpoint's success payload. Pointer fields
// let the client distinguish an absent field from a zero value: a response
// missing any of the four verdict fields is malformed.
type DetectResponse struct {
	SubjectID string   `json:"subjectId"`
	IsAnomaly *bool    `json:"isAnomaly"`
	ZScore    *float64 `json:"zScore"`
	Mean      *float64 `json:"mean"`
	StdDev    *float64 `json:"stdDev"`
}

// DashboardResponse is the oversight dashboard payload.
type DashboardResponse struct {
	AnomaliesToday   int64           `json:"anomaliesToday"`
	Recent           []AnomalyRecord `json:"recent"`
	HighRiskSubjects []string        `json:"highRiskSubjects"`
}
