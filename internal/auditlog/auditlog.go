package auditlog

import (
	"io"
	"log/slog"
	"time"
)

// Sink emits one structured JSON entry per classification attempt, plus
// entries for every degraded stage. Timestamps are RFC3339 with offset in
// the report time zone so downstream parsers get a stable format.
type Sink struct {
	log *slog.Logger
	loc *time.Location
	now func() time.Time
}

// New creates a sink writing JSON lines to w with timestamps in loc.
func New(w io.Writer, loc *time.Location) *Sink {
	return &Sink{
		log: slog.New(slog.NewJSONHandler(w, nil)),
		loc: loc,
		now: time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Sink) WithClock(now func() time.Time) *Sink {
	s.now = now
	return s
}

func (s *Sink) stamp() string {
	return s.now().In(s.loc).Format(time.RFC3339)
}

// Classified records a completed classification attempt.
func (s *Sink) Classified(subjectID string, quantity float64, zScore float64, flagged bool) {
	s.log.Info("classification",
		"subject_id", subjectID,
		"quantity", quantity,
		"z_score", zScore,
		"anomaly", flagged,
		"timestamp", s.stamp(),
	)
}

// Unavailable records a classification attempt that produced no verdict.
// There is no z-score to report, so the field is omitted rather than zeroed.
func (s *Sink) Unavailable(subjectID string, quantity float64, cause string) {
	s.log.Warn("classification unavailable",
		"subject_id", subjectID,
		"quantity", quantity,
		"anomaly", false,
		"cause", cause,
		"timestamp", s.stamp(),
	)
}

// Degraded records a swallowed failure in a best-effort stage.
func (s *Sink) Degraded(stage, subjectID string, cause error) {
	s.log.Warn("stage degraded",
		"stage", stage,
		"subject_id", subjectID,
		"cause", cause.Error(),
		"timestamp", s.stamp(),
	)
}
