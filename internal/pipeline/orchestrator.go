package pipeline

import (
	"context"
	"time"

	"github.com/wastetrack/anomaly-service/internal/archive"
	"github.com/wastetrack/anomaly-service/internal/auditlog"
	"github.com/wastetrack/anomaly-service/internal/detect"
	"github.com/wastetrack/anomaly-service/internal/metrics"
	"github.com/wastetrack/anomaly-service/internal/models"
)

// WindowDays is the trailing span of the historical window.
const WindowDays = 30

// State is one step of the submission pipeline. Only Received→Persisted can
// fail the request; every later transition degrades to Completed.
type State string

const (
	StateReceived             State = "received"
	StatePersisted            State = "persisted"
	StateWindowFetched        State = "window_fetched"
	StateWindowUnavailable    State = "window_unavailable"
	StateClassified           State = "classified"
	StateDetectionUnavailable State = "detection_unavailable"
	StateRecordSaved          State = "record_saved"
	StateRecordSkipped        State = "record_skipped"
	StateRecordSaveFailed     State = "record_save_failed"
	StateCompleted            State = "completed"
)

// Store is the slice of the record store the pipeline needs.
type Store interface {
	InsertSubmission(ctx context.Context, sub models.Submission) (bool, error)
	FetchWindow(ctx context.Context, subjectID string, cutoff time.Time, excludeID string) ([]float64, error)
	InsertAnomaly(ctx context.Context, rec *models.AnomalyRecord) error
	SetReportRef(ctx context.Context, id int64, ref string) error
}

// Detector drives the classifier across the process boundary.
type Detector interface {
	Detect(ctx context.Context, subjectID string, current float64, history []float64) detect.Result
}

// Outcome reports how far a submission traveled before Completed. Stage is
// the last state reached by the best-effort half of the pipeline; the
// primary result is already decided by the time an Outcome exists.
// Duplicate means the submission already existed and the detection stages
// were not re-run for it.
type Outcome struct {
	SubmissionID string
	Duplicate    bool
	Stage        State
}

// Orchestrator sequences one submission through persist → window → detect →
// record → archive. The persist step is the only one whose failure reaches
// the caller; everything after it is best-effort, never retried, and its
// failure is absorbed into a degraded-but-successful outcome.
type Orchestrator struct {
	store    Store
	detector Detector
	archiver archive.Archiver
	audit    *auditlog.Sink
	loc      *time.Location
	now      func() time.Time
}

// New creates an orchestrator with anomaly-record timestamps in loc.
func New(store Store, detector Detector, archiver archive.Archiver, audit *auditlog.Sink, loc *time.Location) *Orchestrator {
	return &Orchestrator{
		store:    store,
		detector: detector,
		archiver: archiver,
		audit:    audit,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Process runs the pipeline for one submission. A non-nil error means the
// submission was not persisted; any other downstream condition still returns
// a successful outcome.
func (o *Orchestrator) Process(ctx context.Context, sub models.Submission) (Outcome, error) {
	inserted, err := o.store.InsertSubmission(ctx, sub)
	if err != nil {
		return Outcome{}, err
	}
	metrics.SubmissionsTotal.Inc()

	out := Outcome{SubmissionID: sub.ID, Duplicate: !inserted}

	// A duplicate was already classified on first delivery; re-running
	// detection would double-count anomalies.
	if !inserted {
		out.Stage = StatePersisted
		return out, nil
	}

	out.Stage = o.detectAndRecord(ctx, sub)
	return out, nil
}

func (o *Orchestrator) detectAndRecord(ctx context.Context, sub models.Submission) State {
	cutoff := sub.CreatedAt.In(o.loc).AddDate(0, 0, -WindowDays)

	history, err := o.store.FetchWindow(ctx, sub.SubjectID, cutoff, sub.ID)
	if err != nil {
		o.audit.Degraded(string(StateWindowUnavailable), sub.SubjectID, err)
		return StateWindowUnavailable
	}

	start := o.now()
	res := o.detector.Detect(ctx, sub.SubjectID, sub.Quantity, history)
	metrics.DetectionDuration.Observe(time.Since(start).Seconds())

	if res.Unavailable {
		metrics.DetectionUnavailableTotal.Inc()
		o.audit.Unavailable(sub.SubjectID, sub.Quantity, res.Cause)
		return StateDetectionUnavailable
	}

	verdict := res.Verdict
	o.audit.Classified(sub.SubjectID, sub.Quantity, verdict.ZScore, verdict.IsAnomaly)

	if !verdict.IsAnomaly {
		return StateRecordSkipped
	}

	rec := models.AnomalyRecord{
		SubjectID:    sub.SubjectID,
		SubmissionID: sub.ID,
		Quantity:     sub.Quantity,
		Mean:         verdict.Mean,
		StdDev:       verdict.StdDev,
		ZScore:       verdict.ZScore,
		Flagged:      true,
		CreatedAt:    o.now().In(o.loc),
	}

	if err := o.store.InsertAnomaly(ctx, &rec); err != nil {
		metrics.AnomalyRecordFailuresTotal.Inc()
		o.audit.Degraded(string(StateRecordSaveFailed), sub.SubjectID, err)
		return StateRecordSaveFailed
	}
	metrics.AnomaliesFlaggedTotal.Inc()

	o.archiveRecord(ctx, rec)
	return StateRecordSaved
}

// archiveRecord uploads the flagged record's report and links it back.
// Both steps are best-effort.
func (o *Orchestrator) archiveRecord(ctx context.Context, rec models.AnomalyRecord) {
	ref, err := o.archiver.Archive(ctx, rec)
	if err != nil {
		o.audit.Degraded("archive", rec.SubjectID, err)
		return
	}
	if ref == "" {
		return
	}
	if err := o.store.SetReportRef(ctx, rec.ID, ref); err != nil {
		o.audit.Degraded("archive_ref", rec.SubjectID, err)
	}
}
