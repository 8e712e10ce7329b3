package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastetrack/anomaly-service/internal/auditlog"
	"github.com/wastetrack/anomaly-service/internal/detect"
	"github.com/wastetrack/anomaly-service/internal/models"
)

type fakeStore struct {
	insertErr error
	duplicate bool

	windowCutoff  time.Time
	windowExclude string
	window        []float64
	windowErr     error
	windowCalls   int

	anomalyErr error
	saved      []models.AnomalyRecord

	refErr error
	refs   map[int64]string
}

func (f *fakeStore) InsertSubmission(ctx context.Context, sub models.Submission) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	return !f.duplicate, nil
}

func (f *fakeStore) FetchWindow(ctx context.Context, subjectID string, cutoff time.Time, excludeID string) ([]float64, error) {
	f.windowCalls++
	f.windowCutoff = cutoff
	f.windowExclude = excludeID
	return f.window, f.windowErr
}

func (f *fakeStore) InsertAnomaly(ctx context.Context, rec *models.AnomalyRecord) error {
	if f.anomalyErr != nil {
		return f.anomalyErr
	}
	rec.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, *rec)
	return nil
}

func (f *fakeStore) SetReportRef(ctx context.Context, id int64, ref string) error {
	if f.refErr != nil {
		return f.refErr
	}
	if f.refs == nil {
		f.refs = map[int64]string{}
	}
	f.refs[id] = ref
	return nil
}

type fakeDetector struct {
	result detect.Result
	calls  int
}

func (f *fakeDetector) Detect(ctx context.Context, subjectID string, current float64, history []float64) detect.Result {
	f.calls++
	return f.result
}

type fakeArchiver struct {
	ref   string
	err   error
	calls int
}

func (f *fakeArchiver) Archive(ctx context.Context, rec models.AnomalyRecord) (string, error) {
	f.calls++
	return f.ref, f.err
}

func verdictResult(flag bool, z float64) detect.Result {
	return detect.Result{Verdict: models.Verdict{IsAnomaly: flag, ZScore: z, Mean: 100, StdDev: 5}}
}

func newOrchestrator(st *fakeStore, det *fakeDetector, arc *fakeArchiver) *Orchestrator {
	sink := auditlog.New(io.Discard, time.UTC)
	return New(st, det, arc, sink, time.UTC)
}

func submission() models.Submission {
	return models.Submission{
		ID:        "sub-1",
		SubjectID: "facility-7",
		Quantity:  150,
		CreatedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestProcess_PersistFailureIsFatal(t *testing.T) {
	st := &fakeStore{insertErr: errors.New("db down")}
	det := &fakeDetector{}

	_, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.Error(t, err)
	assert.Zero(t, det.calls, "nothing downstream may run after a fatal persist")
	assert.Zero(t, st.windowCalls)
}

func TestProcess_WindowFailureDegrades(t *testing.T) {
	st := &fakeStore{windowErr: errors.New("store outage")}
	det := &fakeDetector{}

	out, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, StateWindowUnavailable, out.Stage)
	assert.Zero(t, det.calls)
	assert.Empty(t, st.saved)
}

func TestProcess_DetectionUnavailableDegrades(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: detect.Result{Unavailable: true, Cause: "timeout"}}

	out, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, StateDetectionUnavailable, out.Stage)
	assert.Empty(t, st.saved)
}

func TestProcess_NonAnomalousVerdictSkipsRecord(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: verdictResult(false, 0.18)}

	out, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, StateRecordSkipped, out.Stage)
	assert.Empty(t, st.saved)
}

func TestProcess_FlaggedVerdictSavesRecord(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: verdictResult(true, 8.42)}
	now := time.Date(2026, 3, 14, 12, 0, 1, 0, time.UTC)

	orc := newOrchestrator(st, det, &fakeArchiver{}).WithClock(func() time.Time { return now })
	out, err := orc.Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, StateRecordSaved, out.Stage)

	require.Len(t, st.saved, 1)
	rec := st.saved[0]
	assert.Equal(t, "facility-7", rec.SubjectID)
	assert.Equal(t, "sub-1", rec.SubmissionID)
	assert.Equal(t, 150.0, rec.Quantity)
	assert.Equal(t, 8.42, rec.ZScore)
	assert.True(t, rec.Flagged)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestProcess_RecordSaveFailureDegrades(t *testing.T) {
	st := &fakeStore{
		window:     []float64{100, 110, 105, 95, 100},
		anomalyErr: errors.New("insert failed"),
	}
	det := &fakeDetector{result: verdictResult(true, 8.42)}

	out, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err, "record save failure must not reach the caller")
	assert.Equal(t, StateRecordSaveFailed, out.Stage)
}

func TestProcess_WindowCutoffIsThirtyDays(t *testing.T) {
	st := &fakeStore{}
	det := &fakeDetector{result: verdictResult(false, 0)}

	sub := submission()
	_, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), sub)

	require.NoError(t, err)
	assert.Equal(t, sub.CreatedAt.AddDate(0, 0, -30), st.windowCutoff)
	assert.Equal(t, sub.ID, st.windowExclude, "a submission must not sit in its own baseline")
}

func TestProcess_DuplicateSkipsDetection(t *testing.T) {
	st := &fakeStore{duplicate: true}
	det := &fakeDetector{result: verdictResult(true, 9)}

	out, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.True(t, out.Duplicate)
	assert.Zero(t, det.calls)
	assert.Empty(t, st.saved)
}

func TestProcess_ArchiveSuccessLinksReport(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: verdictResult(true, 8.42)}
	arc := &fakeArchiver{ref: "gs://reports/facility-7/x.json"}

	_, err := newOrchestrator(st, det, arc).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, 1, arc.calls)
	assert.Equal(t, "gs://reports/facility-7/x.json", st.refs[1])
}

func TestProcess_ArchiveFailureDegrades(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: verdictResult(true, 8.42)}
	arc := &fakeArchiver{err: errors.New("bucket unreachable")}

	out, err := newOrchestrator(st, det, arc).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Equal(t, StateRecordSaved, out.Stage, "archive failure must not undo the record")
	require.Len(t, st.saved, 1)
	assert.Empty(t, st.refs)
}

func TestProcess_NoopArchiverSetsNoRef(t *testing.T) {
	st := &fakeStore{window: []float64{100, 110, 105, 95, 100}}
	det := &fakeDetector{result: verdictResult(true, 8.42)}

	_, err := newOrchestrator(st, det, &fakeArchiver{}).Process(context.Background(), submission())

	require.NoError(t, err)
	assert.Empty(t, st.refs)
}
