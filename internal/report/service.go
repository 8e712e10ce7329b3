package report

import (
	"context"
	"sort"
	"time"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// Defaults for the dashboard queries.
const (
	DefaultRecentLimit      = 10
	DefaultHighRiskWindow   = 7 * 24 * time.Hour
	DefaultHighRiskMinCount = 3
)

// RecordSource answers bounded range queries over the anomaly-record store.
// All time bounds are computed by the service, so the source never needs to
// know about civil days or trailing windows.
type RecordSource interface {
	CountAnomaliesBetween(ctx context.Context, from, to time.Time) (int64, error)
	RecentAnomalies(ctx context.Context, n int) ([]models.AnomalyRecord, error)
	AnomaliesSince(ctx context.Context, cutoff time.Time) ([]models.AnomalyRecord, error)
}

// Service computes the oversight dashboard aggregates. Every time boundary
// is evaluated in the configured report zone against the injected clock, so
// tests can pin arbitrary instants. The three queries are independent reads;
// no isolation across them is assumed.
type Service struct {
	src RecordSource
	loc *time.Location
	now func() time.Time
}

// NewService creates an aggregation service over src with day boundaries in loc.
func NewService(src RecordSource, loc *time.Location) *Service {
	return &Service{src: src, loc: loc, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CountToday counts records created within the current civil day,
// [startOfDay, startOfNextDay) in the report zone.
func (s *Service) CountToday(ctx context.Context) (int64, error) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	return s.src.CountAnomaliesBetween(ctx, start, end)
}

// Recent returns the n most recent records, newest first; fewer when fewer
// exist. n <= 0 falls back to the default limit.
func (s *Service) Recent(ctx context.Context, n int) ([]models.AnomalyRecord, error) {
	if n <= 0 {
		n = DefaultRecentLimit
	}
	return s.src.RecentAnomalies(ctx, n)
}

// HighRisk returns subjects with at least threshold records inside the
// trailing window (inclusive: exactly threshold qualifies). The window bound
// is applied in the query, then the group-by runs over the bounded result.
// Qualifying subjects are ordered by count descending, then by id, so the
// output is deterministic.
func (s *Service) HighRisk(ctx context.Context, window time.Duration, threshold int) ([]string, error) {
	if window <= 0 {
		window = DefaultHighRiskWindow
	}
	if threshold <= 0 {
		threshold = DefaultHighRiskMinCount
	}

	cutoff := s.now().In(s.loc).Add(-window)
	recs, err := s.src.AnomaliesSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, r := range recs {
		counts[r.SubjectID]++
	}

	subjects := []string{}
	for id, n := range counts {
		if n >= threshold {
			subjects = append(subjects, id)
		}
	}

	sort.Slice(subjects, func(i, j int) bool {
		if counts[subjects[i]] != counts[subjects[j]] {
			return counts[subjects[i]] > counts[subjects[j]]
		}
		return subjects[i] < subjects[j]
	})

	return subjects, nil
}
