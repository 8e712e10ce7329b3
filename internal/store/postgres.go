package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable persistence layer for submissions and
// anomaly records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema() error {
	_, err := p.pool.Exec(context.Background(), schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertSubmission persists a submission and returns inserted=false when it
// is a duplicate.
//
// Duplicate detection is enforced by the primary key on id, which is
// compatible with retries and at-least-once delivery.
func (p *PostgresStore) InsertSubmission(ctx context.Context, sub models.Submission) (bool, error) {
	if sub.ID == "" || sub.SubjectID == "" {
		return false, errors.New("id/subjectID required")
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err := p.pool.QueryRow(ctx, `
		INSERT INTO submissions(id, subject_id, quantity, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO NOTHING
		RETURNING 1
	`, sub.ID, sub.SubjectID, sub.Quantity, sub.CreatedAt).Scan(&one)

	if err == nil {
		return true, nil
	}

	// Conflict produces "no rows in result set" because RETURNING returns nothing.
	if err.Error() == "no rows in result set" {
		return false, nil
	}

	return false, err
}

// FetchWindow returns the quantities submitted by subjectID since cutoff,
// newest first. Only the quantity survives this boundary; every other
// submission field is discarded. No matching rows is an empty window, not
// an error.
//
// excludeID keeps the triggering submission out of its own baseline: the
// window is fetched after the primary write, and a window containing the
// current value can never produce |z| >= 2.5 at small sample sizes.
func (p *PostgresStore) FetchWindow(ctx context.Context, subjectID string, cutoff time.Time, excludeID string) ([]float64, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT quantity
		FROM submissions
		WHERE subject_id=$1
		  AND created_at >= $2
		  AND id <> $3
		ORDER BY created_at DESC
	`, subjectID, cutoff, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	window := []float64{}
	for rows.Next() {
		var q float64
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		window = append(window, q)
	}

	return window, rows.Err()
}

// InsertAnomaly persists a flagged record and fills in its generated id.
func (p *PostgresStore) InsertAnomaly(ctx context.Context, rec *models.AnomalyRecord) error {
	return p.pool.QueryRow(ctx, `
		INSERT INTO anomaly_records(subject_id, submission_id, quantity, mean, std_dev, z_score, flagged, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id
	`, rec.SubjectID, rec.SubmissionID, rec.Quantity, rec.Mean, rec.StdDev, rec.ZScore, rec.Flagged, rec.CreatedAt).Scan(&rec.ID)
}

// SetReportRef records the archived-report pointer on an existing record.
// This is the one permitted write after creation.
func (p *PostgresStore) SetReportRef(ctx context.Context, id int64, ref string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE anomaly_records SET report_ref=$2 WHERE id=$1
	`, id, ref)
	return err
}

// CountAnomaliesBetween returns the number of records created in the
// half-open window [from,to). Using a half-open interval avoids double
// counting at day boundaries.
func (p *PostgresStore) CountAnomaliesBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM anomaly_records
		WHERE created_at >= $1
		  AND created_at <  $2
	`, from, to).Scan(&count)

	return count, err
}

// RecentAnomalies returns up to n records, newest first.
func (p *PostgresStore) RecentAnomalies(ctx context.Context, n int) ([]models.AnomalyRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, subject_id, submission_id, quantity, mean, std_dev, z_score, flagged, report_ref, created_at
		FROM anomaly_records
		ORDER BY created_at DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// AnomaliesSince returns every record created at or after cutoff. The
// trailing-window bound is applied here, before any grouping happens in Go.
func (p *PostgresStore) AnomaliesSince(ctx context.Context, cutoff time.Time) ([]models.AnomalyRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, subject_id, submission_id, quantity, mean, std_dev, z_score, flagged, report_ref, created_at
		FROM anomaly_records
		WHERE created_at >= $1
		ORDER BY created_at DESC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows rowScanner) ([]models.AnomalyRecord, error) {
	recs := []models.AnomalyRecord{}
	for rows.Next() {
		var r models.AnomalyRecord
		if err := rows.Scan(
			&r.ID, &r.SubjectID, &r.SubmissionID, &r.Quantity,
			&r.Mean, &r.StdDev, &r.ZScore, &r.Flagged, &r.ReportRef, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
