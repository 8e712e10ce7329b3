package archive

import (
	"context"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// Archiver stores a serialized report for a flagged record and returns a
// retrievable reference, or "" when archiving is disabled. Archive failures
// never fail record creation; the caller logs and moves on.
type Archiver interface {
	Archive(ctx context.Context, rec models.AnomalyRecord) (string, error)
}

// Noop is used when no archive bucket is configured.
type Noop struct{}

func (Noop) Archive(ctx context.Context, rec models.AnomalyRecord) (string, error) {
	return "", nil
}
