package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// GCSArchiver uploads flagged-record reports to a Cloud Storage bucket,
// keyed by subject and record timestamp.
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

// NewGCSArchiver creates an archiver for the given bucket. credsFile is an
// optional service-account key path; when empty, ambient credentials are
// used.
func NewGCSArchiver(ctx context.Context, bucket, credsFile string) (*GCSArchiver, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSArchiver{client: client, bucket: bucket}, nil
}

// Archive writes the record as a JSON report and returns its gs:// path.
func (a *GCSArchiver) Archive(ctx context.Context, rec models.AnomalyRecord) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/%s.json", rec.SubjectID, rec.CreatedAt.Format("20060102T150405Z0700"))

	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(body); err != nil {
		return "", fmt.Errorf("upload report %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close report writer %s: %w", key, err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, key), nil
}

// Close releases the underlying storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}
