package main

import (
	"context"
	"log"
	"os"

	"github.com/wastetrack/anomaly-service/internal/archive"
	"github.com/wastetrack/anomaly-service/internal/auditlog"
	"github.com/wastetrack/anomaly-service/internal/config"
	"github.com/wastetrack/anomaly-service/internal/detect"
	"github.com/wastetrack/anomaly-service/internal/httpserver"
	"github.com/wastetrack/anomaly-service/internal/metrics"
	"github.com/wastetrack/anomaly-service/internal/pipeline"
	"github.com/wastetrack/anomaly-service/internal/report"
	"github.com/wastetrack/anomaly-service/internal/store"
)

// main boots the service: config → DB → schema → pipeline → HTTP server.
func main() {
	// Load runtime config from environment (DB_URL, API_KEYS, DETECTOR_URL,
	// REPORT_TZ, ARCHIVE_BUCKET).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Connect to durable storage (Postgres) using a connection pool.
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal(err)
	}

	metrics.Register()

	// Report archiving is optional; without a bucket the pipeline skips it.
	var archiver archive.Archiver = archive.Noop{}
	if cfg.ArchiveBucket != "" {
		gcs, err := archive.NewGCSArchiver(context.Background(), cfg.ArchiveBucket, cfg.ArchiveCredsFile)
		if err != nil {
			log.Fatal(err)
		}
		defer gcs.Close()
		archiver = gcs
	}

	audit := auditlog.New(os.Stdout, cfg.Location)
	detector := detect.NewClient(cfg.DetectorURL)
	orc := pipeline.New(db, detector, archiver, audit, cfg.Location)
	rpt := report.NewService(db, cfg.Location)

	// Build HTTP router (public health + detection, authenticated APIs).
	router := httpserver.NewRouter(cfg, db, orc, rpt)

	log.Println("server started on :8080")
	log.Fatal(router.Run(":8080"))
}
