package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/wastetrack/anomaly-service/internal/models"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL       string
	APIKeys     map[string]models.Principal // apiKey -> caller
	DetectorURL string
	// Location is the single civil time zone used everywhere dates are
	// computed: window cutoffs, record timestamps, dashboard day buckets.
	Location *time.Location
	// ArchiveBucket enables GCS report archiving when non-empty.
	ArchiveBucket    string
	ArchiveCredsFile string
}

// Load reads required values from environment variables.
// API_KEYS format: "principal:role:key,principal:role:key"
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	apiKeys, err := parseAPIKeys(os.Getenv("API_KEYS"))
	if err != nil {
		return Config{}, err
	}

	detectorURL := strings.TrimSpace(os.Getenv("DETECTOR_URL"))
	if detectorURL == "" {
		// The service serves its own detection endpoint; pointing the
		// wrapper at itself keeps the remote-call semantics without a
		// second deployment.
		detectorURL = "http://localhost:8080"
	}

	tzName := strings.TrimSpace(os.Getenv("REPORT_TZ"))
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, errors.New("REPORT_TZ must be a valid IANA zone name")
	}

	return Config{
		DBURL:            dbURL,
		APIKeys:          apiKeys,
		DetectorURL:      detectorURL,
		Location:         loc,
		ArchiveBucket:    strings.TrimSpace(os.Getenv("ARCHIVE_BUCKET")),
		ArchiveCredsFile: strings.TrimSpace(os.Getenv("ARCHIVE_CREDS_FILE")),
	}, nil
}

func parseAPIKeys(raw string) (map[string]models.Principal, error) {
	keys := map[string]models.Principal{}

	for _, p := range strings.Split(strings.TrimSpace(raw), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 3)
		if len(parts) != 3 {
			return nil, errors.New(`API_KEYS must be "principal:role:key,principal:role:key"`)
		}
		id := strings.TrimSpace(parts[0])
		role := strings.TrimSpace(parts[1])
		key := strings.TrimSpace(parts[2])
		if id == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "principal:role:key,principal:role:key"`)
		}
		if role != models.RoleFacility && role != models.RoleOversight {
			return nil, errors.New(`API_KEYS role must be "facility" or "oversight"`)
		}
		keys[key] = models.Principal{ID: id, Role: role}
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(keys) == 0 {
		keys["facility-key-123"] = models.Principal{ID: "facility-001", Role: models.RoleFacility}
		keys["oversight-key-123"] = models.Principal{ID: "auditor-001", Role: models.RoleOversight}
	}

	return keys, nil
}
