// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	APIURL            string        // DevLink broker API base URL.
	WebURL            string        // DevLink web base URL (verification pages).
	DevlinkDir        string        // Directory holding credentials and the batch store.
	BatchDBPath       string        // SQLite file backing the bulk-retrieval side store.
	BatchRetention    time.Duration // Age after which stored batches are purged on startup.
	BulkConcurrency   int           // Worker pool size for bulk fetches.
	DeviceFlowTimeout time.Duration // Wall-clock cap on device flow polling.
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional; DEVLINK_API_URL and DEVLINK_WEB_URL exist so the broker
// can be pointed at a local instance during development. Defaults:
// DEVLINK_DIR (~/.devlink), DEVLINK_BATCH_DB (<dir>/batches.db),
// DEVLINK_BATCH_RETENTION (168h), DEVLINK_BULK_CONCURRENCY (10),
// DEVLINK_DEVICE_FLOW_TIMEOUT (5m).
func Load() (*Config, error) {
	apiURL := "https://api.devlink.dev"
	if v, ok := os.LookupEnv("DEVLINK_API_URL"); ok && v != "" {
		apiURL = v
	}

	webURL := "https://devlink.dev"
	if v, ok := os.LookupEnv("DEVLINK_WEB_URL"); ok && v != "" {
		webURL = v
	}

	dir := os.Getenv("DEVLINK_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".devlink")
	}

	batchDB := filepath.Join(dir, "batches.db")
	if v, ok := os.LookupEnv("DEVLINK_BATCH_DB"); ok && v != "" {
		batchDB = v
	}

	retention := 7 * 24 * time.Hour
	if v, ok := os.LookupEnv("DEVLINK_BATCH_RETENTION"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("DEVLINK_BATCH_RETENTION has invalid value %q: expected a positive duration", v)
		}
		retention = parsed
	}

	concurrency := 10
	if v, ok := os.LookupEnv("DEVLINK_BULK_CONCURRENCY"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return nil, fmt.Errorf("DEVLINK_BULK_CONCURRENCY has invalid value %q: expected a positive integer", v)
		}
		concurrency = parsed
	}

	flowTimeout := 5 * time.Minute
	if v, ok := os.LookupEnv("DEVLINK_DEVICE_FLOW_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("DEVLINK_DEVICE_FLOW_TIMEOUT has invalid duration %q: %w", v, err)
		}
		flowTimeout = parsed
	}

	return &Config{
		APIURL:            apiURL,
		WebURL:            webURL,
		DevlinkDir:        dir,
		BatchDBPath:       batchDB,
		BatchRetention:    retention,
		BulkConcurrency:   concurrency,
		DeviceFlowTimeout: flowTimeout,
	}, nil
}

// CredentialsPath returns the path of the persisted credentials file.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DevlinkDir, "credentials.json")
}
