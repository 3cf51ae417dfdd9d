package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"go.uber.org/zap"
)

// manifestName is written at the root of every chromem directory.
const manifestName = "askd_manifest.json"

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

type manifest struct {
	Dimension int `json:"dimension"`
	// Provider is the embedding provider the index was built with. Vectors
	// from different providers are not comparable even at equal dimension.
	Provider  string    `json:"provider,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// guardIndex makes sure the index at path was built by the embedder
// described by want. A mismatching or unreadable index is moved aside and an
// empty directory takes its place. It returns the backup location when that
// happens. A manifest or caller without a provider name compares dimensions
// only, and an older manifest is stamped with the provider on open.
func guardIndex(path string, want manifest, logger *zap.Logger) (string, error) {
	m, err := readManifest(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o700); err != nil {
			return "", fmt.Errorf("creating directory %s: %w", path, err)
		}
		return "", writeManifest(path, want)
	case err == nil && m.Dimension == want.Dimension && m.Provider == want.Provider:
		return "", nil
	case err == nil && m.Dimension == want.Dimension && (m.Provider == "" || want.Provider == ""):
		if m.Provider == "" && want.Provider != "" {
			m.Provider = want.Provider
			return "", writeManifest(path, m)
		}
		return "", nil
	}

	var fault error
	switch {
	case err != nil:
		fault = faults.StorageIntegrity("index manifest at %s unreadable: %v", path, err)
	case m.Dimension != want.Dimension:
		fault = faults.StorageIntegrity("index at %s built for dimension %d, embedder produces %d", path, m.Dimension, want.Dimension)
	default:
		fault = faults.StorageIntegrity("index at %s built with %s embeddings, embedder is %s", path, m.Provider, want.Provider)
	}

	backup := backupPath(path)
	if err := os.Rename(path, backup); err != nil {
		return "", fmt.Errorf("%w: backing up to %s: %v", fault, backup, err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", fmt.Errorf("recreating directory %s: %w", path, err)
	}
	if err := writeManifest(path, want); err != nil {
		return "", err
	}

	logger.Warn("vector index recreated, previous index preserved",
		zap.String("path", path),
		zap.String("backup", backup),
		zap.Error(fault),
	)
	return backup, nil
}

// backupPath returns <path>_backup, or a timestamped variant when that name
// is already taken so earlier backups are never overwritten.
func backupPath(path string) string {
	backup := path + "_backup"
	if _, err := os.Stat(backup); err == nil {
		backup = fmt.Sprintf("%s_backup_%s", path, timeNow().UTC().Format("20060102T150405.000"))
	}
	return backup
}

func readManifest(path string) (manifest, error) {
	var m manifest
	data, err := os.ReadFile(filepath.Join(path, manifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}

func writeManifest(path string, m manifest) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = timeNow().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp := filepath.Join(path, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(path, manifestName))
}
