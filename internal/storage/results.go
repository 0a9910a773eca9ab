package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
)

const (
	// LatestFile always holds the most recent run
	LatestFile      = "latest.json"
	resultsPrefix   = "opportunities_"
	timestampLayout = "20060102_150405"
)

// New returns the storage backend selected by STORAGE_BACKEND
func New(ctx context.Context, cfg *config.Config) (StorageInterface, error) {
	switch cfg.StorageBackend {
	case "azure":
		return NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case "local", "":
		return NewLocalStorage(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// ResultsFilename names the snapshot of a run finished at t
func ResultsFilename(t time.Time) string {
	return resultsPrefix + t.Format(timestampLayout) + ".json"
}

// SaveResults writes the ranked opportunities to a timestamped snapshot and
// to latest.json. It returns the snapshot name.
func SaveResults(ctx context.Context, store StorageInterface, opportunities []models.Opportunity, at time.Time) (string, error) {
	if opportunities == nil {
		opportunities = []models.Opportunity{}
	}

	data, err := json.MarshalIndent(opportunities, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal opportunities: %w", err)
	}

	filename := ResultsFilename(at)
	if err := store.Store(ctx, filename, data); err != nil {
		return "", err
	}

	if err := store.Store(ctx, LatestFile, data); err != nil {
		return filename, fmt.Errorf("failed to update %s: %w", LatestFile, err)
	}

	return filename, nil
}

// LoadLatest reads the opportunities of the most recent run
func LoadLatest(ctx context.Context, store StorageInterface) ([]models.Opportunity, error) {
	data, err := store.Retrieve(ctx, LatestFile)
	if err != nil {
		return nil, err
	}

	var opportunities []models.Opportunity
	if err := json.Unmarshal(data, &opportunities); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", LatestFile, err)
	}

	return opportunities, nil
}

// ListResults returns the snapshot names, oldest first
func ListResults(ctx context.Context, store StorageInterface) ([]string, error) {
	return store.List(ctx, resultsPrefix)
}
