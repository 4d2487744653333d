// Package refdata manages reference dataset lifecycle: persistence via the
// repository and in-memory match indexes via the matcher.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/match"
	"github.com/opensource-finance/harrier/internal/repository"
)

// Loader keeps the matcher's in-memory indexes in sync with the datasets
// stored in the repository.
type Loader struct {
	repo    domain.Repository
	matcher *match.Matcher
}

// NewLoader creates a dataset loader.
func NewLoader(repo domain.Repository, matcher *match.Matcher) *Loader {
	return &Loader{
		repo:    repo,
		matcher: matcher,
	}
}

// LoadAll loads every known dataset for a tenant into the matcher.
// Datasets that were never loaded into the repository are skipped; matching
// against them reports unavailable rather than a clean screen.
func (l *Loader) LoadAll(ctx context.Context, tenantID string) error {
	for _, dataset := range []string{domain.DatasetSanctions, domain.DatasetOffshore} {
		if _, _, err := l.Load(ctx, tenantID, dataset); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				slog.Info("reference dataset not loaded, matching will report unavailable",
					"tenant_id", tenantID,
					"dataset", dataset,
				)
				continue
			}
			return fmt.Errorf("failed to load dataset %s: %w", dataset, err)
		}
	}
	return nil
}

// Load reads one dataset from the repository and rebuilds its match index.
// Returns the dataset version and entity count.
func (l *Loader) Load(ctx context.Context, tenantID string, dataset string) (int64, int, error) {
	start := time.Now()

	entities, version, err := l.repo.ListDatasetEntities(ctx, tenantID, dataset)
	if err != nil {
		return 0, 0, err
	}

	if err := l.matcher.ReloadDataset(dataset, version, entities); err != nil {
		return 0, 0, fmt.Errorf("failed to index dataset %s: %w", dataset, err)
	}

	slog.Info("reference dataset loaded",
		"tenant_id", tenantID,
		"dataset", dataset,
		"version", version,
		"entity_count", len(entities),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return version, len(entities), nil
}

// Replace persists a full dataset replacement and rebuilds the match index.
// The repository swap is transactional; the matcher swap is atomic, so
// in-flight matches see either the old or the new dataset, never a mix.
func (l *Loader) Replace(ctx context.Context, tenantID string, dataset string, entities []*domain.ReferenceEntity) (int64, error) {
	version, err := l.repo.ReplaceDataset(ctx, tenantID, dataset, entities)
	if err != nil {
		return 0, err
	}

	if err := l.matcher.ReloadDataset(dataset, version, entities); err != nil {
		return 0, fmt.Errorf("failed to index dataset %s: %w", dataset, err)
	}

	slog.Info("reference dataset replaced",
		"tenant_id", tenantID,
		"dataset", dataset,
		"version", version,
		"entity_count", len(entities),
	)

	return version, nil
}

// Datasets returns version summaries for the datasets currently indexed.
func (l *Loader) Datasets() []domain.DatasetInfo {
	return l.matcher.Datasets()
}
