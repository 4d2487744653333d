// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Assessment results
	SaveAssessment(ctx context.Context, tenantID string, a *RiskAssessment) error
	GetAssessment(ctx context.Context, tenantID string, id string) (*RiskAssessment, error)
	ListAssessments(ctx context.Context, tenantID string, since time.Time) ([]*RiskAssessment, error)

	// Reference dataset operations. ReplaceDataset swaps the whole dataset
	// transactionally and bumps its version.
	ReplaceDataset(ctx context.Context, tenantID string, dataset string, entities []*ReferenceEntity) (int64, error)
	ListDatasetEntities(ctx context.Context, tenantID string, dataset string) ([]*ReferenceEntity, int64, error)
	ListDatasets(ctx context.Context, tenantID string) ([]DatasetInfo, error)

	// Flag rule operations
	SaveFlagRule(ctx context.Context, tenantID string, rule *FlagRule) error
	GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*FlagRule, error)
	ListFlagRules(ctx context.Context, tenantID string) ([]*FlagRule, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
