// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores an assessment result with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.RiskAssessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	categories, _ := json.Marshal(a.Categories)
	redFlags, _ := json.Marshal(a.RedFlags)
	matches, _ := json.Marshal(a.Matches)
	metadata, _ := json.Marshal(a.Metadata)

	query := `
		INSERT INTO assessments (
			id, tenant_id, query_name, jurisdiction_hint, entity_type,
			normalized, composite_score, risk_level, confidence,
			categories, red_flags, matches, created_at, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID,
		a.Query.Name, a.Query.JurisdictionHint, a.Query.EntityType,
		a.Normalized, a.CompositeScore, string(a.RiskLevel), a.Confidence,
		string(categories), string(redFlags), string(matches),
		a.CreatedAt, string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, id string) (*domain.RiskAssessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, query_name, jurisdiction_hint, entity_type,
			   normalized, composite_score, risk_level, confidence,
			   categories, red_flags, matches, created_at, metadata
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	a, err := r.scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// ListAssessments retrieves assessments created at or after the given time,
// newest first, with tenant isolation.
func (r *SQLRepository) ListAssessments(ctx context.Context, tenantID string, since time.Time) ([]*domain.RiskAssessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, query_name, jurisdiction_hint, entity_type,
			   normalized, composite_score, risk_level, confidence,
			   categories, red_flags, matches, created_at, metadata
		FROM assessments
		WHERE tenant_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.RiskAssessment
	for rows.Next() {
		a, err := r.scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanAssessment(row rowScanner) (*domain.RiskAssessment, error) {
	var a domain.RiskAssessment
	var level string
	var categories, redFlags, matches, metadata string

	err := row.Scan(
		&a.ID, &a.TenantID,
		&a.Query.Name, &a.Query.JurisdictionHint, &a.Query.EntityType,
		&a.Normalized, &a.CompositeScore, &level, &a.Confidence,
		&categories, &redFlags, &matches, &a.CreatedAt, &metadata,
	)
	if err != nil {
		return nil, err
	}

	a.RiskLevel = domain.RiskLevel(level)
	json.Unmarshal([]byte(categories), &a.Categories)
	if redFlags != "" {
		json.Unmarshal([]byte(redFlags), &a.RedFlags)
	}
	if matches != "" {
		json.Unmarshal([]byte(matches), &a.Matches)
	}
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// ReplaceDataset swaps a reference dataset transactionally and bumps its
// version. Readers never observe a partially loaded dataset.
func (r *SQLRepository) ReplaceDataset(ctx context.Context, tenantID string, dataset string, entities []*domain.ReferenceEntity) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if dataset == "" {
		return 0, fmt.Errorf("%w: dataset is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		r.rebind(`SELECT version FROM reference_datasets WHERE tenant_id = ? AND dataset = ?`),
		tenantID, dataset,
	).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	version++

	if _, err := tx.ExecContext(ctx,
		r.rebind(`DELETE FROM reference_entities WHERE tenant_id = ? AND dataset = ?`),
		tenantID, dataset,
	); err != nil {
		return 0, err
	}

	insert := r.rebind(`
		INSERT INTO reference_entities (
			id, tenant_id, dataset, name, aliases, jurisdiction, entity_type, programs, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	for _, e := range entities {
		aliases, _ := json.Marshal(e.Aliases)
		programs, _ := json.Marshal(e.Programs)

		if _, err := tx.ExecContext(ctx, insert,
			e.ID, tenantID, dataset, e.Name,
			string(aliases), e.Jurisdiction, e.EntityType, string(programs),
			e.UpdatedAt,
		); err != nil {
			return 0, fmt.Errorf("failed to insert entity %s: %w", e.ID, err)
		}
	}

	upsert := r.rebind(`
		INSERT INTO reference_datasets (tenant_id, dataset, version, entity_count, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, dataset) DO UPDATE SET
			version = excluded.version,
			entity_count = excluded.entity_count,
			updated_at = excluded.updated_at
	`)

	if _, err := tx.ExecContext(ctx, upsert,
		tenantID, dataset, version, len(entities), time.Now().UTC(),
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return version, nil
}

// ListDatasetEntities retrieves all entities in a dataset along with the
// dataset version. Returns ErrNotFound for a dataset that was never loaded.
func (r *SQLRepository) ListDatasetEntities(ctx context.Context, tenantID string, dataset string) ([]*domain.ReferenceEntity, int64, error) {
	if tenantID == "" {
		return nil, 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var version int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT version FROM reference_datasets WHERE tenant_id = ? AND dataset = ?`),
		tenantID, dataset,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, dataset, name, aliases, jurisdiction, entity_type, programs, updated_at
		FROM reference_entities
		WHERE tenant_id = ? AND dataset = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, dataset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entities []*domain.ReferenceEntity
	for rows.Next() {
		var e domain.ReferenceEntity
		var aliases, programs string

		if err := rows.Scan(
			&e.ID, &e.Dataset, &e.Name,
			&aliases, &e.Jurisdiction, &e.EntityType, &programs,
			&e.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}

		if aliases != "" {
			json.Unmarshal([]byte(aliases), &e.Aliases)
		}
		if programs != "" {
			json.Unmarshal([]byte(programs), &e.Programs)
		}
		entities = append(entities, &e)
	}

	return entities, version, rows.Err()
}

// ListDatasets retrieves version summaries for all loaded datasets.
func (r *SQLRepository) ListDatasets(ctx context.Context, tenantID string) ([]domain.DatasetInfo, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT dataset, version, entity_count, updated_at
		FROM reference_datasets
		WHERE tenant_id = ?
		ORDER BY dataset
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []domain.DatasetInfo
	for rows.Next() {
		var info domain.DatasetInfo
		if err := rows.Scan(&info.Dataset, &info.Version, &info.EntityCount, &info.UpdatedAt); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// SaveFlagRule stores a flag rule with tenant isolation.
func (r *SQLRepository) SaveFlagRule(ctx context.Context, tenantID string, rule *domain.FlagRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	critical := 0
	if rule.Critical {
		critical = 1
	}
	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO flag_rules (
			id, tenant_id, name, description, version, expression, message, critical, category, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			message = excluded.message,
			critical = excluded.critical,
			category = excluded.category,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, rule.Message, critical, string(rule.Category), enabled,
		now, now,
	)
	return err
}

// GetFlagRule retrieves the latest enabled version of a flag rule with
// tenant isolation.
func (r *SQLRepository) GetFlagRule(ctx context.Context, tenantID string, ruleID string) (*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, message, critical, category, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.FlagRule
	var category string
	var critical, enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &rule.Message, &critical, &category, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Critical = critical == 1
	rule.Enabled = enabled == 1
	rule.Category = domain.Category(category)

	return &rule, nil
}

// ListFlagRules retrieves all enabled flag rules for a tenant.
func (r *SQLRepository) ListFlagRules(ctx context.Context, tenantID string) ([]*domain.FlagRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, message, critical, category, enabled
		FROM flag_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FlagRule
	for rows.Next() {
		var rule domain.FlagRule
		var category string
		var critical, enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &rule.Message, &critical, &category, &enabled,
		); err != nil {
			return nil, err
		}

		rule.Critical = critical == 1
		rule.Enabled = enabled == 1
		rule.Category = domain.Category(category)
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
