package repository

// Schema definitions for Harrier database.
// Compatible with both SQLite and PostgreSQL.

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    query_name TEXT NOT NULL,
    jurisdiction_hint TEXT,
    entity_type TEXT,
    normalized TEXT NOT NULL,
    composite_score INTEGER NOT NULL,
    risk_level TEXT NOT NULL,
    confidence REAL NOT NULL,
    categories TEXT NOT NULL,
    red_flags TEXT,
    matches TEXT,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_assessments_level ON assessments(tenant_id, risk_level);
`

const schemaReferenceEntities = `
CREATE TABLE IF NOT EXISTS reference_entities (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    dataset TEXT NOT NULL,
    name TEXT NOT NULL,
    aliases TEXT,
    jurisdiction TEXT,
    entity_type TEXT,
    programs TEXT,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, dataset)
);

CREATE INDEX IF NOT EXISTS idx_reference_entities_dataset ON reference_entities(tenant_id, dataset);
`

// schemaReferenceDatasets tracks one version row per dataset. The version
// is bumped on every whole-dataset replacement.
const schemaReferenceDatasets = `
CREATE TABLE IF NOT EXISTS reference_datasets (
    tenant_id TEXT NOT NULL,
    dataset TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    entity_count INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, dataset)
);
`

const schemaFlagRules = `
CREATE TABLE IF NOT EXISTS flag_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    message TEXT NOT NULL,
    critical INTEGER NOT NULL DEFAULT 0,
    category TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_flag_rules_tenant ON flag_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_flag_rules_enabled ON flag_rules(tenant_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaReferenceEntities,
		schemaReferenceDatasets,
		schemaFlagRules,
	}
}
