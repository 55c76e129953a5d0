package repository

// Schema definitions for the Dunlin database.
// Compatible with both SQLite and PostgreSQL.

const schemaStrategies = `
CREATE TABLE IF NOT EXISTS strategies (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    status TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    channel TEXT NOT NULL,
    template_id TEXT NOT NULL,
    template_name TEXT,
    filters TEXT NOT NULL,
    expression TEXT NOT NULL,
    schedule TEXT NOT NULL,
    success_count INTEGER NOT NULL DEFAULT 0,
    failure_count INTEGER NOT NULL DEFAULT 0,
    last_run_at TIMESTAMP,
    next_run_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies(status);
CREATE INDEX IF NOT EXISTS idx_strategies_name ON strategies(name);
`

const schemaExecutionRuns = `
CREATE TABLE IF NOT EXISTS execution_runs (
    id TEXT PRIMARY KEY,
    rule_id TEXT NOT NULL,
    remote_id TEXT NOT NULL,
    trigger_type TEXT NOT NULL,
    status TEXT NOT NULL,
    total_processed INTEGER NOT NULL DEFAULT 0,
    success_count INTEGER NOT NULL DEFAULT 0,
    failed_count INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP,
    error_summary TEXT
);

CREATE INDEX IF NOT EXISTS idx_execution_runs_rule ON execution_runs(rule_id);
CREATE INDEX IF NOT EXISTS idx_execution_runs_status ON execution_runs(status);
`

const schemaBatchJobs = `
CREATE TABLE IF NOT EXISTS batch_jobs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    remote_id TEXT NOT NULL,
    file_name TEXT,
    status TEXT NOT NULL,
    total_cases INTEGER NOT NULL DEFAULT 0,
    successful INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    submitted_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batch_jobs_kind ON batch_jobs(kind);
CREATE INDEX IF NOT EXISTS idx_batch_jobs_status ON batch_jobs(status);
`

const schemaMasterData = `
CREATE TABLE IF NOT EXISTS master_data (
    category TEXT NOT NULL,
    code TEXT NOT NULL,
    value TEXT NOT NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    sort INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (category, code)
);

CREATE INDEX IF NOT EXISTS idx_master_data_category ON master_data(category);
`

const schemaTemplates = `
CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    channel TEXT NOT NULL,
    template_name TEXT NOT NULL,
    language TEXT NOT NULL,
    body TEXT,
    variables TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_templates_channel ON templates(channel);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaStrategies,
		schemaExecutionRuns,
		schemaBatchJobs,
		schemaMasterData,
		schemaTemplates,
	}
}
