// Package domain defines the core interfaces and types for Dunlin.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Rule operations. SaveRule is create-or-full-replace; DeleteRule is
	// terminal (hard delete).
	SaveRule(ctx context.Context, rule *Rule) error
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	ListRules(ctx context.Context) ([]*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// RecordRunOutcome bumps the rule's success/failure counters and
	// last-run timestamp after a terminal run.
	RecordRunOutcome(ctx context.Context, ruleID string, succeeded bool, at time.Time) error

	// SetNextRun records the scheduler's computed next fire time.
	SetNextRun(ctx context.Context, ruleID string, at *time.Time) error

	// Execution run operations. Runs are inserted once and then mutated
	// only from dispatch engine status responses.
	SaveRun(ctx context.Context, run *ExecutionRun) error
	UpdateRun(ctx context.Context, run *ExecutionRun) error
	GetRun(ctx context.Context, runID string) (*ExecutionRun, error)
	ListRunsByRule(ctx context.Context, ruleID string) ([]*ExecutionRun, error)

	// Batch job operations, same mutation discipline as runs.
	SaveBatch(ctx context.Context, batch *BatchJob) error
	UpdateBatch(ctx context.Context, batch *BatchJob) error
	GetBatch(ctx context.Context, batchID string) (*BatchJob, error)

	// Master data operations.
	ListMasterData(ctx context.Context, category string) ([]*MasterDataEntry, error)
	SaveMasterDataEntry(ctx context.Context, entry *MasterDataEntry) error

	// Template catalog operations.
	ListTemplates(ctx context.Context, channel Channel) ([]*MessageTemplate, error)
	GetTemplate(ctx context.Context, templateID string) (*MessageTemplate, error)
	SaveTemplate(ctx context.Context, tpl *MessageTemplate) error

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
