// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/collectline/dunlin/internal/domain"
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

// SaveRule stores a rule, replacing the existing row wholesale on conflict.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("%w: rule ID is required", domain.ErrInvalidInput)
	}

	filters, err := json.Marshal(rule.Filters)
	if err != nil {
		return fmt.Errorf("failed to encode rule filters: %w", err)
	}
	sched, err := json.Marshal(rule.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode rule schedule: %w", err)
	}

	query := `
		INSERT INTO strategies (
			id, name, description, status, priority, channel,
			template_id, template_name, filters, expression, schedule,
			success_count, failure_count, last_run_at, next_run_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			priority = excluded.priority,
			channel = excluded.channel,
			template_id = excluded.template_id,
			template_name = excluded.template_name,
			filters = excluded.filters,
			expression = excluded.expression,
			schedule = excluded.schedule,
			next_run_at = excluded.next_run_at,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Status, rule.Priority,
		rule.Channel.Type, rule.Channel.TemplateID, rule.Channel.TemplateName,
		string(filters), rule.Expression, string(sched),
		rule.SuccessCount, rule.FailureCount,
		nullTime(rule.LastRunAt), nullTime(rule.NextRunAt),
		rule.CreatedAt, rule.UpdatedAt,
	)
	return err
}

// GetRule retrieves a rule by ID.
func (r *SQLRepository) GetRule(ctx context.Context, ruleID string) (*domain.Rule, error) {
	query := `
		SELECT id, name, description, status, priority, channel,
			   template_id, template_name, filters, expression, schedule,
			   success_count, failure_count, last_run_at, next_run_at,
			   created_at, updated_at
		FROM strategies
		WHERE id = ?
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, r.rebind(query), ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rule, err
}

// ListRules retrieves all rules ordered by priority, then name.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	query := `
		SELECT id, name, description, status, priority, channel,
			   template_id, template_name, filters, expression, schedule,
			   success_count, failure_count, last_run_at, next_run_at,
			   created_at, updated_at
		FROM strategies
		ORDER BY priority, name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// DeleteRule removes a rule permanently.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM strategies WHERE id = ?`), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// RecordRunOutcome bumps the rule's run counters and last-run timestamp.
func (r *SQLRepository) RecordRunOutcome(ctx context.Context, ruleID string, succeeded bool, at time.Time) error {
	column := "failure_count"
	if succeeded {
		column = "success_count"
	}

	query := fmt.Sprintf(`
		UPDATE strategies
		SET %s = %s + 1, last_run_at = ?, updated_at = ?
		WHERE id = ?
	`, column, column)

	result, err := r.db.ExecContext(ctx, r.rebind(query), at, time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SetNextRun records the scheduler's computed next fire time.
func (r *SQLRepository) SetNextRun(ctx context.Context, ruleID string, at *time.Time) error {
	query := `UPDATE strategies SET next_run_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, r.rebind(query), nullTime(at), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// SaveRun stores a new execution run.
func (r *SQLRepository) SaveRun(ctx context.Context, run *domain.ExecutionRun) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run ID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO execution_runs (
			id, rule_id, remote_id, trigger_type, status,
			total_processed, success_count, failed_count,
			started_at, completed_at, error_summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.RuleID, run.RemoteID, run.TriggerType, run.Status,
		run.TotalProcessed, run.SuccessCount, run.FailedCount,
		run.StartedAt, nullTime(run.CompletedAt), run.ErrorSummary,
	)
	return err
}

// UpdateRun overwrites the mutable status fields of an existing run.
func (r *SQLRepository) UpdateRun(ctx context.Context, run *domain.ExecutionRun) error {
	query := `
		UPDATE execution_runs
		SET status = ?, total_processed = ?, success_count = ?,
			failed_count = ?, completed_at = ?, error_summary = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		run.Status, run.TotalProcessed, run.SuccessCount,
		run.FailedCount, nullTime(run.CompletedAt), run.ErrorSummary,
		run.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetRun retrieves an execution run by ID.
func (r *SQLRepository) GetRun(ctx context.Context, runID string) (*domain.ExecutionRun, error) {
	query := `
		SELECT id, rule_id, remote_id, trigger_type, status,
			   total_processed, success_count, failed_count,
			   started_at, completed_at, error_summary
		FROM execution_runs
		WHERE id = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, r.rebind(query), runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListRunsByRule retrieves a rule's runs, most recent first.
func (r *SQLRepository) ListRunsByRule(ctx context.Context, ruleID string) ([]*domain.ExecutionRun, error) {
	query := `
		SELECT id, rule_id, remote_id, trigger_type, status,
			   total_processed, success_count, failed_count,
			   started_at, completed_at, error_summary
		FROM execution_runs
		WHERE rule_id = ?
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.ExecutionRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveBatch stores a new batch job.
func (r *SQLRepository) SaveBatch(ctx context.Context, batch *domain.BatchJob) error {
	if batch.ID == "" {
		return fmt.Errorf("%w: batch ID is required", domain.ErrInvalidInput)
	}

	query := `
		INSERT INTO batch_jobs (
			id, kind, remote_id, file_name, status,
			total_cases, successful, failed, submitted_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		batch.ID, batch.Kind, batch.RemoteID, batch.FileName, batch.Status,
		batch.TotalCases, batch.Successful, batch.Failed,
		batch.SubmittedAt, nullTime(batch.CompletedAt),
	)
	return err
}

// UpdateBatch overwrites the mutable status fields of an existing batch job.
func (r *SQLRepository) UpdateBatch(ctx context.Context, batch *domain.BatchJob) error {
	query := `
		UPDATE batch_jobs
		SET status = ?, total_cases = ?, successful = ?, failed = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		batch.Status, batch.TotalCases, batch.Successful, batch.Failed,
		nullTime(batch.CompletedAt), batch.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetBatch retrieves a batch job by ID.
func (r *SQLRepository) GetBatch(ctx context.Context, batchID string) (*domain.BatchJob, error) {
	query := `
		SELECT id, kind, remote_id, file_name, status,
			   total_cases, successful, failed, submitted_at, completed_at
		FROM batch_jobs
		WHERE id = ?
	`

	var batch domain.BatchJob
	var completedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, r.rebind(query), batchID).Scan(
		&batch.ID, &batch.Kind, &batch.RemoteID, &batch.FileName, &batch.Status,
		&batch.TotalCases, &batch.Successful, &batch.Failed,
		&batch.SubmittedAt, &completedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		batch.CompletedAt = &completedAt.Time
	}

	return &batch, nil
}

// ListMasterData retrieves all entries of a category ordered by sort.
func (r *SQLRepository) ListMasterData(ctx context.Context, category string) ([]*domain.MasterDataEntry, error) {
	query := `
		SELECT category, code, value, is_active, sort
		FROM master_data
		WHERE category = ?
		ORDER BY sort, code
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.MasterDataEntry
	for rows.Next() {
		var e domain.MasterDataEntry
		var active int

		if err := rows.Scan(&e.Category, &e.Code, &e.Value, &active, &e.Sort); err != nil {
			return nil, err
		}

		e.IsActive = active == 1
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// SaveMasterDataEntry stores a master data entry, updating on conflict.
func (r *SQLRepository) SaveMasterDataEntry(ctx context.Context, entry *domain.MasterDataEntry) error {
	if entry.Category == "" || entry.Code == "" {
		return fmt.Errorf("%w: category and code are required", domain.ErrInvalidInput)
	}

	active := 0
	if entry.IsActive {
		active = 1
	}

	query := `
		INSERT INTO master_data (category, code, value, is_active, sort)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(category, code) DO UPDATE SET
			value = excluded.value,
			is_active = excluded.is_active,
			sort = excluded.sort
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		entry.Category, entry.Code, entry.Value, active, entry.Sort,
	)
	return err
}

// ListTemplates retrieves templates for a channel ordered by name.
func (r *SQLRepository) ListTemplates(ctx context.Context, channel domain.Channel) ([]*domain.MessageTemplate, error) {
	query := `
		SELECT id, channel, template_name, language, body, variables, created_at, updated_at
		FROM templates
		WHERE channel = ?
		ORDER BY template_name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*domain.MessageTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}

	return templates, rows.Err()
}

// GetTemplate retrieves a template by ID.
func (r *SQLRepository) GetTemplate(ctx context.Context, templateID string) (*domain.MessageTemplate, error) {
	query := `
		SELECT id, channel, template_name, language, body, variables, created_at, updated_at
		FROM templates
		WHERE id = ?
	`

	tpl, err := scanTemplate(r.db.QueryRowContext(ctx, r.rebind(query), templateID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return tpl, err
}

// SaveTemplate stores a template, updating on conflict.
func (r *SQLRepository) SaveTemplate(ctx context.Context, tpl *domain.MessageTemplate) error {
	if tpl.ID == "" {
		return fmt.Errorf("%w: template ID is required", domain.ErrInvalidInput)
	}

	variables, err := json.Marshal(tpl.Variables)
	if err != nil {
		return fmt.Errorf("failed to encode template variables: %w", err)
	}

	query := `
		INSERT INTO templates (
			id, channel, template_name, language, body, variables, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			channel = excluded.channel,
			template_name = excluded.template_name,
			language = excluded.language,
			body = excluded.body,
			variables = excluded.variables,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		tpl.ID, tpl.Channel, tpl.TemplateName, tpl.Language, tpl.Body,
		string(variables), tpl.CreatedAt, tpl.UpdatedAt,
	)
	return err
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(s scanner) (*domain.Rule, error) {
	var rule domain.Rule
	var filters, sched string
	var lastRun, nextRun sql.NullTime

	err := s.Scan(
		&rule.ID, &rule.Name, &rule.Description, &rule.Status, &rule.Priority,
		&rule.Channel.Type, &rule.Channel.TemplateID, &rule.Channel.TemplateName,
		&filters, &rule.Expression, &sched,
		&rule.SuccessCount, &rule.FailureCount, &lastRun, &nextRun,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(filters), &rule.Filters); err != nil {
		return nil, fmt.Errorf("failed to parse rule filters: %w", err)
	}
	if err := json.Unmarshal([]byte(sched), &rule.Schedule); err != nil {
		return nil, fmt.Errorf("failed to parse rule schedule: %w", err)
	}

	if lastRun.Valid {
		rule.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		rule.NextRunAt = &nextRun.Time
	}

	return &rule, nil
}

func scanRun(s scanner) (*domain.ExecutionRun, error) {
	var run domain.ExecutionRun
	var completedAt sql.NullTime

	err := s.Scan(
		&run.ID, &run.RuleID, &run.RemoteID, &run.TriggerType, &run.Status,
		&run.TotalProcessed, &run.SuccessCount, &run.FailedCount,
		&run.StartedAt, &completedAt, &run.ErrorSummary,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

func scanTemplate(s scanner) (*domain.MessageTemplate, error) {
	var tpl domain.MessageTemplate
	var variables string

	err := s.Scan(
		&tpl.ID, &tpl.Channel, &tpl.TemplateName, &tpl.Language, &tpl.Body,
		&variables, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if variables != "" {
		if err := json.Unmarshal([]byte(variables), &tpl.Variables); err != nil {
			return nil, fmt.Errorf("failed to parse template variables: %w", err)
		}
	}

	return &tpl, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

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
