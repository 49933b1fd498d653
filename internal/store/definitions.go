package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/chime/internal/schedule"
)

const definitionColumns = `id, external_id, name, job_ref, chat_id, template_name,
	template_namespace, kind, interval_seconds, cron_minute, cron_hour,
	cron_day_of_month, cron_month, cron_day_of_week, beat_key, end_at,
	execution_count, max_executions, active, group_id, created_at, updated_at`

// CreateDefinition inserts def and fills in its ID and timestamps.
func (s *Store) CreateDefinition(ctx context.Context, def *Definition) error {
	now := time.Now().UTC()
	def.CreatedAt = now
	def.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO definitions (
			external_id, name, job_ref, chat_id, template_name, template_namespace,
			kind, interval_seconds, cron_minute, cron_hour, cron_day_of_month,
			cron_month, cron_day_of_week, beat_key, end_at, execution_count,
			max_executions, active, group_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ExternalID, def.Name, def.JobRef, def.ChatID, def.TemplateName,
		def.TemplateNamespace, string(def.Schedule.Kind), def.Schedule.Seconds,
		def.Schedule.Minute, def.Schedule.Hour, def.Schedule.DayOfMonth,
		def.Schedule.Month, def.Schedule.DayOfWeek, def.BeatKey,
		encodeTime(def.EndAt), def.ExecutionCount, def.MaxExecutions,
		def.Active, def.GroupID,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: create definition: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: definition id: %w", err)
	}
	def.ID = id
	return nil
}

// Definition fetches one definition by internal id.
func (s *Store) Definition(ctx context.Context, id int64) (Definition, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+definitionColumns+" FROM definitions WHERE id = ?", id)
	return scanDefinition(row)
}

// DefinitionByExternalID fetches one definition by its opaque external id.
func (s *Store) DefinitionByExternalID(ctx context.Context, externalID string) (Definition, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+definitionColumns+" FROM definitions WHERE external_id = ?", externalID)
	return scanDefinition(row)
}

// Definitions lists all definitions, newest first.
func (s *Store) Definitions(ctx context.Context) ([]Definition, error) {
	return s.queryDefinitions(ctx,
		"SELECT "+definitionColumns+" FROM definitions ORDER BY id DESC")
}

// DefinitionsByGroup lists the children of one bulk definition.
func (s *Store) DefinitionsByGroup(ctx context.Context, groupID string) ([]Definition, error) {
	return s.queryDefinitions(ctx,
		"SELECT "+definitionColumns+" FROM definitions WHERE group_id = ? ORDER BY id", groupID)
}

// OrphanedDefinitions lists active definitions with no gateway entry.
// These are the repair candidates for the reconcile operation.
func (s *Store) OrphanedDefinitions(ctx context.Context) ([]Definition, error) {
	return s.queryDefinitions(ctx,
		"SELECT "+definitionColumns+" FROM definitions WHERE active = 1 AND beat_key = '' ORDER BY id")
}

// ActiveDefinitions lists all active definitions.
func (s *Store) ActiveDefinitions(ctx context.Context) ([]Definition, error) {
	return s.queryDefinitions(ctx,
		"SELECT "+definitionColumns+" FROM definitions WHERE active = 1 ORDER BY id")
}

// UpdateDefinition persists all mutable fields of def.
func (s *Store) UpdateDefinition(ctx context.Context, def *Definition) error {
	def.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE definitions SET
			name = ?, job_ref = ?, chat_id = ?, template_name = ?,
			template_namespace = ?, kind = ?, interval_seconds = ?,
			cron_minute = ?, cron_hour = ?, cron_day_of_month = ?,
			cron_month = ?, cron_day_of_week = ?, beat_key = ?, end_at = ?,
			max_executions = ?, active = ?, group_id = ?, updated_at = ?
		WHERE id = ?`,
		def.Name, def.JobRef, def.ChatID, def.TemplateName,
		def.TemplateNamespace, string(def.Schedule.Kind), def.Schedule.Seconds,
		def.Schedule.Minute, def.Schedule.Hour, def.Schedule.DayOfMonth,
		def.Schedule.Month, def.Schedule.DayOfWeek, def.BeatKey,
		encodeTime(def.EndAt), def.MaxExecutions, def.Active, def.GroupID,
		def.UpdatedAt.Format(time.RFC3339Nano), def.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update definition %d: %w", def.ID, err)
	}
	return requireRow(res, def.ID)
}

// SetBeatKey stores the gateway entry key for a definition (the second
// write of create_and_register).
func (s *Store) SetBeatKey(ctx context.Context, id int64, key string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE definitions SET beat_key = ?, updated_at = ? WHERE id = ?",
		key, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("store: set beat key for %d: %w", id, err)
	}
	return requireRow(res, id)
}

// Deactivate turns a definition off and clears its gateway key. One-way:
// nothing in the core re-activates a definition.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE definitions SET active = 0, beat_key = '', updated_at = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("store: deactivate definition %d: %w", id, err)
	}
	return requireRow(res, id)
}

// IncrementExecutionCount adds one to the execution counter and returns
// the new value. The increment happens in a single UPDATE so concurrent
// firings of the same definition cannot lose a count.
func (s *Store) IncrementExecutionCount(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE definitions
		SET execution_count = execution_count + 1, updated_at = ?
		WHERE id = ?
		RETURNING execution_count`,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: definition %d", ErrNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("store: increment count for %d: %w", id, err)
	}
	return count, nil
}

// DeleteDefinition removes the row. Callers must detach executions first;
// the scheduling service owns that ordering.
func (s *Store) DeleteDefinition(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM definitions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete definition %d: %w", id, err)
	}
	return requireRow(res, id)
}

func (s *Store) queryDefinitions(ctx context.Context, query string, args ...any) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinitionRow(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan definitions: %w", err)
	}
	return defs, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row *sql.Row) (Definition, error) {
	def, err := scanDefinitionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, ErrNotFound
	}
	return def, err
}

func scanDefinitionRow(row rowScanner) (Definition, error) {
	var (
		def       Definition
		kind      string
		endAt     sql.NullString
		maxExec   sql.NullInt64
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&def.ID, &def.ExternalID, &def.Name, &def.JobRef, &def.ChatID,
		&def.TemplateName, &def.TemplateNamespace, &kind,
		&def.Schedule.Seconds, &def.Schedule.Minute, &def.Schedule.Hour,
		&def.Schedule.DayOfMonth, &def.Schedule.Month, &def.Schedule.DayOfWeek,
		&def.BeatKey, &endAt, &def.ExecutionCount, &maxExec, &def.Active,
		&def.GroupID, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Definition{}, err
		}
		return Definition{}, fmt.Errorf("store: scan definition: %w", err)
	}

	def.Schedule.Kind = schedule.Kind(kind)
	if def.EndAt, err = decodeTime(endAt); err != nil {
		return Definition{}, err
	}
	if maxExec.Valid {
		def.MaxExecutions = &maxExec.Int64
	}
	if def.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return Definition{}, err
	}
	if def.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: definition %d", ErrNotFound, id)
	}
	return nil
}

func encodeTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("store: parse timestamp %q: %w", v.String, err)
	}
	return &t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse timestamp %q: %w", s, err)
	}
	return t, nil
}
