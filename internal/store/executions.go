package store

import (
	"context"
	"database/sql"
	"fmt"
)

const executionColumns = `id, definition_id, external_id, executed_date,
	executed_time, status, definition_name, schedule_kind, chat_id,
	template_name, template_namespace`

// InsertExecution appends one immutable execution record and fills in
// its ID. Records are never updated after this insert.
func (s *Store) InsertExecution(ctx context.Context, rec *ExecutionRecord) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO executions (
			definition_id, external_id, executed_date, executed_time, status,
			definition_name, schedule_kind, chat_id, template_name,
			template_namespace
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.DefinitionID, rec.ExternalID, rec.Date, rec.Time, string(rec.Status),
		rec.DefinitionName, rec.ScheduleKind, rec.ChatID, rec.TemplateName,
		rec.TemplateNamespace,
	)
	if err != nil {
		return fmt.Errorf("store: insert execution: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: execution id: %w", err)
	}
	rec.ID = id
	return nil
}

// Executions lists the most recent execution records, newest first.
// limit <= 0 means no limit.
func (s *Store) Executions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	query := "SELECT " + executionColumns + " FROM executions ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryExecutions(ctx, query, args...)
}

// ExecutionsByDefinition lists the records of one definition, newest first.
func (s *Store) ExecutionsByDefinition(ctx context.Context, definitionID int64) ([]ExecutionRecord, error) {
	return s.queryExecutions(ctx,
		"SELECT "+executionColumns+" FROM executions WHERE definition_id = ? ORDER BY id DESC",
		definitionID)
}

// DetachExecutions nulls the parent reference on every record of a
// definition. Called before the definition row is removed so history
// survives the delete.
func (s *Store) DetachExecutions(ctx context.Context, definitionID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE executions SET definition_id = NULL WHERE definition_id = ?",
		definitionID)
	if err != nil {
		return 0, fmt.Errorf("store: detach executions of %d: %w", definitionID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	return n, nil
}

func (s *Store) queryExecutions(ctx context.Context, query string, args ...any) ([]ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []ExecutionRecord
	for rows.Next() {
		var (
			rec   ExecutionRecord
			defID sql.NullInt64
		)
		err := rows.Scan(
			&rec.ID, &defID, &rec.ExternalID, &rec.Date, &rec.Time,
			&rec.Status, &rec.DefinitionName, &rec.ScheduleKind, &rec.ChatID,
			&rec.TemplateName, &rec.TemplateNamespace,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan execution: %w", err)
		}
		if defID.Valid {
			rec.DefinitionID = &defID.Int64
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan executions: %w", err)
	}
	return recs, nil
}
