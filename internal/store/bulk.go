package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/chime/internal/schedule"
)

const bulkColumns = `id, chat_ids, name, job_ref, template_name, template_namespace,
	kind, interval_seconds, cron_minute, cron_hour, cron_day_of_month,
	cron_month, cron_day_of_week, end_at, max_executions, active,
	created_at, updated_at`

// CreateBulk inserts a bulk definition. The caller supplies the ID.
func (s *Store) CreateBulk(ctx context.Context, b *BulkDefinition) error {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bulk_definitions (
			id, chat_ids, name, job_ref, template_name, template_namespace,
			kind, interval_seconds, cron_minute, cron_hour, cron_day_of_month,
			cron_month, cron_day_of_week, end_at, max_executions, active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ChatIDs, b.Name, b.JobRef, b.TemplateName, b.TemplateNamespace,
		string(b.Schedule.Kind), b.Schedule.Seconds, b.Schedule.Minute,
		b.Schedule.Hour, b.Schedule.DayOfMonth, b.Schedule.Month,
		b.Schedule.DayOfWeek, encodeTime(b.EndAt), b.MaxExecutions, b.Active,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: create bulk definition: %w", err)
	}
	return nil
}

// Bulk fetches one bulk definition by id.
func (s *Store) Bulk(ctx context.Context, id string) (BulkDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+bulkColumns+" FROM bulk_definitions WHERE id = ?", id)
	b, err := scanBulkRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return BulkDefinition{}, ErrNotFound
	}
	return b, err
}

// Bulks lists all bulk definitions, newest first.
func (s *Store) Bulks(ctx context.Context) ([]BulkDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+bulkColumns+" FROM bulk_definitions ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("store: list bulk definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var bulks []BulkDefinition
	for rows.Next() {
		b, err := scanBulkRow(rows)
		if err != nil {
			return nil, err
		}
		bulks = append(bulks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan bulk definitions: %w", err)
	}
	return bulks, nil
}

// UpdateBulk persists all mutable fields of b.
func (s *Store) UpdateBulk(ctx context.Context, b *BulkDefinition) error {
	b.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE bulk_definitions SET
			chat_ids = ?, name = ?, job_ref = ?, template_name = ?,
			template_namespace = ?, kind = ?, interval_seconds = ?,
			cron_minute = ?, cron_hour = ?, cron_day_of_month = ?,
			cron_month = ?, cron_day_of_week = ?, end_at = ?,
			max_executions = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		b.ChatIDs, b.Name, b.JobRef, b.TemplateName, b.TemplateNamespace,
		string(b.Schedule.Kind), b.Schedule.Seconds, b.Schedule.Minute,
		b.Schedule.Hour, b.Schedule.DayOfMonth, b.Schedule.Month,
		b.Schedule.DayOfWeek, encodeTime(b.EndAt), b.MaxExecutions, b.Active,
		b.UpdatedAt.Format(time.RFC3339Nano), b.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update bulk definition %s: %w", b.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: bulk definition %s", ErrNotFound, b.ID)
	}
	return nil
}

// DeleteBulk removes the bulk row. Children are deleted by the scheduling
// service before this is called (cascade lives there, not in SQL).
func (s *Store) DeleteBulk(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bulk_definitions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete bulk definition %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: bulk definition %s", ErrNotFound, id)
	}
	return nil
}

func scanBulkRow(row rowScanner) (BulkDefinition, error) {
	var (
		b         BulkDefinition
		kind      string
		endAt     sql.NullString
		maxExec   sql.NullInt64
		createdAt string
		updatedAt string
	)

	err := row.Scan(
		&b.ID, &b.ChatIDs, &b.Name, &b.JobRef, &b.TemplateName,
		&b.TemplateNamespace, &kind, &b.Schedule.Seconds, &b.Schedule.Minute,
		&b.Schedule.Hour, &b.Schedule.DayOfMonth, &b.Schedule.Month,
		&b.Schedule.DayOfWeek, &endAt, &maxExec, &b.Active,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return BulkDefinition{}, err
		}
		return BulkDefinition{}, fmt.Errorf("store: scan bulk definition: %w", err)
	}

	b.Schedule.Kind = schedule.Kind(kind)
	if b.EndAt, err = decodeTime(endAt); err != nil {
		return BulkDefinition{}, err
	}
	if maxExec.Valid {
		b.MaxExecutions = &maxExec.Int64
	}
	if b.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return BulkDefinition{}, err
	}
	if b.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return BulkDefinition{}, err
	}
	return b, nil
}
