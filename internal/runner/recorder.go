package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chime/internal/store"
)

// Recorder persists the audit trail of each firing: bump the live
// counter on the definition, append an immutable execution record with
// a snapshot of the definition's fields, then publish a live event.
type Recorder struct {
	store   *store.Store
	hub     *Hub
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder. hub and metrics may be nil.
func NewRecorder(st *store.Store, hub *Hub, metrics *Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, hub: hub, metrics: metrics, logger: logger, now: time.Now}
}

// Record writes the outcome of one firing of def. The counter increment
// and the record insert are two statements, not one transaction; the
// counter is the authoritative quota input, the record is audit.
func (r *Recorder) Record(ctx context.Context, def store.Definition, status store.Status) error {
	count, err := r.store.IncrementExecutionCount(ctx, def.ID)
	if err != nil {
		return fmt.Errorf("runner: increment count for %d: %w", def.ID, err)
	}

	now := r.now()
	rec := store.ExecutionRecord{
		DefinitionID:      &def.ID,
		ExternalID:        def.ExternalID,
		Date:              now.Format("2006-01-02"),
		Time:              now.Format("15:04:05"),
		Status:            status,
		DefinitionName:    def.Name,
		ScheduleKind:      string(def.Schedule.Kind),
		ChatID:            def.ChatID,
		TemplateName:      def.TemplateName,
		TemplateNamespace: def.TemplateNamespace,
	}
	if err := r.store.InsertExecution(ctx, &rec); err != nil {
		return fmt.Errorf("runner: record execution for %d: %w", def.ID, err)
	}

	r.metrics.recordExecution(def.JobRef, string(status))
	if r.hub != nil {
		r.hub.Publish(Event{
			ExecutionID:  rec.ID,
			DefinitionID: def.ID,
			ExternalID:   def.ExternalID,
			Name:         def.Name,
			JobRef:       def.JobRef,
			Status:       status,
			At:           now,
		})
	}

	r.logger.Info("runner: execution recorded",
		"definition", def.ID,
		"name", def.Name,
		"status", string(status),
		"count", count,
	)
	return nil
}
