package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/chime/internal/schedule"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chime.db"), slog.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func intervalDef(name string) *Definition {
	return &Definition{
		ExternalID:        "ext-" + name,
		Name:              name,
		JobRef:            "chime.send_template",
		ChatID:            "12345",
		TemplateName:      "welcome",
		TemplateNamespace: "onboarding",
		Schedule:          schedule.Descriptor{Kind: schedule.KindInterval, Seconds: 60},
		Active:            true,
	}
}

func TestStore_CreateAndFetchDefinition(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	end := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	maxExec := int64(5)
	def := intervalDef("reminder")
	def.EndAt = &end
	def.MaxExecutions = &maxExec

	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}
	if def.ID == 0 {
		t.Fatal("expected assigned id")
	}

	got, err := s.Definition(ctx, def.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Name != "reminder" || got.ChatID != "12345" {
		t.Errorf("fetched = %+v", got)
	}
	if got.Schedule.Kind != schedule.KindInterval || got.Schedule.Seconds != 60 {
		t.Errorf("schedule = %+v, want interval 60s", got.Schedule)
	}
	if got.EndAt == nil || !got.EndAt.Equal(end) {
		t.Errorf("end_at = %v, want %v", got.EndAt, end)
	}
	if got.MaxExecutions == nil || *got.MaxExecutions != 5 {
		t.Errorf("max_executions = %v, want 5", got.MaxExecutions)
	}
	if !got.Active {
		t.Error("expected active definition")
	}

	byExt, err := s.DefinitionByExternalID(ctx, "ext-reminder")
	if err != nil {
		t.Fatalf("fetch by external id: %v", err)
	}
	if byExt.ID != def.ID {
		t.Errorf("external lookup id = %d, want %d", byExt.ID, def.ID)
	}
}

func TestStore_DefinitionNotFound(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if _, err := s.Definition(context.Background(), 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_UpdateDefinition(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	def := intervalDef("upd")
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	def.TemplateName = "farewell"
	def.Schedule = schedule.Descriptor{
		Kind: schedule.KindCrontab, Minute: "0", Hour: "9",
		DayOfMonth: "*", Month: "*", DayOfWeek: "1-5",
	}
	if err := s.UpdateDefinition(ctx, def); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.Definition(ctx, def.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.TemplateName != "farewell" {
		t.Errorf("template = %q, want farewell", got.TemplateName)
	}
	if got.Schedule.Kind != schedule.KindCrontab || got.Schedule.Hour != "9" {
		t.Errorf("schedule = %+v", got.Schedule)
	}
}

func TestStore_IncrementExecutionCount(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	def := intervalDef("count")
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrementExecutionCount(ctx, def.ID)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if got != want {
			t.Errorf("count = %d, want %d", got, want)
		}
	}

	if _, err := s.IncrementExecutionCount(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DeactivateClearsBeatKey(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	def := intervalDef("deact")
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetBeatKey(ctx, def.ID, "chime:entry:deact"); err != nil {
		t.Fatalf("set beat key: %v", err)
	}
	if err := s.Deactivate(ctx, def.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := s.Definition(ctx, def.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Active {
		t.Error("expected inactive definition")
	}
	if got.BeatKey != "" {
		t.Errorf("beat key = %q, want empty", got.BeatKey)
	}
}

func TestStore_OrphanedDefinitions(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	registered := intervalDef("registered")
	if err := s.CreateDefinition(ctx, registered); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetBeatKey(ctx, registered.ID, "chime:entry:registered"); err != nil {
		t.Fatalf("set beat key: %v", err)
	}

	orphan := intervalDef("orphan")
	if err := s.CreateDefinition(ctx, orphan); err != nil {
		t.Fatalf("create: %v", err)
	}

	inactive := intervalDef("inactive")
	if err := s.CreateDefinition(ctx, inactive); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Deactivate(ctx, inactive.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	orphans, err := s.OrphanedDefinitions(ctx)
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if len(orphans) != 1 || orphans[0].Name != "orphan" {
		t.Errorf("orphans = %+v, want exactly [orphan]", orphans)
	}
}

func TestStore_DeleteDetachesExecutions(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	def := intervalDef("hist")
	if err := s.CreateDefinition(ctx, def); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := &ExecutionRecord{
			DefinitionID:   &def.ID,
			ExternalID:     def.ExternalID,
			Date:           "2026-08-28",
			Time:           "10:00:00",
			Status:         StatusSuccess,
			DefinitionName: def.Name,
			ScheduleKind:   string(def.Schedule.Kind),
			ChatID:         def.ChatID,
		}
		if err := s.InsertExecution(ctx, rec); err != nil {
			t.Fatalf("insert execution: %v", err)
		}
	}

	detached, err := s.DetachExecutions(ctx, def.ID)
	if err != nil {
		t.Fatalf("detach: %v", err)
	}
	if detached != 2 {
		t.Errorf("detached = %d, want 2", detached)
	}
	if err := s.DeleteDefinition(ctx, def.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := s.Definition(ctx, def.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("definition err = %v, want ErrNotFound", err)
	}

	recs, err := s.Executions(ctx, 0)
	if err != nil {
		t.Fatalf("executions: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2 surviving records", len(recs))
	}
	for _, rec := range recs {
		if rec.DefinitionID != nil {
			t.Errorf("record %d still references definition %d", rec.ID, *rec.DefinitionID)
		}
		if rec.DefinitionName != "hist" {
			t.Errorf("denormalized name = %q, want hist", rec.DefinitionName)
		}
	}
}

func TestStore_BulkCRUD(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	b := &BulkDefinition{
		ID:       "bulk-1",
		ChatIDs:  "1,2, 3",
		Name:     "digest",
		JobRef:   "chime.send_template",
		Schedule: schedule.Descriptor{Kind: schedule.KindInterval, Seconds: 3600},
		Active:   true,
	}
	if err := s.CreateBulk(ctx, b); err != nil {
		t.Fatalf("create bulk: %v", err)
	}

	got, err := s.Bulk(ctx, "bulk-1")
	if err != nil {
		t.Fatalf("fetch bulk: %v", err)
	}
	if got.ChatIDs != "1,2, 3" {
		t.Errorf("chat_ids = %q", got.ChatIDs)
	}

	got.Name = "weekly-digest"
	if err := s.UpdateBulk(ctx, &got); err != nil {
		t.Fatalf("update bulk: %v", err)
	}

	bulks, err := s.Bulks(ctx)
	if err != nil {
		t.Fatalf("list bulks: %v", err)
	}
	if len(bulks) != 1 || bulks[0].Name != "weekly-digest" {
		t.Errorf("bulks = %+v", bulks)
	}

	if err := s.DeleteBulk(ctx, "bulk-1"); err != nil {
		t.Fatalf("delete bulk: %v", err)
	}
	if _, err := s.Bulk(ctx, "bulk-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_ExecutionsByDefinition(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	a := intervalDef("a")
	bDef := intervalDef("b")
	if err := s.CreateDefinition(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.CreateDefinition(ctx, bDef); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, def := range []*Definition{a, a, bDef} {
		rec := &ExecutionRecord{
			DefinitionID: &def.ID,
			ExternalID:   def.ExternalID,
			Date:         "2026-08-28",
			Time:         "11:30:00",
			Status:       StatusError,
		}
		if err := s.InsertExecution(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recs, err := s.ExecutionsByDefinition(ctx, a.ID)
	if err != nil {
		t.Fatalf("by definition: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}

	limited, err := s.Executions(ctx, 1)
	if err != nil {
		t.Fatalf("limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}
}
