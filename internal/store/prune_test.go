package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneExecutions(t *testing.T) {
	t.Parallel()

	st, err := Open(filepath.Join(t.TempDir(), "chime.db"), slog.Default())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -40).Format("2006-01-02")
	recent := time.Now().Format("2006-01-02")
	for _, date := range []string{old, old, recent} {
		rec := &ExecutionRecord{ExternalID: "ext", Date: date, Time: "08:00:00", Status: StatusSuccess}
		if err := st.InsertExecution(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := st.PruneExecutions(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	recs, err := st.Executions(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].Date != recent {
		t.Errorf("surviving = %+v, want only the recent record", recs)
	}
}
