package job

import (
	"testing"
	"time"

	"github.com/flemzord/chime/internal/store"
)

func TestArgs_SendTemplateRoundTrip(t *testing.T) {
	t.Parallel()

	end := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	maxExec := int64(10)
	def := store.Definition{
		ID:                42,
		ExternalID:        "abc-123",
		JobRef:            RefSendTemplate,
		ChatID:            "55501",
		TemplateName:      "promo",
		TemplateNamespace: "marketing",
		EndAt:             &end,
		MaxExecutions:     &maxExec,
	}

	args := Args(def)
	if len(args) != 7 {
		t.Fatalf("len(args) = %d, want 7", len(args))
	}

	p, err := Parse(RefSendTemplate, args)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.DefinitionID != 42 || p.ExternalID != "abc-123" {
		t.Errorf("ids = %d/%q", p.DefinitionID, p.ExternalID)
	}
	if p.ChatID != "55501" || p.TemplateName != "promo" || p.TemplateNamespace != "marketing" {
		t.Errorf("payload = %+v", p)
	}
	if p.EndAt == nil || !p.EndAt.Equal(end) {
		t.Errorf("end_at = %v, want %v", p.EndAt, end)
	}
	if p.MaxExecutions == nil || *p.MaxExecutions != 10 {
		t.Errorf("max_executions = %v, want 10", p.MaxExecutions)
	}
}

func TestArgs_MonitorRoundTrip(t *testing.T) {
	t.Parallel()

	def := store.Definition{ID: 7, ExternalID: "mon-1", JobRef: RefMonitor}
	args := Args(def)
	if len(args) != 4 {
		t.Fatalf("len(args) = %d, want 4", len(args))
	}

	p, err := Parse(RefMonitor, args)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.DefinitionID != 7 || p.ExternalID != "mon-1" {
		t.Errorf("parsed = %+v", p)
	}
	if p.EndAt != nil || p.MaxExecutions != nil {
		t.Errorf("optional fields should stay unset: %+v", p)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		args []string
	}{
		{"unknown ref", "chime.nope", []string{"1"}},
		{"wrong arity", RefSendTemplate, []string{"1", "2"}},
		{"bad id", RefMonitor, []string{"x", "ext", "", ""}},
		{"bad end_at", RefMonitor, []string{"1", "ext", "yesterday", ""}},
		{"bad max", RefMonitor, []string{"1", "ext", "", "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(tt.ref, tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
