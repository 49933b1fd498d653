package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/flemzord/chime/internal/beat/beattest"
	"github.com/flemzord/chime/internal/config"
	"github.com/flemzord/chime/internal/job"
	"github.com/flemzord/chime/internal/runner"
	"github.com/flemzord/chime/internal/scheduling"
	"github.com/flemzord/chime/internal/store"
)

const testToken = "test-token"

type env struct {
	srv   *httptest.Server
	store *store.Store
	beat  *beattest.Store
	hub   *runner.Hub
}

func newEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "chime.db"), slog.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bt := beattest.New()
	hub := runner.NewHub()
	sched := scheduling.NewService(st, bt, slog.Default())

	cfg := config.ServerConfig{
		Bind: "127.0.0.1:0",
		Auth: config.AuthConfig{BearerToken: testToken},
	}
	s := New(cfg, st, sched, hub, prometheus.NewRegistry(), slog.Default())
	s.startedAt = time.Now()

	srv := httptest.NewServer(s.buildRouter())
	t.Cleanup(srv.Close)

	return &env{srv: srv, store: st, beat: bt, hub: hub}
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func intervalRequest(name string) definitionRequest {
	return definitionRequest{
		Name:              name,
		JobRef:            job.RefSendTemplate,
		ChatID:            "100",
		TemplateName:      "welcome",
		TemplateNamespace: "onboarding",
		Schedule:          scheduleJSON{Kind: "interval", Seconds: 60},
	}
}

func TestAuth(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	if resp := e.do(t, http.MethodGet, "/status", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/status", "wrong", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", resp.StatusCode)
	}
	if resp := e.do(t, http.MethodGet, "/status", testToken, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", resp.StatusCode)
	}
	// Health needs no auth.
	if resp := e.do(t, http.MethodGet, "/health", "", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("health: status = %d, want 200", resp.StatusCode)
	}
}

func TestDefinitionCRUD(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	// Create.
	resp := e.do(t, http.MethodPost, "/api/definitions", testToken, intervalRequest("greet"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[definitionJSON](t, resp)
	if created.ID == 0 || created.ExternalID == "" {
		t.Errorf("created = %+v, missing ids", created)
	}
	if !created.Registered {
		t.Error("created definition should be registered")
	}
	if created.ScheduleDisplay != "every 60s" {
		t.Errorf("schedule display = %q", created.ScheduleDisplay)
	}
	if !e.beat.Has("greet") {
		t.Error("gateway entry missing after create")
	}

	// Get.
	resp = e.do(t, http.MethodGet, "/api/definitions/1", testToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status = %d, want 200", resp.StatusCode)
	}

	// Update to a crontab schedule.
	upd := intervalRequest("greet")
	upd.Schedule = scheduleJSON{Kind: "crontab", Minute: "30", Hour: "8"}
	resp = e.do(t, http.MethodPut, "/api/definitions/1", testToken, upd)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", resp.StatusCode)
	}
	updated := decodeBody[definitionJSON](t, resp)
	if updated.Schedule.Kind != "crontab" || updated.Schedule.DayOfMonth != "*" {
		t.Errorf("updated schedule = %+v", updated.Schedule)
	}
	if updated.ScheduleDisplay != "30:8:*:*:*" {
		t.Errorf("schedule display = %q", updated.ScheduleDisplay)
	}

	// List.
	resp = e.do(t, http.MethodGet, "/api/definitions", testToken, nil)
	if got := len(decodeBody[[]definitionJSON](t, resp)); got != 1 {
		t.Errorf("list = %d entries, want 1", got)
	}

	// Delete.
	resp = e.do(t, http.MethodDelete, "/api/definitions/1", testToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/api/definitions/1", testToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateDefinition_BadRequests(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	tests := []struct {
		name   string
		mutate func(*definitionRequest)
	}{
		{"missing name", func(r *definitionRequest) { r.Name = "" }},
		{"zero interval", func(r *definitionRequest) { r.Schedule.Seconds = 0 }},
		{"bad kind", func(r *definitionRequest) { r.Schedule.Kind = "hourly" }},
		{"bad cron field", func(r *definitionRequest) {
			r.Schedule = scheduleJSON{Kind: "crontab", Minute: "not-a-pattern"}
		}},
		{"unknown job ref", func(r *definitionRequest) { r.JobRef = "chime.nope" }},
	}

	for _, tt := range tests {
		req := intervalRequest("bad")
		tt.mutate(&req)
		resp := e.do(t, http.MethodPost, "/api/definitions", testToken, req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, resp.StatusCode)
		}
	}
}

func TestBulkLifecycle(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	req := bulkRequest{
		Name:              "campaign",
		JobRef:            job.RefSendTemplate,
		ChatIDs:           "1,2, 3",
		TemplateName:      "promo",
		TemplateNamespace: "marketing",
		Schedule:          scheduleJSON{Kind: "interval", Seconds: 3600},
	}
	resp := e.do(t, http.MethodPost, "/api/bulk", testToken, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	detail := decodeBody[bulkDetailJSON](t, resp)
	if len(detail.Children) != 3 {
		t.Fatalf("children = %d, want 3", len(detail.Children))
	}
	if got := detail.Bulk.Targets; len(got) != 3 || got[2] != "3" {
		t.Errorf("targets = %v", got)
	}
	if detail.Children[1].Name != "campaign_1" {
		t.Errorf("child name = %q, want campaign_1", detail.Children[1].Name)
	}

	// Get mirrors create.
	resp = e.do(t, http.MethodGet, "/api/bulk/"+detail.Bulk.ID, testToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: status = %d, want 200", resp.StatusCode)
	}

	// Delete cascades the children.
	resp = e.do(t, http.MethodDelete, "/api/bulk/"+detail.Bulk.ID, testToken, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status = %d, want 204", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/api/definitions", testToken, nil)
	if got := len(decodeBody[[]definitionJSON](t, resp)); got != 0 {
		t.Errorf("definitions after cascade = %d, want 0", got)
	}
}

func TestBulk_NoTargets(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	req := bulkRequest{
		Name:     "empty",
		JobRef:   job.RefSendTemplate,
		ChatIDs:  " , ,",
		Schedule: scheduleJSON{Kind: "interval", Seconds: 60},
	}
	resp := e.do(t, http.MethodPost, "/api/bulk", testToken, req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.beat.RegisterErr = io.ErrUnexpectedEOF
	resp := e.do(t, http.MethodPost, "/api/definitions", testToken, intervalRequest("orphan"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	e.beat.RegisterErr = nil

	resp = e.do(t, http.MethodPost, "/api/reconcile", testToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reconcile: status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[map[string]int](t, resp)
	if out["repaired"] != 1 {
		t.Errorf("repaired = %d, want 1", out["repaired"])
	}
}

func TestExecutionsEndpoints(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/api/definitions", testToken, intervalRequest("audited"))
	created := decodeBody[definitionJSON](t, resp)

	rec := &store.ExecutionRecord{
		DefinitionID: &created.ID,
		ExternalID:   created.ExternalID,
		Date:         "2026-08-28",
		Time:         "10:30:00",
		Status:       store.StatusSuccess,
	}
	if err := e.store.InsertExecution(context.Background(), rec); err != nil {
		t.Fatalf("insert execution: %v", err)
	}

	resp = e.do(t, http.MethodGet, "/api/executions?limit=10", testToken, nil)
	if got := len(decodeBody[[]executionJSON](t, resp)); got != 1 {
		t.Errorf("executions = %d, want 1", got)
	}

	resp = e.do(t, http.MethodGet, "/api/definitions/1/executions", testToken, nil)
	recs := decodeBody[[]executionJSON](t, resp)
	if len(recs) != 1 || recs[0].Status != "SUCCESS" {
		t.Errorf("definition executions = %+v", recs)
	}

	resp = e.do(t, http.MethodGet, "/api/definitions/999/executions", testToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown definition: status = %d, want 404", resp.StatusCode)
	}

	resp = e.do(t, http.MethodGet, "/api/executions?limit=bogus", testToken, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit: status = %d, want 400", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	e.do(t, http.MethodPost, "/api/definitions", testToken, intervalRequest("one"))
	e.beat.RegisterErr = io.ErrUnexpectedEOF
	e.do(t, http.MethodPost, "/api/definitions", testToken, intervalRequest("two"))
	e.beat.RegisterErr = nil

	resp := e.do(t, http.MethodGet, "/status", testToken, nil)
	status := decodeBody[StatusResponse](t, resp)
	if status.Definitions != 2 || status.Active != 2 || status.Orphaned != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: status = %d, want 200", resp.StatusCode)
	}
}

func TestExecutionsFeed(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/executions"
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + testToken}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// The subscription races the dial; retry briefly until it lands.
	deadline := time.Now().Add(2 * time.Second)
	go func() {
		for time.Now().Before(deadline) {
			e.hub.Publish(runner.Event{ExecutionID: 7, Name: "greet", Status: store.StatusSuccess})
			time.Sleep(50 * time.Millisecond)
		}
	}()

	var ev runner.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.ExecutionID != 7 || ev.Status != store.StatusSuccess {
		t.Errorf("event = %+v", ev)
	}
}
