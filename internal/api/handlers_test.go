package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yangwenmai/scanforge/internal/engine"
	"github.com/yangwenmai/scanforge/internal/orchestrator"
	"github.com/yangwenmai/scanforge/internal/store"
)

const scanner = `import pandas as pd

P = {"price_min": 8.0}

class Scanner:
    def execute(self):
        return self.fetch_all_grouped_data()
`

func newTestServer(t *testing.T, opts ...Option) (*Server, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db, store.DialectSQLite)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := orchestrator.New(engine.NewTransformer(&engine.StubModelClient{}),
		orchestrator.WithLogger(logger),
		orchestrator.WithRetry(1, 0),
	)
	srv := New(o, s, append([]Option{WithLogger(logger)}, opts...)...)
	return srv, s
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

func formatBody(t *testing.T, v map[string]any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestFormat(t *testing.T) {
	srv, st := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/format", formatBody(t, map[string]any{"code": scanner, "filename": "gap.py"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	res := decodeJSON(t, rr)
	if res["success"] != true {
		t.Fatalf("success = %v, body: %s", res["success"], rr.Body.String())
	}
	code, _ := res["transformedCode"].(string)
	if !strings.Contains(code, "def run_scan(") {
		t.Errorf("transformedCode lacks run_scan:\n%s", code)
	}
	summary := res["summary"].(map[string]any)
	if summary["validationScore"] != float64(100) {
		t.Errorf("validationScore = %v, want 100", summary["validationScore"])
	}

	id := res["workflow"].(map[string]any)["id"].(string)
	run, err := st.GetRun(t.Context(), id)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if run.Filename != "gap.py" || !run.Success {
		t.Errorf("persisted run = %+v", run.RunSummary)
	}
}

func TestFormat_Options(t *testing.T) {
	tests := []struct {
		name       string
		options    any
		wantScore  float64
		wantStatus map[string]string
	}{
		{
			name:      "partial options keep defaults",
			options:   map[string]any{"transformationType": "v31_standardize"},
			wantScore: 100,
			wantStatus: map[string]string{
				"parameter_preservation": "succeeded",
				"optimization":           "succeeded",
				"documentation":          "succeeded",
				"validation":             "succeeded",
			},
		},
		{
			name:      "null options use defaults",
			options:   nil,
			wantScore: 100,
			wantStatus: map[string]string{
				"validation": "succeeded",
			},
		},
		{
			name:      "explicit false disables a stage",
			options:   map[string]any{"validateOutput": false, "addDocumentation": false},
			wantScore: 0,
			wantStatus: map[string]string{
				"parameter_preservation": "succeeded",
				"documentation":          "skipped",
				"validation":             "skipped",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)
			body := formatBody(t, map[string]any{"code": scanner, "options": tt.options})
			rr := doRequest(t, srv.Handler(), "POST", "/api/format", body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, body: %s", rr.Code, rr.Body.String())
			}
			res := decodeJSON(t, rr)
			if res["success"] != true {
				t.Fatalf("success = %v, body: %s", res["success"], rr.Body.String())
			}
			if score := res["summary"].(map[string]any)["validationScore"]; score != tt.wantScore {
				t.Errorf("validationScore = %v, want %v", score, tt.wantScore)
			}

			got := map[string]string{}
			for _, st := range res["workflow"].(map[string]any)["stages"].([]any) {
				rec := st.(map[string]any)
				got[rec["name"].(string)] = rec["status"].(string)
			}
			for name, want := range tt.wantStatus {
				if got[name] != want {
					t.Errorf("stage %s = %q, want %q", name, got[name], want)
				}
			}
		})
	}
}

func TestFormat_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, WithMaxBody(256))
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid JSON", `{"code":`, http.StatusBadRequest},
		{"missing code", `{"filename":"a.py"}`, http.StatusBadRequest},
		{"unknown kind", `{"code":"x = 1","options":{"transformationType":"rewrite_all"}}`, http.StatusBadRequest},
		{"too large", `{"code":"` + strings.Repeat("x", 512) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, "POST", "/api/format", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d, body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestStage(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name  string
		stage string
		body  string
		want  int
	}{
		{"compliance", "compliance", formatBody(t, map[string]any{"code": scanner}), http.StatusOK},
		{"validation", "validation", formatBody(t, map[string]any{"code": scanner}), http.StatusOK},
		{"unknown", "lint", `{"code":"x = 1"}`, http.StatusNotFound},
		{"empty source generation", "generation", `{"code":""}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, h, "POST", "/api/stages/"+tt.stage, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d, body: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr := doRequest(t, h, "POST", "/api/stages/compliance", formatBody(t, map[string]any{"code": scanner}))
	res := decodeJSON(t, rr)
	if code, _ := res["code"].(string); !strings.Contains(code, "def fetch_grouped_data(") {
		t.Errorf("compliance stage code lacks fetch_grouped_data:\n%s", code)
	}
}

func TestWorkflows(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "POST", "/api/format", formatBody(t, map[string]any{"code": scanner}))
	id := decodeJSON(t, rr)["workflow"].(map[string]any)["id"].(string)
	doRequest(t, h, "POST", "/api/format", formatBody(t, map[string]any{"code": scanner + "\n# v2\n"}))

	rr = doRequest(t, h, "GET", "/api/workflows?status=completed&limit=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status = %d", rr.Code)
	}
	var runs []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs = %d, want 2", len(runs))
	}

	rr = doRequest(t, h, "GET", "/api/workflows/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	if stages := decodeJSON(t, rr)["workflow"].(map[string]any)["stages"].([]any); len(stages) != len(orchestrator.Stages) {
		t.Errorf("stages = %d, want %d", len(stages), len(orchestrator.Stages))
	}

	rr = doRequest(t, h, "GET", "/api/stats", "")
	if got := decodeJSON(t, rr)["completed"]; got != float64(2) {
		t.Errorf("completed = %v, want 2", got)
	}

	rr = doRequest(t, h, "DELETE", "/api/workflows/"+id, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	rr = doRequest(t, h, "GET", "/api/workflows/"+id, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("after delete, get status = %d, want %d", rr.Code, http.StatusNotFound)
	}
	rr = doRequest(t, h, "GET", "/api/workflows?limit=-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRegistries(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rr := doRequest(t, h, "GET", "/api/templates", "")
	var templates []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &templates); err != nil {
		t.Fatal(err)
	}
	if len(templates) == 0 || templates[0]["id"] != "backside" {
		t.Errorf("templates = %v", templates)
	}

	rr = doRequest(t, h, "GET", "/api/checklist", "")
	res := decodeJSON(t, rr)
	if res["version"] != "v31-checklist/1" {
		t.Errorf("version = %v", res["version"])
	}
	if checks := res["checks"].([]any); len(checks) != 8 {
		t.Errorf("checks = %d, want 8", len(checks))
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, WithCORSOrigin("https://scanforge.local"))
	h := srv.Handler()

	rr := doRequest(t, h, "OPTIONS", "/api/format", "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://scanforge.local" {
		t.Errorf("origin = %q", got)
	}
}
