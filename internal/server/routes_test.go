package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/Ting2004/katachi/internal/snapshot"
)

func decodeView(t *testing.T, body []byte) snapshot.View {
	t.Helper()
	var v snapshot.View
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestState(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	v := decodeView(t, w.Body.Bytes())
	if len(v.Metrics) != 8 {
		t.Errorf("metrics = %d keys, want 8", len(v.Metrics))
	}
	if v.Metrics["energy"] != 50 {
		t.Errorf("energy = %v, want 50", v.Metrics["energy"])
	}
	if len(v.Tasks) != 1 || v.Tasks[0].Name != "walk" {
		t.Errorf("tasks = %+v, want seeded walk", v.Tasks)
	}
}

func TestCreateTask(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/tasks", `{"name":"water","effect":{"hydration":5},"type":"counter","label":"daily"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", w.Code, w.Body.String())
	}
	var rec snapshot.TaskRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Name != "water" || rec.Type != "counter" || rec.Count != 0 {
		t.Errorf("record = %+v", rec)
	}

	w = do(t, srv, "GET", "/api/tasks/water", "")
	if w.Code != http.StatusOK {
		t.Errorf("get after create: status = %d", w.Code)
	}
}

func TestCreateTaskErrors(t *testing.T) {
	srv := testServer(t)

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{"name":`, http.StatusBadRequest, snapshot.CodeInvalid},
		{"unknown metric", `{"name":"x","effect":{"karma":1},"type":"check"}`, http.StatusBadRequest, snapshot.CodeInvalid},
		{"bad type", `{"name":"x","effect":{},"type":"toggle"}`, http.StatusBadRequest, snapshot.CodeInvalid},
		{"duplicate", `{"name":"walk","effect":{},"type":"check"}`, http.StatusConflict, snapshot.CodeDuplicate},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodyBytes) + `","effect":{},"type":"check"}`,
			http.StatusRequestEntityTooLarge, snapshot.CodeInvalid},
	}
	for _, tc := range cases {
		w := do(t, srv, "POST", "/api/tasks", tc.body)
		if w.Code != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.status)
			continue
		}
		var body snapshot.ErrorBody
		json.Unmarshal(w.Body.Bytes(), &body)
		if body.Code != tc.code {
			t.Errorf("%s: code = %q, want %q", tc.name, body.Code, tc.code)
		}
	}
}

func TestToggleMovesMetrics(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "POST", "/api/tasks/walk/complete", "")
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status = %d; body: %s", w.Code, w.Body.String())
	}
	var rec snapshot.TaskRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if !rec.Completed {
		t.Error("completed = false after complete")
	}
	if got := decodeView(t, do(t, srv, "GET", "/api/state", "").Body.Bytes()).Metrics["energy"]; got != 60 {
		t.Errorf("energy after complete = %v, want 60", got)
	}

	do(t, srv, "POST", "/api/tasks/walk/uncomplete", "")
	if got := decodeView(t, do(t, srv, "GET", "/api/state", "").Body.Bytes()).Metrics["energy"]; got != 50 {
		t.Errorf("energy after uncomplete = %v, want 50", got)
	}

	w = do(t, srv, "POST", "/api/tasks/nope/complete", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("complete missing: status = %d, want 404", w.Code)
	}
}

func TestUpdateTask(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "PATCH", "/api/tasks/walk", `{"name":"long walk","effect":{"energy":15},"label":"social"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var rec snapshot.TaskRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec.Name != "long walk" || rec.Label != "social" || rec.Effect["energy"] != 15 {
		t.Errorf("record = %+v", rec)
	}

	if w := do(t, srv, "PATCH", "/api/tasks/long%20walk", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch: status = %d, want 400", w.Code)
	}
	if w := do(t, srv, "PATCH", "/api/tasks/long%20walk", `{"type":"sometimes"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad type: status = %d, want 400", w.Code)
	}
}

func TestUpdateTaskEmptyEffectClears(t *testing.T) {
	srv := testServer(t)

	if w := do(t, srv, "POST", "/api/tasks/walk/complete", ""); w.Code != http.StatusOK {
		t.Fatalf("complete: status = %d", w.Code)
	}
	w := do(t, srv, "PATCH", "/api/tasks/walk", `{"effect":{}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var rec snapshot.TaskRecord
	json.Unmarshal(w.Body.Bytes(), &rec)
	if len(rec.Effect) != 0 || !rec.Completed {
		t.Errorf("record = %+v, want completed with no effect", rec)
	}

	v := decodeView(t, do(t, srv, "GET", "/api/state", "").Body.Bytes())
	if v.Metrics["energy"] != 50 {
		t.Errorf("energy = %v, want 50 after the effect is cleared", v.Metrics["energy"])
	}
}

func TestDeleteTask(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/tasks/walk/complete", "")

	w := do(t, srv, "DELETE", "/api/tasks/walk", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	v := decodeView(t, do(t, srv, "GET", "/api/state", "").Body.Bytes())
	if v.Metrics["energy"] != 50 {
		t.Errorf("energy after delete = %v, want 50", v.Metrics["energy"])
	}
	if len(v.Tasks) != 0 {
		t.Errorf("tasks = %+v, want none", v.Tasks)
	}

	if w := do(t, srv, "DELETE", "/api/tasks/walk", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status = %d, want 404", w.Code)
	}
}

func TestListTasksByLabel(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/tasks", `{"name":"deep work","effect":{"focus":5},"type":"counter","label":"work"}`)

	var recs []snapshot.TaskRecord
	json.Unmarshal(do(t, srv, "GET", "/api/tasks?label=work", "").Body.Bytes(), &recs)
	if len(recs) != 1 || recs[0].Name != "deep work" {
		t.Errorf("work tasks = %+v", recs)
	}

	json.Unmarshal(do(t, srv, "GET", "/api/tasks", "").Body.Bytes(), &recs)
	if len(recs) != 2 {
		t.Errorf("all tasks = %d, want 2", len(recs))
	}
}

func TestMaintenanceRoutes(t *testing.T) {
	srv := testServer(t)
	do(t, srv, "POST", "/api/tasks/walk/complete", "")

	w := do(t, srv, "POST", "/api/reset", "")
	if w.Code != http.StatusOK {
		t.Fatalf("reset: status = %d", w.Code)
	}
	v := decodeView(t, w.Body.Bytes())
	if v.Metrics["energy"] != 50 || v.Tasks[0].Completed {
		t.Errorf("after manual reset: energy = %v, tasks = %+v", v.Metrics["energy"], v.Tasks)
	}

	for _, path := range []string{"/api/decay", "/api/save", "/api/restore-defaults"} {
		if w := do(t, srv, "POST", path, ""); w.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, w.Code)
		}
	}
}
