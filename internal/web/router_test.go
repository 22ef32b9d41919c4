package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/db/dbtest"
)

func do(t *testing.T, h http.Handler, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Tenant-ID", "demo")
	req.Header.Set("X-User-ID", "1")
	if admin {
		req.Header.Set("X-User-Admin", "true")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthz(t *testing.T) {
	r := Router(dbtest.Open(t), config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouterGuards(t *testing.T) {
	r := Router(dbtest.Open(t), config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no tenant: expected 401, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodPost, "/admin/templates", map[string]any{"name": "Open"}, false)
	if rec.Code != http.StatusForbidden {
		t.Errorf("staff on admin route: expected 403, got %d", rec.Code)
	}
}

// TestRouterOpenChecklistFlow drives authoring, generation and progress
// through the HTTP surface.
func TestRouterOpenChecklistFlow(t *testing.T) {
	r := Router(dbtest.Open(t), config.Config{PublicBaseURL: "https://checklists.example"})

	rec := do(t, r, http.MethodPost, "/admin/templates", map[string]any{"name": "Open Checklist", "timeSlot": "morning"}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create template: %d %s", rec.Code, rec.Body)
	}
	var tpl struct{ ID uint }
	_ = json.NewDecoder(rec.Body).Decode(&tpl)

	for _, content := range []string{"Unlock doors", "Lights on"} {
		rec = do(t, r, http.MethodPost, "/admin/templates/"+itoa(tpl.ID)+"/items", map[string]any{"content": content}, true)
		if rec.Code != http.StatusCreated {
			t.Fatalf("add item: %d %s", rec.Code, rec.Body)
		}
	}

	body := map[string]any{"templateIds": []uint{tpl.ID}, "date": "2025-01-10"}
	rec = do(t, r, http.MethodPost, "/admin/instances", body, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body)
	}
	var gen struct {
		Created []struct {
			InstanceID uint `json:"instanceId"`
			ItemCount  int  `json:"itemCount"`
		} `json:"created"`
		Date string `json:"date"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&gen)
	if len(gen.Created) != 1 || gen.Created[0].ItemCount != 2 || gen.Date != "2025-01-10" {
		t.Fatalf("unexpected generate body %+v", gen)
	}

	rec = do(t, r, http.MethodPost, "/admin/instances", body, true)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second generate: expected 409, got %d", rec.Code)
	}
	var conflict struct {
		Error     string   `json:"error"`
		Conflicts []string `json:"conflicts"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&conflict)
	if conflict.Error != "duplicate_instance" || len(conflict.Conflicts) != 1 || conflict.Conflicts[0] != "Open Checklist" {
		t.Errorf("unexpected conflict body %+v", conflict)
	}

	id := itoa(gen.Created[0].InstanceID)
	rec = do(t, r, http.MethodGet, "/instances?date=2025-01-10", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/instances/"+id+"/qr.png", nil, false)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("qr: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = do(t, r, http.MethodGet, "/admin/submissions.csv?from=2025-01-01&to=2025-01-31", nil, true)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "text/csv" {
		t.Errorf("csv export: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }
