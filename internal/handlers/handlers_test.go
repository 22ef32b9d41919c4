package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/db/dbtest"
	"github.com/kitchenops/checklists/internal/models"
	"github.com/kitchenops/checklists/internal/services"
)

var admin = appctx.Principal{TenantID: "demo", UserID: 1, IsAdmin: true}

func serve(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(appctx.WithPrincipal(req.Context(), admin))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	if err := json.NewDecoder(rec.Body).Decode(&b); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return b
}

// seedInstance creates a one-item template and its instance for 2025-01-10.
func seedInstance(t *testing.T) (*gorm.DB, uint) {
	t.Helper()
	gdb := dbtest.Open(t)
	ctx := context.Background()
	tpl, err := services.CreateTemplate(ctx, gdb, admin, services.TemplateInput{Name: "Open Checklist"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := services.AddItem(ctx, gdb, admin, tpl.ID, services.ItemInput{Content: "Unlock doors"}); err != nil {
		t.Fatal(err)
	}
	res, err := services.GenerateInstances(ctx, gdb, admin, []uint{tpl.ID}, "2025-01-10")
	if err != nil {
		t.Fatal(err)
	}
	return gdb, res.Created[0].InstanceID
}

func TestRequirePrincipal(t *testing.T) {
	var got appctx.Principal
	h := RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = principal(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(headerTenant, " demo ")
	req.Header.Set(headerUser, "42")
	req.Header.Set(headerAdmin, "1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != (appctx.Principal{TenantID: "demo", UserID: 42, IsAdmin: true}) {
		t.Errorf("unexpected principal %+v", got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing tenant: want 401, got %d", rec.Code)
	}
	if b := decodeBody(t, rec); b.Error != "unauthorized" || b.Message == "" {
		t.Errorf("unexpected body %+v", b)
	}
}

func TestWriteError_StatusMapping(t *testing.T) {
	gdb := dbtest.Open(t)
	h := CreateInstances(gdb)

	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{`, http.StatusBadRequest, "bad_json"},
		{`{"date":"2025-01-10"}`, http.StatusBadRequest, services.CodeInvalidInput},
		{`{"templateIds":[1],"date":"2025-02-30"}`, http.StatusBadRequest, services.CodeInvalidDate},
		{`{"templateIds":[77],"date":"2025-01-10"}`, http.StatusNotFound, services.CodeTemplatesNotFound},
	}
	for _, tc := range cases {
		rec := serve(t, h, http.MethodPost, "/admin/instances", tc.body)
		if rec.Code != tc.status {
			t.Errorf("%s: want %d, got %d", tc.body, tc.status, rec.Code)
			continue
		}
		if b := decodeBody(t, rec); b.Error != tc.code {
			t.Errorf("%s: want code %s, got %s", tc.body, tc.code, b.Error)
		}
	}
}

func TestDecode_ValidationUsesJSONNames(t *testing.T) {
	h := CloneTemplate(dbtest.Open(t))
	r := chi.NewRouter()
	r.Post("/admin/templates/{id}/clone", h)

	rec := serve(t, r, http.MethodPost, "/admin/templates/1/clone", `{"includeItems":true}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", rec.Code)
	}
	b := decodeBody(t, rec)
	if len(b.Conflicts) != 1 || b.Conflicts[0] != "name required" {
		t.Errorf("unexpected validation detail %v", b.Conflicts)
	}

	rec = serve(t, r, http.MethodPost, "/admin/templates/abc/clone", `{"name":"x"}`)
	if rec.Code != http.StatusBadRequest || decodeBody(t, rec).Error != "bad_id" {
		t.Errorf("non-numeric id: got %d", rec.Code)
	}
}

func TestProgressHandlers(t *testing.T) {
	gdb, id := seedInstance(t)
	var item models.ItemProgress
	gdb.Where("instance_id = ?", id).First(&item)

	r := chi.NewRouter()
	r.Post("/instances/{id}/items/{itemID}", SetItemProgress(gdb))
	r.Post("/instances/{id}/complete", CompleteInstance(gdb))
	r.Get("/instances/{id}", GetInstance(gdb))

	path := "/instances/" + strconv.Itoa(int(id))
	rec := serve(t, r, http.MethodPost, path+"/items/"+strconv.Itoa(int(item.ChecklistItemID)), `{"isCompleted":true,"notes":"ok"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress: %d %s", rec.Code, rec.Body)
	}
	var row services.InstanceRow
	_ = json.NewDecoder(rec.Body).Decode(&row)
	if row.Percentage != 100 || row.Status != models.StatusInProgress {
		t.Errorf("want 100%% in_progress, got %d%% %s", row.Percentage, row.Status)
	}

	if rec = serve(t, r, http.MethodPost, path+"/complete", ""); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body)
	}
	rec = serve(t, r, http.MethodGet, path, "")
	var d services.InstanceDetail
	_ = json.NewDecoder(rec.Body).Decode(&d)
	if d.Status != models.StatusCompleted || len(d.Items) != 1 || d.Items[0].Notes != "ok" {
		t.Errorf("unexpected detail %+v", d)
	}

	if rec = serve(t, r, http.MethodGet, "/instances/999", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown instance: want 404, got %d", rec.Code)
	}
}

func TestSubmissionsXLSX(t *testing.T) {
	gdb, _ := seedInstance(t)
	rec := serve(t, SubmissionsXLSX(gdb), http.MethodGet, "/admin/submissions.xlsx?from=2025-01-01&to=2025-01-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("xlsx: %d %s", rec.Code, rec.Body)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Submissions")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0][0] != "Date" || rows[1][1] != "Open Checklist" || rows[1][4] != models.StatusPending {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestSubmissionsCSV(t *testing.T) {
	gdb, _ := seedInstance(t)
	rec := serve(t, SubmissionsCSV(gdb), http.MethodGet, "/admin/submissions.csv?from=2025-01-01&to=2025-01-31", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("csv: %d", rec.Code)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "2025-01-10,Open Checklist,") {
		t.Errorf("unexpected csv:\n%s", rec.Body)
	}

	rec = serve(t, SubmissionsCSV(gdb), http.MethodGet, "/admin/submissions.csv?status=archived", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status: want 400, got %d", rec.Code)
	}
}

func TestInstanceQRAndCode(t *testing.T) {
	gdb, id := seedInstance(t)
	r := chi.NewRouter()
	r.Get("/instances/{id}/qr.png", InstanceQR(gdb, "https://checklists.example/"))
	r.Get("/i/{code}", OpenInstanceByCode(gdb))

	rec := serve(t, r, http.MethodGet, "/instances/"+strconv.Itoa(int(id))+"/qr.png", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || rec.Body.Len() == 0 {
		t.Fatalf("qr: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}

	var inst models.Instance
	gdb.First(&inst, id)
	rec = serve(t, r, http.MethodGet, "/i/"+inst.Code, "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/instances/"+strconv.Itoa(int(id)) {
		t.Errorf("code redirect: %d %s", rec.Code, rec.Header().Get("Location"))
	}
	if rec = serve(t, r, http.MethodGet, "/i/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown code: want 404, got %d", rec.Code)
	}
}
