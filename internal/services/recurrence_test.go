package services

import (
	"testing"
	"time"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
)

func TestNormalizeWeekdays(t *testing.T) {
	got, err := NormalizeWeekdays([]string{"Friday", " mon", "MON", ""})
	if err != nil {
		t.Fatal(err)
	}
	if got != "mon,fri" {
		t.Errorf("want mon,fri, got %q", got)
	}
	if _, err := NormalizeWeekdays([]string{"funday"}); err == nil {
		t.Error("want error for unknown weekday")
	}
}

func TestNormalizeClock(t *testing.T) {
	if got, err := NormalizeClock("05:30"); err != nil || got != "05:30" {
		t.Errorf("want 05:30, got %q %v", got, err)
	}
	if got, err := NormalizeClock(""); err != nil || got != "" {
		t.Errorf("empty clock disables recurrence, got %q %v", got, err)
	}
	if _, err := NormalizeClock("25:00"); err == nil {
		t.Error("want error for 25:00")
	}
}

func TestDueAt(t *testing.T) {
	tpl := models.Template{IsActive: true, RecurrenceDays: "mon,fri", RecurrenceTime: "05:30"}
	fri := time.Date(2025, 1, 10, 5, 30, 20, 0, Location())

	if !DueAt(tpl, fri) {
		t.Error("want due on friday 05:30")
	}
	if DueAt(tpl, fri.Add(time.Minute)) {
		t.Error("not due at 05:31")
	}
	if DueAt(tpl, fri.AddDate(0, 0, 1)) {
		t.Error("not due on saturday")
	}
	if !DueAt(tpl, fri.UTC()) {
		t.Error("due check must use the local zone")
	}
	tpl.IsActive = false
	if DueAt(tpl, fri) {
		t.Error("inactive templates never fire")
	}
}

func TestDueTemplates_AcrossTenants(t *testing.T) {
	gdb := openDB(t)
	other := appctx.Principal{TenantID: "other", UserID: 3}
	in := TemplateInput{Name: "Open", RecurrenceDays: []string{"fri"}, RecurrenceTime: "05:30"}
	if _, err := CreateTemplate(bg, gdb, admin, in); err != nil {
		t.Fatal(err)
	}
	if _, err := CreateTemplate(bg, gdb, other, in); err != nil {
		t.Fatal(err)
	}
	in.Name, in.RecurrenceDays = "Weekend", []string{"sat"}
	if _, err := CreateTemplate(bg, gdb, admin, in); err != nil {
		t.Fatal(err)
	}

	due, err := DueTemplates(appctx.WithPrincipal(bg, admin), gdb, time.Date(2025, 1, 10, 5, 30, 0, 0, Location()))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 {
		t.Fatalf("want 2 due templates across tenants, got %d", len(due))
	}
	if due[0].TenantID != "demo" || due[1].TenantID != "other" {
		t.Errorf("unexpected tenants %s, %s", due[0].TenantID, due[1].TenantID)
	}
}
