package services

import (
	"testing"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
)

func TestCloneTemplate_CopiesTreeAndConnections(t *testing.T) {
	gdb := openDB(t)
	tpl, err := CreateTemplate(bg, gdb, admin, TemplateInput{Name: "Prep", Workplace: "Kitchen", TimeSlot: "morning"})
	if err != nil {
		t.Fatal(err)
	}
	prep := mustItem(t, gdb, admin, tpl.ID, ItemInput{Content: "Prep"})
	mustItem(t, gdb, admin, tpl.ID, ItemInput{Content: "Wash hands", ParentID: &prep.ID, IsRequired: true})
	stations := mustItem(t, gdb, admin, tpl.ID, ItemInput{Content: "Stations", ParentID: &prep.ID})
	mustItem(t, gdb, admin, tpl.ID, ItemInput{Content: "Grill on", ParentID: &stations.ID})
	safety := mustItem(t, gdb, admin, tpl.ID, ItemInput{Content: "Safety"})
	manual := models.Manual{TenantID: "demo", Title: "Fire drill"}
	gdb.Create(&manual)
	mustConnection(t, gdb, admin, safety.ID, models.ItemTypeManual, manual.ID)

	res, err := CloneTemplate(bg, gdb, admin, tpl.ID, "Prep (copy)", CloneOptions{IncludeItems: true, IncludeConnections: true})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if res.ItemCount != 2 {
		t.Errorf("want 2 root items, got %d", res.ItemCount)
	}
	if res.Template.ID == tpl.ID || res.Template.Name != "Prep (copy)" {
		t.Fatalf("unexpected clone %+v", res.Template)
	}
	if res.Template.Workplace != "Kitchen" || res.Template.TimeSlot != "morning" || !res.Template.IsActive {
		t.Errorf("metadata not copied: %+v", res.Template)
	}

	var items []models.ChecklistItem
	gdb.Preload("Connections").Where("template_id = ?", res.Template.ID).Find(&items)
	if len(items) != 5 {
		t.Fatalf("want 5 cloned items, got %d", len(items))
	}
	byContent := map[string]models.ChecklistItem{}
	for _, it := range items {
		byContent[it.Content] = it
	}
	grill, st := byContent["Grill on"], byContent["Stations"]
	if grill.ParentID == nil || *grill.ParentID != st.ID {
		t.Errorf("grandchild must point at the cloned parent %d, got %v", st.ID, grill.ParentID)
	}
	if st.ParentID == nil || *st.ParentID != byContent["Prep"].ID {
		t.Errorf("child must point at the cloned root")
	}
	if !byContent["Wash hands"].IsRequired {
		t.Error("required flag not copied")
	}
	conns := byContent["Safety"].Connections
	if len(conns) != 1 || conns[0].ItemID != manual.ID || conns[0].ItemType != models.ItemTypeManual {
		t.Errorf("connection not copied to the same external record: %+v", conns)
	}

	// Source untouched.
	if n := countRows(t, gdb.Where("template_id = ?", tpl.ID), &models.ChecklistItem{}); n != 5 {
		t.Errorf("source items changed: %d", n)
	}

	// The clone materializes like any template.
	gen, err := GenerateInstances(bg, gdb, admin, []uint{res.Template.ID}, "2025-01-10")
	if err != nil {
		t.Fatalf("generate from clone: %v", err)
	}
	if gen.Created[0].ItemCount != 5 {
		t.Errorf("want 5 progress rows, got %d", gen.Created[0].ItemCount)
	}
}

func TestCloneTemplate_WithoutItems(t *testing.T) {
	gdb := openDB(t)
	f := seedOpenChecklist(t, gdb, admin)

	res, err := CloneTemplate(bg, gdb, admin, f.tpl.ID, "Empty copy", CloneOptions{})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if res.ItemCount != 0 {
		t.Errorf("want 0 items, got %d", res.ItemCount)
	}
	if n := countRows(t, gdb.Where("template_id = ?", res.Template.ID), &models.ChecklistItem{}); n != 0 {
		t.Errorf("want no items, got %d", n)
	}
}

func TestCloneTemplate_WithoutConnections(t *testing.T) {
	gdb := openDB(t)
	f := seedOpenChecklist(t, gdb, admin)

	res, err := CloneTemplate(bg, gdb, admin, f.tpl.ID, "No links", CloneOptions{IncludeItems: true})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if res.ItemCount != 3 {
		t.Errorf("want 3 items, got %d", res.ItemCount)
	}
	var ids []uint
	gdb.Model(&models.ChecklistItem{}).Where("template_id = ?", res.Template.ID).Pluck("id", &ids)
	if n := countRows(t, gdb.Where("checklist_item_id IN ?", ids), &models.ItemConnection{}); n != 0 {
		t.Errorf("want no connections, got %d", n)
	}
}

func TestCloneTemplate_DuplicateName(t *testing.T) {
	gdb := openDB(t)
	f := seedOpenChecklist(t, gdb, admin)

	_, err := CloneTemplate(bg, gdb, admin, f.tpl.ID, "Open Checklist", CloneOptions{IncludeItems: true})
	e := wantKind(t, err, KindConflict, CodeDuplicateName)
	if len(e.Conflicts) != 1 || e.Conflicts[0] != "Open Checklist" {
		t.Errorf("conflict should name the template, got %v", e.Conflicts)
	}
	if n := countRows(t, gdb, &models.Template{}); n != 1 {
		t.Errorf("nothing should be created, got %d templates", n)
	}
}

func TestCloneTemplate_SourceNotFound(t *testing.T) {
	gdb := openDB(t)
	f := seedOpenChecklist(t, gdb, admin)

	_, err := CloneTemplate(bg, gdb, admin, 9999, "Copy", CloneOptions{})
	wantKind(t, err, KindNotFound, CodeSourceNotFound)

	// Another tenant cannot see the source.
	other := appctx.Principal{TenantID: "other", UserID: 9}
	_, err = CloneTemplate(bg, gdb, other, f.tpl.ID, "Copy", CloneOptions{IncludeItems: true})
	wantKind(t, err, KindNotFound, CodeSourceNotFound)
}

func TestCloneTemplate_SameNameOtherTenant(t *testing.T) {
	gdb := openDB(t)
	seedOpenChecklist(t, gdb, admin)
	other := appctx.Principal{TenantID: "other", UserID: 9}
	src, err := CreateTemplate(bg, gdb, other, TemplateInput{Name: "Close"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := CloneTemplate(bg, gdb, other, src.ID, "Open Checklist", CloneOptions{}); err != nil {
		t.Fatalf("names are unique per tenant only: %v", err)
	}
}

func TestCloneTemplate_Validation(t *testing.T) {
	gdb := openDB(t)
	_, err := CloneTemplate(bg, gdb, admin, 1, "   ", CloneOptions{})
	wantKind(t, err, KindValidation, CodeInvalidInput)
	_, err = CloneTemplate(bg, gdb, admin, 0, "Copy", CloneOptions{})
	wantKind(t, err, KindValidation, CodeInvalidInput)
}
