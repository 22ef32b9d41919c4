package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/db/dbtest"
	"github.com/kitchenops/checklists/internal/models"
)

var (
	bg    = context.Background()
	admin = appctx.Principal{TenantID: "demo", UserID: 1, IsAdmin: true}
	staff = appctx.Principal{TenantID: "demo", UserID: 2}
)

// openChecklist is the fixture used across tests: three root items, two
// plain leaves and one item with two inventory connections.
type openChecklist struct {
	tpl         *models.Template
	unlock      *models.ChecklistItem
	lights      *models.ChecklistItem
	stock       *models.ChecklistItem
	flour, eggs *models.ItemConnection
}

func seedOpenChecklist(t *testing.T, gdb *gorm.DB, p appctx.Principal) openChecklist {
	t.Helper()
	var f openChecklist
	var err error

	f.tpl, err = CreateTemplate(bg, gdb, p, TemplateInput{
		Name: "Open Checklist", Workplace: "Kitchen", Category: "Opening", TimeSlot: "morning",
		RecurrenceDays: []string{"mon", "fri"}, RecurrenceTime: "05:30",
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	f.unlock = mustItem(t, gdb, p, f.tpl.ID, ItemInput{Content: "Unlock doors", IsRequired: true})
	f.lights = mustItem(t, gdb, p, f.tpl.ID, ItemInput{Content: "Lights on"})
	f.stock = mustItem(t, gdb, p, f.tpl.ID, ItemInput{Content: "Check stock", IsRequired: true})

	flour := models.InventoryItem{TenantID: p.TenantID, Name: "Flour", Quantity: 2, LowStockThreshold: 5}
	eggs := models.InventoryItem{TenantID: p.TenantID, Name: "Eggs", Quantity: 30, LowStockThreshold: 10}
	gdb.Create(&flour)
	gdb.Create(&eggs)
	f.flour = mustConnection(t, gdb, p, f.stock.ID, models.ItemTypeInventory, flour.ID)
	f.eggs = mustConnection(t, gdb, p, f.stock.ID, models.ItemTypeInventory, eggs.ID)
	return f
}

func mustItem(t *testing.T, gdb *gorm.DB, p appctx.Principal, templateID uint, in ItemInput) *models.ChecklistItem {
	t.Helper()
	it, err := AddItem(bg, gdb, p, templateID, in)
	if err != nil {
		t.Fatalf("add item %q: %v", in.Content, err)
	}
	return it
}

func mustConnection(t *testing.T, gdb *gorm.DB, p appctx.Principal, itemID uint, itemType string, refID uint) *models.ItemConnection {
	t.Helper()
	c, err := AddConnection(bg, gdb, p, itemID, ConnectionInput{ItemType: itemType, ItemID: refID})
	if err != nil {
		t.Fatalf("add connection: %v", err)
	}
	return c
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t)
}

func countRows(t *testing.T, gdb *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func wantKind(t *testing.T, err error, kind Kind, code string) *Error {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error %q, got nil", kind, code)
	}
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if e.Kind != kind || e.Code != code {
		t.Fatalf("expected %s/%s, got %s/%s (%v)", kind, code, e.Kind, e.Code, e)
	}
	return e
}

func mustGenerate(t *testing.T, gdb *gorm.DB, templateID uint, date string) uint {
	t.Helper()
	res, err := GenerateInstances(bg, gdb, admin, []uint{templateID}, date)
	if err != nil {
		t.Fatalf("generate %s: %v", date, err)
	}
	return res.Created[0].InstanceID
}
