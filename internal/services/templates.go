package services

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
)

type TemplateInput struct {
	Name           string   `json:"name" validate:"required,max=255"`
	Workplace      string   `json:"workplace" validate:"max=100"`
	Category       string   `json:"category" validate:"max=100"`
	TimeSlot       string   `json:"timeSlot" validate:"max=50"`
	IsActive       *bool    `json:"isActive"`
	RecurrenceDays []string `json:"recurrenceDays" validate:"max=7"`
	RecurrenceTime string   `json:"recurrenceTime"`
}

type ItemInput struct {
	ParentID     *uint  `json:"parentId"`
	Content      string `json:"content" validate:"required"`
	Instructions string `json:"instructions"`
	SortOrder    *int   `json:"sortOrder"`
	IsRequired   bool   `json:"isRequired"`
	IsActive     *bool  `json:"isActive"`
}

type ConnectionInput struct {
	ItemType  string `json:"itemType" validate:"required,oneof=inventory precaution manual"`
	ItemID    uint   `json:"itemId" validate:"required"`
	SortOrder *int   `json:"sortOrder"`
}

type TemplateTree struct {
	Template models.Template `json:"template"`
	Items    []ItemView      `json:"items"`
	Counts   Counts          `json:"counts"`
}

func CreateTemplate(ctx context.Context, gdb *gorm.DB, p appctx.Principal, in TemplateInput) (*models.Template, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, validationError(CodeInvalidInput, "name is required")
	}
	days, err := NormalizeWeekdays(in.RecurrenceDays)
	if err != nil {
		return nil, err
	}
	clock, err := NormalizeClock(in.RecurrenceTime)
	if err != nil {
		return nil, err
	}
	tpl := models.Template{
		TenantID:       p.TenantID,
		Name:           name,
		Workplace:      strings.TrimSpace(in.Workplace),
		Category:       strings.TrimSpace(in.Category),
		TimeSlot:       strings.TrimSpace(in.TimeSlot),
		IsActive:       in.IsActive == nil || *in.IsActive,
		RecurrenceDays: days,
		RecurrenceTime: clock,
		CreatedBy:      p.UserID,
	}

	ctx = appctx.WithPrincipal(ctx, p)
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Template{}).Where("tenant_id = ? AND name = ?", p.TenantID, name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return conflictError(CodeDuplicateName, "template name already exists", name)
		}
		if err := tx.Create(&tpl).Error; err != nil {
			if isDuplicate(err) {
				return conflictError(CodeDuplicateName, "template name already exists", name)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &tpl, nil
}

func findTemplate(tx *gorm.DB, tenantID string, id uint) (*models.Template, error) {
	var tpl models.Template
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&tpl).Error; err != nil {
		if isNotFound(err) {
			return nil, notFoundError(CodeNotFound, "template not found", idString(id))
		}
		return nil, err
	}
	return &tpl, nil
}

func findItem(tx *gorm.DB, tenantID string, id uint) (*models.ChecklistItem, error) {
	var it models.ChecklistItem
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&it).Error; err != nil {
		if isNotFound(err) {
			return nil, notFoundError(CodeNotFound, "checklist item not found", idString(id))
		}
		return nil, err
	}
	return &it, nil
}

// AddItem appends an item to a template, optionally under a parent of the
// same template.
func AddItem(ctx context.Context, gdb *gorm.DB, p appctx.Principal, templateID uint, in ItemInput) (*models.ChecklistItem, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, validationError(CodeInvalidInput, "content is required")
	}
	var it models.ChecklistItem
	ctx = appctx.WithPrincipal(ctx, p)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findTemplate(tx, p.TenantID, templateID); err != nil {
			return err
		}
		siblings := tx.Model(&models.ChecklistItem{}).Where("tenant_id = ? AND template_id = ?", p.TenantID, templateID)
		if in.ParentID != nil {
			parent, err := findItem(tx, p.TenantID, *in.ParentID)
			if err != nil {
				return err
			}
			if parent.TemplateID != templateID {
				return validationError(CodeInvalidInput, "parent item belongs to another template")
			}
			siblings = siblings.Where("parent_id = ?", parent.ID)
		} else {
			siblings = siblings.Where("parent_id IS NULL")
		}

		order := 0
		if in.SortOrder != nil {
			order = *in.SortOrder
		} else {
			var n int64
			if err := siblings.Count(&n).Error; err != nil {
				return err
			}
			order = int(n)
		}

		it = models.ChecklistItem{
			TenantID:     p.TenantID,
			TemplateID:   templateID,
			ParentID:     in.ParentID,
			Content:      content,
			Instructions: strings.TrimSpace(in.Instructions),
			SortOrder:    order,
			IsRequired:   in.IsRequired,
			IsActive:     in.IsActive == nil || *in.IsActive,
		}
		return tx.Create(&it).Error
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &it, nil
}

// AddConnection links an item to an external record of the same tenant.
func AddConnection(ctx context.Context, gdb *gorm.DB, p appctx.Principal, itemID uint, in ConnectionInput) (*models.ItemConnection, error) {
	if !models.ValidItemType(in.ItemType) || in.ItemID == 0 {
		return nil, validationError(CodeInvalidInput, "itemType must be inventory, precaution or manual and itemId is required")
	}
	var c models.ItemConnection
	ctx = appctx.WithPrincipal(ctx, p)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findItem(tx, p.TenantID, itemID); err != nil {
			return err
		}
		ok, err := externalExists(tx, p.TenantID, in.ItemType, in.ItemID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundError(CodeNotFound, in.ItemType+" record not found", idString(in.ItemID))
		}
		order := 0
		if in.SortOrder != nil {
			order = *in.SortOrder
		} else {
			var n int64
			if err := tx.Model(&models.ItemConnection{}).
				Where("tenant_id = ? AND checklist_item_id = ?", p.TenantID, itemID).
				Count(&n).Error; err != nil {
				return err
			}
			order = int(n)
		}
		c = models.ItemConnection{
			TenantID:        p.TenantID,
			ChecklistItemID: itemID,
			ItemType:        in.ItemType,
			ItemID:          in.ItemID,
			SortOrder:       order,
		}
		return tx.Create(&c).Error
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &c, nil
}

func externalExists(tx *gorm.DB, tenantID, itemType string, id uint) (bool, error) {
	var model any
	switch itemType {
	case models.ItemTypeInventory:
		model = &models.InventoryItem{}
	case models.ItemTypePrecaution:
		model = &models.Precaution{}
	case models.ItemTypeManual:
		model = &models.Manual{}
	default:
		return false, nil
	}
	var n int64
	if err := tx.Model(model).Where("tenant_id = ? AND id = ?", tenantID, id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteItem removes an item with its whole subtree and their connections.
func DeleteItem(ctx context.Context, gdb *gorm.DB, p appctx.Principal, itemID uint) error {
	ctx = appctx.WithPrincipal(ctx, p)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		it, err := findItem(tx, p.TenantID, itemID)
		if err != nil {
			return err
		}
		var all []models.ChecklistItem
		if err := tx.Select("id", "parent_id").
			Where("tenant_id = ? AND template_id = ?", p.TenantID, it.TemplateID).
			Find(&all).Error; err != nil {
			return err
		}
		return deleteItemsTx(tx, p.TenantID, subtreeIDs(all, it.ID))
	})
	return asEngineError(err)
}

// DeleteTemplate removes a template with its item tree. Instances are kept
// as history.
func DeleteTemplate(ctx context.Context, gdb *gorm.DB, p appctx.Principal, templateID uint) error {
	ctx = appctx.WithPrincipal(ctx, p)
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tpl, err := findTemplate(tx, p.TenantID, templateID)
		if err != nil {
			return err
		}
		var ids []uint
		if err := tx.Model(&models.ChecklistItem{}).
			Where("tenant_id = ? AND template_id = ?", p.TenantID, tpl.ID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := deleteItemsTx(tx, p.TenantID, ids); err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", p.TenantID, tpl.ID).Delete(&models.Template{}).Error
	})
	return asEngineError(err)
}

func deleteItemsTx(tx *gorm.DB, tenantID string, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("tenant_id = ? AND checklist_item_id IN ?", tenantID, ids).
		Delete(&models.ItemConnection{}).Error; err != nil {
		return err
	}
	return tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Delete(&models.ChecklistItem{}).Error
}

// subtreeIDs returns root and all of its descendants.
func subtreeIDs(items []models.ChecklistItem, root uint) []uint {
	children := make(map[uint][]uint)
	for _, it := range items {
		if it.ParentID != nil {
			children[*it.ParentID] = append(children[*it.ParentID], it.ID)
		}
	}
	out := []uint{root}
	seen := map[uint]bool{root: true}
	for i := 0; i < len(out); i++ {
		for _, ch := range children[out[i]] {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}

// GetTemplateTree returns a template with its nested active item tree.
func GetTemplateTree(ctx context.Context, gdb *gorm.DB, p appctx.Principal, templateID uint) (*TemplateTree, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	tx := gdb.WithContext(ctx)
	tpl, err := findTemplate(tx, p.TenantID, templateID)
	if err != nil {
		return nil, asEngineError(err)
	}
	trees, err := loadTrees(ctx, tx, p.TenantID, []uint{tpl.ID})
	if err != nil {
		return nil, asEngineError(err)
	}
	tree := trees[tpl.ID]
	return &TemplateTree{
		Template: *tpl,
		Items:    viewTree(tree, nil, nil),
		Counts:   Aggregate(tree.Units(), nil, nil),
	}, nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
