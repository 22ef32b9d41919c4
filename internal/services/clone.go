package services

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/models"
)

type CloneOptions struct {
	IncludeItems       bool
	IncludeConnections bool
}

type CloneResult struct {
	Template  models.Template
	ItemCount int // root-level items of the new template
}

// CloneTemplate copies a template, and optionally its item tree and
// connections, under a new name. The whole copy is one transaction.
func CloneTemplate(ctx context.Context, gdb *gorm.DB, p appctx.Principal, sourceID uint, newName string, opts CloneOptions) (*CloneResult, error) {
	name := strings.TrimSpace(newName)
	if sourceID == 0 || name == "" {
		return nil, validationError(CodeInvalidInput, "source template and new name are required")
	}
	ctx = appctx.WithPrincipal(ctx, p)

	var res CloneResult
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return cloneTemplateTx(tx, p, sourceID, name, opts, &res)
	})
	if err != nil {
		err = asEngineError(err)
		if KindOf(err) == KindPersistence {
			config.LogError("services", "CloneTemplate", "clone transaction", map[string]any{
				"tenant": p.TenantID, "source": sourceID, "name": name,
			}, err)
		}
		return nil, err
	}
	return &res, nil
}

// cloneTemplateTx does the same as CloneTemplate inside an existing TX.
func cloneTemplateTx(tx *gorm.DB, p appctx.Principal, sourceID uint, name string, opts CloneOptions, res *CloneResult) error {
	var n int64
	if err := tx.Model(&models.Template{}).
		Where("tenant_id = ? AND name = ?", p.TenantID, name).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflictError(CodeDuplicateName, "template name already exists", name)
	}

	var src models.Template
	if err := tx.Where("tenant_id = ? AND id = ?", p.TenantID, sourceID).First(&src).Error; err != nil {
		if isNotFound(err) {
			return notFoundError(CodeSourceNotFound, "source template not found", strconv.FormatUint(uint64(sourceID), 10))
		}
		return err
	}

	dst := models.Template{
		TenantID:       p.TenantID,
		Name:           name,
		Workplace:      src.Workplace,
		Category:       src.Category,
		TimeSlot:       src.TimeSlot,
		IsActive:       src.IsActive,
		RecurrenceDays: src.RecurrenceDays,
		RecurrenceTime: src.RecurrenceTime,
		CreatedBy:      p.UserID,
	}
	if err := tx.Create(&dst).Error; err != nil {
		if isDuplicate(err) {
			return conflictError(CodeDuplicateName, "template name already exists", name)
		}
		return err
	}
	res.Template = dst
	if !opts.IncludeItems {
		return nil
	}

	q := tx.Where("tenant_id = ? AND template_id = ?", p.TenantID, src.ID).Order("sort_order asc, id asc")
	if opts.IncludeConnections {
		q = q.Preload("Connections", func(c *gorm.DB) *gorm.DB {
			return c.Where("tenant_id = ?", p.TenantID).Order("sort_order asc, id asc")
		})
	}
	var items []models.ChecklistItem
	if err := q.Find(&items).Error; err != nil {
		return err
	}

	var roots []models.ChecklistItem
	children := make(map[uint][]models.ChecklistItem)
	for _, it := range items {
		if it.ParentID == nil {
			roots = append(roots, it)
		} else {
			children[*it.ParentID] = append(children[*it.ParentID], it)
		}
	}

	// old item id -> new item id, filled as each node is created so that
	// children always find their new parent.
	idMap := make(map[uint]uint, len(items))
	var clone func(it models.ChecklistItem) error
	clone = func(it models.ChecklistItem) error {
		if _, done := idMap[it.ID]; done {
			return nil
		}
		var parent *uint
		if it.ParentID != nil {
			np, ok := idMap[*it.ParentID]
			if !ok {
				return nil
			}
			parent = &np
		}
		ni := models.ChecklistItem{
			TenantID:     p.TenantID,
			TemplateID:   dst.ID,
			ParentID:     parent,
			Content:      it.Content,
			Instructions: it.Instructions,
			SortOrder:    it.SortOrder,
			IsRequired:   it.IsRequired,
			IsActive:     it.IsActive,
		}
		if err := tx.Create(&ni).Error; err != nil {
			return err
		}
		idMap[it.ID] = ni.ID

		for _, c := range sortedConnections(it.Connections) {
			nc := models.ItemConnection{
				TenantID:        p.TenantID,
				ChecklistItemID: ni.ID,
				ItemType:        c.ItemType,
				ItemID:          c.ItemID,
				SortOrder:       c.SortOrder,
			}
			if err := tx.Create(&nc).Error; err != nil {
				return err
			}
		}
		for _, ch := range sortedItems(children[it.ID]) {
			if err := clone(ch); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range sortedItems(roots) {
		if err := clone(r); err != nil {
			return err
		}
	}
	res.ItemCount = len(roots)
	return nil
}
