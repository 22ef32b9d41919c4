package services

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/config"
	"github.com/kitchenops/checklists/internal/events"
	"github.com/kitchenops/checklists/internal/models"
)

type InstanceSummary struct {
	InstanceID   uint   `json:"instanceId"`
	TemplateID   uint   `json:"templateId"`
	TemplateName string `json:"templateName"`
	Workplace    string `json:"workplace"`
	TimeSlot     string `json:"timeSlot"`
	ItemCount    int    `json:"itemCount"`
	Code         string `json:"code"`
}

type GenerateResult struct {
	Created []InstanceSummary `json:"created"`
	Date    string            `json:"date"`
}

// GenerateInstances creates one instance per template for date, with one
// progress row per active item. It is all-or-nothing: if any template
// already has an instance that day, nothing is created.
func GenerateInstances(ctx context.Context, gdb *gorm.DB, p appctx.Principal, templateIDs []uint, date string) (*GenerateResult, error) {
	ids := uniqueIDs(templateIDs)
	if len(ids) == 0 {
		return nil, validationError(CodeInvalidInput, "templateIds are required")
	}
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	ctx = appctx.WithPrincipal(ctx, p)

	res := GenerateResult{Date: formatDate(d)}
	run := func(tx *gorm.DB) error {
		res.Created = nil
		return generateTx(tx, p, ids, res.Date, &res)
	}
	err = gdb.WithContext(ctx).Transaction(run)
	if isBusy(err) {
		// Another writer held the store past the busy timeout. Its commit is
		// visible now, so a second attempt resolves to success or conflict.
		err = gdb.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		err = asEngineError(err)
		if KindOf(err) == KindPersistence {
			config.LogError("services", "GenerateInstances", "generation transaction", map[string]any{
				"tenant": p.TenantID, "templateIds": ids, "date": res.Date,
			}, err)
		}
		return nil, err
	}
	if events.OnInstancesGenerated != nil {
		ids := make([]uint, 0, len(res.Created))
		for _, c := range res.Created {
			ids = append(ids, c.InstanceID)
		}
		events.OnInstancesGenerated(p.TenantID, res.Date, ids)
	}
	return &res, nil
}

func generateTx(tx *gorm.DB, p appctx.Principal, ids []uint, day string, res *GenerateResult) error {
	var tpls []models.Template
	if err := tx.Where("tenant_id = ? AND id IN ? AND is_active = ?", p.TenantID, ids, true).
		Find(&tpls).Error; err != nil {
		return err
	}
	byID := make(map[uint]models.Template, len(tpls))
	for _, t := range tpls {
		byID[t.ID] = t
	}
	if len(byID) < len(ids) {
		var missing []string
		for _, id := range ids {
			if _, ok := byID[id]; !ok {
				missing = append(missing, strconv.FormatUint(uint64(id), 10))
			}
		}
		return notFoundError(CodeTemplatesNotFound, "templates not found or inactive", missing...)
	}

	if conflicts, err := existingInstanceTemplates(tx, p.TenantID, ids, day); err != nil {
		return err
	} else if len(conflicts) > 0 {
		var names []string
		for _, id := range ids {
			if conflicts[id] {
				names = append(names, byID[id].Name)
			}
		}
		return conflictError(CodeDuplicateInstance, "an instance already exists for "+day, names...)
	}

	trees, err := loadTrees(tx.Statement.Context, tx, p.TenantID, ids)
	if err != nil {
		return err
	}

	for _, id := range ids {
		tpl := byID[id]
		inst := models.Instance{
			TenantID:   p.TenantID,
			TemplateID: tpl.ID,
			Date:       day,
			Code:       uuid.NewString(),
			Workplace:  tpl.Workplace,
			TimeSlot:   tpl.TimeSlot,
			CreatedBy:  p.UserID,
		}
		if err := tx.Create(&inst).Error; err != nil {
			if isDuplicate(err) {
				// lost a race against a concurrent generation
				return conflictError(CodeDuplicateInstance, "an instance already exists for "+day, tpl.Name)
			}
			return err
		}

		var rows []models.ItemProgress
		trees[id].Walk(func(n *Node) {
			rows = append(rows, models.ItemProgress{
				TenantID:        p.TenantID,
				InstanceID:      inst.ID,
				ChecklistItemID: n.Item.ID,
			})
		})
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
				return err
			}
		}

		res.Created = append(res.Created, InstanceSummary{
			InstanceID:   inst.ID,
			TemplateID:   tpl.ID,
			TemplateName: tpl.Name,
			Workplace:    tpl.Workplace,
			TimeSlot:     tpl.TimeSlot,
			ItemCount:    len(rows),
			Code:         inst.Code,
		})
	}
	return nil
}

// existingInstanceTemplates returns the templates that already have an
// instance on day. Legacy rows without a date are matched on created_at.
func existingInstanceTemplates(tx *gorm.DB, tenantID string, ids []uint, day string) (map[uint]bool, error) {
	var found []uint
	if err := tx.Model(&models.Instance{}).
		Where("tenant_id = ? AND template_id IN ? AND date = ?", tenantID, ids, day).
		Distinct().
		Pluck("template_id", &found).Error; err != nil {
		return nil, err
	}
	legacy, err := legacyInstances(tx, tenantID, ids, day, day)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]bool, len(found)+len(legacy))
	for _, id := range found {
		out[id] = true
	}
	for _, in := range legacy {
		out[in.TemplateID] = true
	}
	return out, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
