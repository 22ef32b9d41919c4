package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/events"
	"github.com/kitchenops/checklists/internal/models"
)

type ProgressInput struct {
	IsCompleted bool    `json:"isCompleted"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

// instanceState is everything the aggregator needs for one instance.
type instanceState struct {
	inst      models.Instance
	name      string
	tree      *Tree
	progress  []models.ItemProgress
	connected []models.ConnectedItemProgress
}

func (s instanceState) counts() Counts {
	return Aggregate(s.tree.Units(), s.progress, s.connected)
}

func (s instanceState) row() InstanceRow {
	c := s.counts()
	date := instanceDate(s.inst)
	return InstanceRow{
		ID:             s.inst.ID,
		TemplateID:     s.inst.TemplateID,
		TemplateName:   s.name,
		Workplace:      s.inst.Workplace,
		TimeSlot:       s.inst.TimeSlot,
		Date:           date,
		Code:           s.inst.Code,
		ItemCount:      c.Total(),
		CompletedCount: c.Completed(),
		Percentage:     c.Percentage(),
		Status:         Status(s.inst, c),
		IsCompleted:    s.inst.IsCompleted,
		CompletedAt:    s.inst.CompletedAt,
		IsSubmitted:    s.inst.IsSubmitted,
		SubmittedAt:    s.inst.SubmittedAt,
		Counts:         c,
	}
}

func (s instanceState) detail() *InstanceDetail {
	byItem := make(map[uint]models.ItemProgress, len(s.progress))
	for _, p := range s.progress {
		byItem[p.ChecklistItemID] = p
	}
	connDone := make(map[uint]bool, len(s.connected))
	for _, p := range s.connected {
		connDone[p.ConnectionID] = p.IsCompleted
	}
	return &InstanceDetail{InstanceRow: s.row(), Items: viewTree(s.tree, byItem, connDone)}
}

// loadStates batch-loads template names, trees and progress rows for insts.
func loadStates(ctx context.Context, tx *gorm.DB, tenantID string, insts []models.Instance) ([]instanceState, error) {
	if len(insts) == 0 {
		return nil, nil
	}
	instIDs := make([]uint, 0, len(insts))
	tplIDs := make([]uint, 0, len(insts))
	for _, in := range insts {
		instIDs = append(instIDs, in.ID)
		tplIDs = append(tplIDs, in.TemplateID)
	}
	tplIDs = uniqueIDs(tplIDs)

	var tpls []models.Template
	if err := tx.WithContext(ctx).Select("id", "name").
		Where("tenant_id = ? AND id IN ?", tenantID, tplIDs).
		Find(&tpls).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(tpls))
	for _, t := range tpls {
		names[t.ID] = t.Name
	}

	trees, err := loadTrees(ctx, tx, tenantID, tplIDs)
	if err != nil {
		return nil, err
	}

	var progress []models.ItemProgress
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND instance_id IN ?", tenantID, instIDs).
		Find(&progress).Error; err != nil {
		return nil, err
	}
	var connected []models.ConnectedItemProgress
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND instance_id IN ?", tenantID, instIDs).
		Find(&connected).Error; err != nil {
		return nil, err
	}
	progByInst := make(map[uint][]models.ItemProgress)
	for _, p := range progress {
		progByInst[p.InstanceID] = append(progByInst[p.InstanceID], p)
	}
	connByInst := make(map[uint][]models.ConnectedItemProgress)
	for _, p := range connected {
		connByInst[p.InstanceID] = append(connByInst[p.InstanceID], p)
	}

	out := make([]instanceState, 0, len(insts))
	for _, in := range insts {
		out = append(out, instanceState{
			inst:      in,
			name:      names[in.TemplateID],
			tree:      trees[in.TemplateID],
			progress:  progByInst[in.ID],
			connected: connByInst[in.ID],
		})
	}
	return out, nil
}

// instanceDate is the calendar day of an instance. Legacy rows without a
// date belong to the local day they were created on.
func instanceDate(in models.Instance) string {
	if in.Date != "" {
		return in.Date
	}
	return formatDate(in.CreatedAt)
}

// legacyInstances returns date-less instances created on a local day in
// [from, to]. SQLite keeps created_at as text in the offset it was written
// with, so the day is resolved here rather than in SQL.
func legacyInstances(tx *gorm.DB, tenantID string, templateIDs []uint, from, to string) ([]models.Instance, error) {
	q := tx.Where("tenant_id = ? AND date = ''", tenantID)
	if templateIDs != nil {
		q = q.Where("template_id IN ?", templateIDs)
	}
	var legacy []models.Instance
	if err := q.Find(&legacy).Error; err != nil {
		return nil, err
	}
	out := legacy[:0]
	for _, in := range legacy {
		if d := instanceDate(in); d >= from && d <= to {
			out = append(out, in)
		}
	}
	return out, nil
}

func rows(states []instanceState) []InstanceRow {
	out := make([]InstanceRow, 0, len(states))
	for _, s := range states {
		out = append(out, s.row())
	}
	return out
}

// ListInstancesForDate lists a tenant's instances for one calendar day with
// their aggregated progress.
func ListInstancesForDate(ctx context.Context, gdb *gorm.DB, p appctx.Principal, date string) ([]InstanceRow, error) {
	d, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	day := formatDate(d)

	ctx = appctx.WithPrincipal(ctx, p)
	tx := gdb.WithContext(ctx)
	var insts []models.Instance
	if err := tx.Where("tenant_id = ? AND date = ?", p.TenantID, day).
		Find(&insts).Error; err != nil {
		return nil, asEngineError(err)
	}
	legacy, err := legacyInstances(tx, p.TenantID, nil, day, day)
	if err != nil {
		return nil, asEngineError(err)
	}
	insts = append(insts, legacy...)
	sort.SliceStable(insts, func(i, j int) bool {
		if insts[i].TimeSlot != insts[j].TimeSlot {
			return insts[i].TimeSlot < insts[j].TimeSlot
		}
		return insts[i].ID < insts[j].ID
	})
	states, err := loadStates(ctx, tx, p.TenantID, insts)
	if err != nil {
		return nil, asEngineError(err)
	}
	return rows(states), nil
}

func findInstance(tx *gorm.DB, tenantID string, id uint) (*models.Instance, error) {
	var inst models.Instance
	if err := tx.Where("tenant_id = ? AND id = ?", tenantID, id).First(&inst).Error; err != nil {
		if isNotFound(err) {
			return nil, notFoundError(CodeNotFound, "instance not found", idString(id))
		}
		return nil, err
	}
	return &inst, nil
}

func loadState(ctx context.Context, tx *gorm.DB, tenantID string, id uint) (*instanceState, error) {
	inst, err := findInstance(tx, tenantID, id)
	if err != nil {
		return nil, err
	}
	states, err := loadStates(ctx, tx, tenantID, []models.Instance{*inst})
	if err != nil {
		return nil, err
	}
	return &states[0], nil
}

// GetInstance returns an instance with its nested item tree and progress.
func GetInstance(ctx context.Context, gdb *gorm.DB, p appctx.Principal, id uint) (*InstanceDetail, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	s, err := loadState(ctx, gdb.WithContext(ctx), p.TenantID, id)
	if err != nil {
		return nil, asEngineError(err)
	}
	return s.detail(), nil
}

// SetItemProgress records completion and notes of one item of an instance.
func SetItemProgress(ctx context.Context, gdb *gorm.DB, p appctx.Principal, instanceID, itemID uint, in ProgressInput) (*InstanceRow, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	var out InstanceRow
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		if s.inst.IsSubmitted {
			return conflictError(CodeInstanceSubmitted, "instance already submitted")
		}
		if _, ok := s.tree.Node(itemID); !ok {
			return notFoundError(CodeNotFound, "checklist item not found", idString(itemID))
		}

		row := models.ItemProgress{
			TenantID:        p.TenantID,
			InstanceID:      instanceID,
			ChecklistItemID: itemID,
			IsCompleted:     in.IsCompleted,
		}
		cols := []string{"is_completed", "completed_at", "completed_by", "updated_at"}
		if in.IsCompleted {
			now := time.Now()
			uid := p.UserID
			row.CompletedAt = &now
			row.CompletedBy = &uid
		}
		if in.Notes != nil {
			row.Notes = *in.Notes
			cols = append(cols, "notes")
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}, {Name: "checklist_item_id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).Create(&row).Error; err != nil {
			return err
		}

		s, err = loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		out = s.row()
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &out, nil
}

// SetConnectionProgress records completion of one connection of an
// instance, creating its progress row on first use.
func SetConnectionProgress(ctx context.Context, gdb *gorm.DB, p appctx.Principal, instanceID, connID uint, completed bool) (*InstanceRow, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	var out InstanceRow
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		if s.inst.IsSubmitted {
			return conflictError(CodeInstanceSubmitted, "instance already submitted")
		}
		if _, ok := s.tree.ConnectionOwner(connID); !ok {
			return notFoundError(CodeNotFound, "connection not found", idString(connID))
		}

		row := models.ConnectedItemProgress{
			TenantID:     p.TenantID,
			InstanceID:   instanceID,
			ConnectionID: connID,
			IsCompleted:  completed,
		}
		if completed {
			now := time.Now()
			uid := p.UserID
			row.CompletedAt = &now
			row.CompletedBy = &uid
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "instance_id"}, {Name: "connection_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_completed", "completed_at", "completed_by", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}

		s, err = loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		out = s.row()
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &out, nil
}

// openRequired lists the content of required units that are not done: main
// items flagged required, and every connection of a required item.
func (s instanceState) openRequired() []string {
	done := make(map[uint]bool, len(s.progress))
	for _, p := range s.progress {
		if p.IsCompleted {
			done[p.ChecklistItemID] = true
		}
	}
	connDone := make(map[uint]bool, len(s.connected))
	for _, p := range s.connected {
		if p.IsCompleted {
			connDone[p.ConnectionID] = true
		}
	}
	var open []string
	s.tree.Walk(func(n *Node) {
		if !n.Item.IsRequired {
			return
		}
		if n.IsMain() && !done[n.Item.ID] {
			open = append(open, n.Item.Content)
		}
		for _, c := range n.Connections {
			if !connDone[c.ID] {
				open = append(open, n.Item.Content+" ("+c.ItemType+" #"+idString(c.ItemID)+")")
			}
		}
	})
	return open
}

// CompleteInstance marks an instance complete once every required unit is
// done. Completing an already completed instance is a no-op.
func CompleteInstance(ctx context.Context, gdb *gorm.DB, p appctx.Principal, instanceID uint) (*InstanceRow, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	var out InstanceRow
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		if s.inst.CompletedAt == nil {
			if open := s.openRequired(); len(open) > 0 {
				return conflictError(CodeIncomplete, "required items are not completed", open...)
			}
			now := time.Now()
			uid := p.UserID
			if err := tx.Model(&s.inst).Updates(map[string]any{
				"is_completed": true,
				"completed_at": now,
				"completed_by": uid,
			}).Error; err != nil {
				return err
			}
			s.inst.IsCompleted = true
			s.inst.CompletedAt = &now
			s.inst.CompletedBy = &uid
		}
		out = s.row()
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	return &out, nil
}

// SubmitInstance freezes a completed instance.
func SubmitInstance(ctx context.Context, gdb *gorm.DB, p appctx.Principal, instanceID uint) (*InstanceRow, error) {
	ctx = appctx.WithPrincipal(ctx, p)
	var out InstanceRow
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := loadState(ctx, tx, p.TenantID, instanceID)
		if err != nil {
			return err
		}
		if s.inst.IsSubmitted {
			return conflictError(CodeInstanceSubmitted, "instance already submitted")
		}
		if s.inst.CompletedAt == nil {
			return conflictError(CodeIncomplete, "instance is not completed")
		}
		now := time.Now()
		if err := tx.Model(&s.inst).Updates(map[string]any{
			"is_submitted": true,
			"submitted_at": now,
		}).Error; err != nil {
			return err
		}
		s.inst.IsSubmitted = true
		s.inst.SubmittedAt = &now
		out = s.row()
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}
	if events.OnInstanceSubmitted != nil {
		events.OnInstanceSubmitted(p.TenantID, out.ID)
	}
	return &out, nil
}

// InstanceIDByCode resolves a share code from a QR link.
func InstanceIDByCode(ctx context.Context, gdb *gorm.DB, p appctx.Principal, code string) (uint, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, validationError(CodeInvalidInput, "code is required")
	}
	ctx = appctx.WithPrincipal(ctx, p)
	var inst models.Instance
	if err := gdb.WithContext(ctx).Select("id").
		Where("tenant_id = ? AND code = ?", p.TenantID, code).
		First(&inst).Error; err != nil {
		if isNotFound(err) {
			return 0, notFoundError(CodeNotFound, "instance not found", code)
		}
		return 0, asEngineError(err)
	}
	return inst.ID, nil
}
