package services

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
)

type SubmissionFilter struct {
	From   string // YYYY-MM-DD, default 30 days before To
	To     string // YYYY-MM-DD, default today
	Status string // pending | in_progress | completed | submitted, empty for all
}

// ListSubmissions lists instances in a date range, newest day first.
func ListSubmissions(ctx context.Context, gdb *gorm.DB, p appctx.Principal, f SubmissionFilter) ([]InstanceRow, error) {
	to := strings.TrimSpace(f.To)
	if to == "" {
		to = Today()
	}
	toD, err := ParseDate(to)
	if err != nil {
		return nil, err
	}
	fromD := toD.AddDate(0, 0, -30)
	if strings.TrimSpace(f.From) != "" {
		if fromD, err = ParseDate(f.From); err != nil {
			return nil, err
		}
	}
	if fromD.After(toD) {
		return nil, validationError(CodeInvalidInput, "from is after to")
	}
	status := strings.TrimSpace(f.Status)
	switch status {
	case "", models.StatusPending, models.StatusInProgress, models.StatusCompleted, "submitted":
	default:
		return nil, validationError(CodeInvalidInput, "unknown status "+status)
	}

	ctx = appctx.WithPrincipal(ctx, p)
	tx := gdb.WithContext(ctx)
	from, to := formatDate(fromD), formatDate(toD)
	var insts []models.Instance
	if err := tx.Where("tenant_id = ? AND date >= ? AND date <= ?", p.TenantID, from, to).
		Find(&insts).Error; err != nil {
		return nil, asEngineError(err)
	}
	legacy, err := legacyInstances(tx, p.TenantID, nil, from, to)
	if err != nil {
		return nil, asEngineError(err)
	}
	insts = append(insts, legacy...)
	if status == "submitted" {
		kept := insts[:0]
		for _, in := range insts {
			if in.IsSubmitted {
				kept = append(kept, in)
			}
		}
		insts = kept
	}
	sort.SliceStable(insts, func(i, j int) bool {
		di, dj := instanceDate(insts[i]), instanceDate(insts[j])
		switch {
		case di != dj:
			return di > dj
		case insts[i].TimeSlot != insts[j].TimeSlot:
			return insts[i].TimeSlot < insts[j].TimeSlot
		}
		return insts[i].ID < insts[j].ID
	})
	states, err := loadStates(ctx, tx, p.TenantID, insts)
	if err != nil {
		return nil, asEngineError(err)
	}
	all := rows(states)
	if status == "" || status == "submitted" {
		return all, nil
	}
	out := all[:0]
	for _, r := range all {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

type Dashboard struct {
	Date       string `json:"date"`
	Instances  int    `json:"instances"`
	Pending    int    `json:"pending"`
	InProgress int    `json:"inProgress"`
	Completed  int    `json:"completed"`
	Submitted  int64  `json:"submitted"`
	AvgPercent int    `json:"avgPercent"`
	LowStock   int64  `json:"lowStock"`
}

// GetDashboard summarises one day for a tenant, plus the low-stock
// inventory count.
func GetDashboard(ctx context.Context, gdb *gorm.DB, p appctx.Principal, date string) (*Dashboard, error) {
	list, err := ListInstancesForDate(ctx, gdb, p, date)
	if err != nil {
		return nil, err
	}
	d, _ := ParseDate(date)
	out := Dashboard{Date: formatDate(d), Instances: len(list)}
	sum := 0
	for _, r := range list {
		switch r.Status {
		case models.StatusPending:
			out.Pending++
		case models.StatusInProgress:
			out.InProgress++
		case models.StatusCompleted:
			out.Completed++
		}
		if r.IsSubmitted {
			out.Submitted++
		}
		sum += r.Percentage
	}
	if len(list) > 0 {
		out.AvgPercent = sum / len(list)
	}

	ctx = appctx.WithPrincipal(ctx, p)
	if err := gdb.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("tenant_id = ? AND quantity <= low_stock_threshold", p.TenantID).
		Count(&out.LowStock).Error; err != nil {
		return nil, asEngineError(err)
	}
	return &out, nil
}
