package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/appctx"
	"github.com/kitchenops/checklists/internal/models"
)

const clockLayout = "15:04"

var weekdayOrder = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

var weekdayByName = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// NormalizeWeekdays validates weekday abbreviations and returns them as a
// de-duplicated, Monday-first comma separated list.
func NormalizeWeekdays(days []string) (string, error) {
	set := make(map[string]bool, len(days))
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if len(d) > 3 {
			d = d[:3]
		}
		if _, ok := weekdayByName[d]; !ok {
			return "", validationError(CodeInvalidInput, "unknown weekday "+d)
		}
		set[d] = true
	}
	out := make([]string, 0, len(set))
	for _, d := range weekdayOrder {
		if set[d] {
			out = append(out, d)
		}
	}
	return strings.Join(out, ","), nil
}

func ParseWeekdays(csv string) []time.Weekday {
	var out []time.Weekday
	for _, d := range strings.Split(csv, ",") {
		if wd, ok := weekdayByName[strings.TrimSpace(d)]; ok {
			out = append(out, wd)
		}
	}
	return out
}

// NormalizeClock validates a local HH:MM generation time.
func NormalizeClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return "", validationError(CodeInvalidInput, "invalid recurrence time "+s)
	}
	return t.Format(clockLayout), nil
}

// DueAt reports whether the template's recurrence fires at the minute of now.
func DueAt(t models.Template, now time.Time) bool {
	if !t.IsActive || t.RecurrenceTime == "" {
		return false
	}
	local := now.In(loc)
	if local.Format(clockLayout) != t.RecurrenceTime {
		return false
	}
	for _, wd := range ParseWeekdays(t.RecurrenceDays) {
		if wd == local.Weekday() {
			return true
		}
	}
	return false
}

// DueTemplates lists, across all tenants, the templates due at now.
func DueTemplates(ctx context.Context, gdb *gorm.DB, now time.Time) ([]models.Template, error) {
	var cands []models.Template
	if err := gdb.WithContext(appctx.WithoutTenantScope(ctx)).
		Where("is_active = ? AND recurrence_time = ?", true, now.In(loc).Format(clockLayout)).
		Order("tenant_id asc, id asc").
		Find(&cands).Error; err != nil {
		return nil, err
	}
	out := cands[:0]
	for _, t := range cands {
		if DueAt(t, now) {
			out = append(out, t)
		}
	}
	return out, nil
}
