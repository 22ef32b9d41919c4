package models

import "time"

// Template is a reusable checklist definition owned by a tenant.
type Template struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID string `gorm:"size:64;not null;uniqueIndex:idx_template_tenant_name,priority:1"`
	Name     string `gorm:"size:255;not null;uniqueIndex:idx_template_tenant_name,priority:2"` // unique per tenant

	Workplace string `gorm:"size:100"`
	Category  string `gorm:"size:100"`
	TimeSlot  string `gorm:"size:50"`
	IsActive  bool   `gorm:"not null;index"`

	// Recurrence: comma separated weekdays ("mon,wed,fri") and a local HH:MM.
	RecurrenceDays string `gorm:"size:64"`
	RecurrenceTime string `gorm:"size:5;index"`

	CreatedBy uint

	Items []ChecklistItem `gorm:"foreignKey:TemplateID;constraint:OnDelete:CASCADE"`
}

// ChecklistItem is one node of a template's item tree. Root items have
// ParentID == nil.
type ChecklistItem struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID   string `gorm:"size:64;not null;index"`
	TemplateID uint   `gorm:"not null;index"`
	ParentID   *uint  `gorm:"index"`

	Content      string `gorm:"not null"`
	Instructions string
	SortOrder    int `gorm:"not null;default:0"`
	IsRequired   bool
	IsActive     bool `gorm:"not null"`

	Children    []ChecklistItem  `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE"`
	Connections []ItemConnection `gorm:"foreignKey:ChecklistItemID;constraint:OnDelete:CASCADE"`
}

const (
	ItemTypeInventory  = "inventory"
	ItemTypePrecaution = "precaution"
	ItemTypeManual     = "manual"
)

// ItemConnection links a checklist item to an external record of the same
// tenant. ItemID points into the table selected by ItemType.
type ItemConnection struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID        string `gorm:"size:64;not null;index"`
	ChecklistItemID uint   `gorm:"not null;index"`
	ItemType        string `gorm:"size:20;not null"` // inventory | precaution | manual
	ItemID          uint   `gorm:"not null"`
	SortOrder       int    `gorm:"not null;default:0"`
}

func ValidItemType(s string) bool {
	switch s {
	case ItemTypeInventory, ItemTypePrecaution, ItemTypeManual:
		return true
	}
	return false
}
