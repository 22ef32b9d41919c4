package models

import "time"

// Instance is a dated materialization of a template. At most one exists per
// (tenant, template, date); the composite unique index is the authoritative
// guard.
type Instance struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID   string `gorm:"size:64;not null;uniqueIndex:idx_instance_tenant_template_date,priority:1;index:idx_instance_tenant_date,priority:1"`
	TemplateID uint   `gorm:"not null;uniqueIndex:idx_instance_tenant_template_date,priority:2"`
	// YYYY-MM-DD in the tenant timezone.
	Date       string `gorm:"size:10;not null;uniqueIndex:idx_instance_tenant_template_date,priority:3;index:idx_instance_tenant_date,priority:2"`
	// Share code used in QR links.
	Code       string `gorm:"size:36;uniqueIndex"`

	// Copied from the template at generation time.
	Workplace string `gorm:"size:100"`
	TimeSlot  string `gorm:"size:50"`

	IsCompleted bool
	CompletedAt *time.Time
	CompletedBy *uint
	IsSubmitted bool
	SubmittedAt *time.Time
	CreatedBy   uint

	Progress          []ItemProgress          `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE"`
	ConnectedProgress []ConnectedItemProgress `gorm:"foreignKey:InstanceID;constraint:OnDelete:CASCADE"`
}

// ItemProgress tracks one checklist item within an instance.
type ItemProgress struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID        string `gorm:"size:64;not null;index"`
	InstanceID      uint   `gorm:"not null;uniqueIndex:idx_progress_instance_item,priority:1"`
	ChecklistItemID uint   `gorm:"not null;uniqueIndex:idx_progress_instance_item,priority:2"`

	IsCompleted bool
	Notes       string
	CompletedAt *time.Time
	CompletedBy *uint
}

func (ItemProgress) TableName() string { return "item_progress" }

// ConnectedItemProgress tracks one item connection within an instance.
// Rows are created on first update.
type ConnectedItemProgress struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID     string `gorm:"size:64;not null;index"`
	InstanceID   uint   `gorm:"not null;uniqueIndex:idx_conn_progress_instance_conn,priority:1"`
	ConnectionID uint   `gorm:"not null;uniqueIndex:idx_conn_progress_instance_conn,priority:2"`

	IsCompleted bool
	CompletedAt *time.Time
	CompletedBy *uint
}

func (ConnectedItemProgress) TableName() string { return "connected_item_progress" }

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)
