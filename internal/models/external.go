package models

import "time"

// External records a checklist item can be connected to. Their CRUD lives
// outside this service; only the columns needed for tenant-checked joins and
// dashboard counts are mapped here.

type InventoryItem struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID          string `gorm:"size:64;not null;index"`
	Name              string `gorm:"not null"`
	Quantity          float64
	LowStockThreshold float64
}

type Precaution struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID string `gorm:"size:64;not null;index"`
	Title    string `gorm:"not null"`
}

type Manual struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time

	TenantID string `gorm:"size:64;not null;index"`
	Title    string `gorm:"not null"`
}
