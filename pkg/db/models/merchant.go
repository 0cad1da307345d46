package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// Merchant is a business that publishes offers. Rows are soft-deleted through Status.
type Merchant struct {
	ID        uuid.UUID            `gorm:"type:uuid;primaryKey"`
	Name      string               `gorm:"column:name;not null"`
	Email     string               `gorm:"column:email;not null"`
	Locations pq.StringArray       `gorm:"column:locations;type:text[];not null"`
	Timezone  string               `gorm:"column:timezone;not null;default:'UTC'"`
	Status    enums.MerchantStatus `gorm:"column:status;type:merchant_status;not null;default:'active'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt *time.Time           `gorm:"column:deleted_at"`
	DeletedBy *string              `gorm:"column:deleted_by"`
}

func (Merchant) TableName() string { return "merchants" }

// Location returns the merchant timezone, falling back to fallback when unset or unknown.
func (m Merchant) Location(fallback *time.Location) *time.Location {
	if m.Timezone != "" {
		if loc, err := time.LoadLocation(m.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}
