package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// PendingRole is an invitation waiting for the invitee's first login.
type PendingRole struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Email      string         `gorm:"column:email;not null"`
	Role       enums.UserRole `gorm:"column:role;type:user_role;not null"`
	MerchantID *uuid.UUID     `gorm:"column:merchant_id;type:uuid"`
	CreatedBy  string         `gorm:"column:created_by;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
	ExpiresAt  time.Time      `gorm:"column:expires_at;not null"`
	Claimed    bool           `gorm:"column:claimed;not null;default:false"`
	ClaimedAt  *time.Time     `gorm:"column:claimed_at"`
	ClaimedBy  *string        `gorm:"column:claimed_by"`
}

func (PendingRole) TableName() string { return "pending_roles" }
