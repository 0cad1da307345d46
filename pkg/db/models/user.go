package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/enums"
)

// User binds an identity-provider subject to a platform role.
type User struct {
	UID        string           `gorm:"column:uid;primaryKey"`
	Email      string           `gorm:"column:email;not null;uniqueIndex"`
	Role       *enums.UserRole  `gorm:"column:role;type:user_role"`
	MerchantID *uuid.UUID       `gorm:"column:merchant_id;type:uuid"`
	IsPrimary  bool             `gorm:"column:is_primary;not null;default:false"`
	Status     enums.UserStatus `gorm:"column:status;type:user_status;not null;default:'active'"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	CreatedBy  *string          `gorm:"column:created_by"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
