package merchants

import (
	"time"

	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
)

// MerchantDTO is the API shape of a merchant.
type MerchantDTO struct {
	ID        uuid.UUID            `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Locations []string             `json:"locations"`
	Timezone  string               `json:"timezone"`
	Status    enums.MerchantStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	DeletedAt *time.Time           `json:"deleted_at"`
	DeletedBy *string              `json:"deleted_by"`
}

// ListResult is the paginated merchant listing.
type ListResult struct {
	Merchants []MerchantDTO `json:"merchants"`
	Limit     int           `json:"limit"`
	Offset    int           `json:"offset"`
}

// DeleteResult reports what the delete cascade touched.
type DeleteResult struct {
	Deleted               bool      `json:"deleted"`
	ID                    uuid.UUID `json:"id"`
	OrphanedUsers         int64     `json:"orphaned_users"`
	PausedOffers          int64     `json:"paused_offers"`
	ExpiredTokens         int64     `json:"expired_tokens"`
	CancelledPendingRoles int64     `json:"cancelled_pending_roles"`
}

// CreateMerchantInput carries the fields accepted on creation.
type CreateMerchantInput struct {
	Name      string
	Email     string
	Locations []string
	Timezone  *string
}

// UpdateMerchantInput carries a partial update. Nil fields are left untouched.
type UpdateMerchantInput struct {
	Name      *string
	Email     *string
	Locations *[]string
	Timezone  *string
}

// FromModel maps the persisted merchant into a DTO.
func FromModel(m *models.Merchant) *MerchantDTO {
	if m == nil {
		return nil
	}
	locations := make([]string, len(m.Locations))
	copy(locations, m.Locations)
	return &MerchantDTO{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Locations: locations,
		Timezone:  m.Timezone,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		DeletedAt: m.DeletedAt,
		DeletedBy: m.DeletedBy,
	}
}
