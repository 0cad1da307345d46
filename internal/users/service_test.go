package users_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/users"
	"github.com/boostlocal/boost-api/pkg/auth"
	"github.com/boostlocal/boost-api/pkg/db/dbtest"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type harness struct {
	svc  users.Service
	conn *gorm.DB
}

func newHarness(t *testing.T) harness {
	t.Helper()
	client, conn := dbtest.Client(t)
	svc, err := users.NewService(users.ServiceParams{
		Users:     users.NewRepository(conn),
		Pending:   users.NewPendingRepository(conn),
		Merchants: merchants.NewRepository(conn),
		DB:        client,
		Mint: func(p auth.IdentityPayload) (string, error) {
			return "token-for-" + p.UID, nil
		},
		Logger: logger.New(logger.Options{Output: io.Discard}),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return harness{svc: svc, conn: conn}
}

func ownerActor() access.Actor {
	role := enums.UserRoleOwner
	return access.Actor{UID: "owner-1", Email: "owner@boost.test", Role: &role, IsPrimary: true}
}

func seedMerchant(t *testing.T, conn *gorm.DB, status enums.MerchantStatus) uuid.UUID {
	t.Helper()
	m := models.Merchant{
		ID:        uuid.New(),
		Name:      "Corner Cafe",
		Email:     "cafe@example.com",
		Locations: pq.StringArray{"Main St"},
		Timezone:  "UTC",
		Status:    status,
	}
	require.NoError(t, conn.Create(&m).Error)
	return m.ID
}

func seedUser(t *testing.T, conn *gorm.DB, uid, email string, role enums.UserRole, merchantID *uuid.UUID) {
	t.Helper()
	r := role
	require.NoError(t, conn.Create(&models.User{
		UID:        uid,
		Email:      email,
		Role:       &r,
		MerchantID: merchantID,
		Status:     enums.UserStatusActive,
		CreatedAt:  fixedNow.Add(-time.Hour),
	}).Error)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := users.NewService(users.ServiceParams{})
	require.Error(t, err)
}

func TestInviteThenClaimIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	merchantID := seedMerchant(t, h.conn, enums.MerchantStatusActive)

	invite, err := h.svc.Invite(ctx, ownerActor(), users.InviteInput{
		Email:      " Staff@Example.com ",
		Role:       enums.UserRoleStaff,
		MerchantID: &merchantID,
	})
	require.NoError(t, err)
	assert.Equal(t, users.InviteStatusPending, invite.Status)
	assert.Equal(t, "staff@example.com", invite.Email)
	require.NotNil(t, invite.PendingID)

	identity := users.Identity{UID: "staff-uid", Email: "staff@example.com"}
	first, err := h.svc.ClaimRole(ctx, identity)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, "Role claimed successfully", first.Message)
	require.NotNil(t, first.Role)
	assert.Equal(t, enums.UserRoleStaff, *first.Role)
	assert.Equal(t, merchantID, *first.MerchantID)
	assert.Equal(t, "token-for-staff-uid", first.Token)

	second, err := h.svc.ClaimRole(ctx, identity)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, "Role already claimed", second.Message)
	assert.Equal(t, *first.Role, *second.Role)
	assert.Equal(t, *first.MerchantID, *second.MerchantID)

	var count int64
	require.NoError(t, h.conn.Model(&models.User{}).Where("email = ?", "staff@example.com").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var pending models.PendingRole
	require.NoError(t, h.conn.First(&pending, "id = ?", *invite.PendingID).Error)
	assert.True(t, pending.Claimed)
	require.NotNil(t, pending.ClaimedBy)
	assert.Equal(t, "staff-uid", *pending.ClaimedBy)

	binding, err := h.svc.Resolve(ctx, identity)
	require.NoError(t, err)
	require.NotNil(t, binding.Role)
	assert.Equal(t, enums.UserRoleStaff, *binding.Role)
}

func TestClaimRoleWithoutInvitation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	res, err := h.svc.ClaimRole(ctx, users.Identity{UID: "u1", Email: "nobody@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No pending role found for your email", res.Message)

	_, err = h.svc.ClaimRole(ctx, users.Identity{UID: "u1"})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestClaimRoleExpiredInvitation(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Create(&models.PendingRole{
		ID:        uuid.New(),
		Email:     "late@example.com",
		Role:      enums.UserRoleOwner,
		CreatedBy: "owner-1",
		CreatedAt: fixedNow.Add(-10 * 24 * time.Hour),
		ExpiresAt: fixedNow.Add(-3 * 24 * time.Hour),
	}).Error)

	res, err := h.svc.ClaimRole(context.Background(), users.Identity{UID: "late", Email: "late@example.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Invitation expired", res.Message)
}

func TestInviteRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	deleted := seedMerchant(t, h.conn, enums.MerchantStatusDeleted)
	active := seedMerchant(t, h.conn, enums.MerchantStatusActive)

	_, err := h.svc.Invite(ctx, ownerActor(), users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = h.svc.Invite(ctx, ownerActor(), users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff, MerchantID: &deleted})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	missing := uuid.New()
	_, err = h.svc.Invite(ctx, ownerActor(), users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff, MerchantID: &missing})
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	admin := access.Actor{UID: "admin", Role: roleRef(enums.UserRoleMerchantAdmin), MerchantID: &active}
	_, err = h.svc.Invite(ctx, admin, users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff, MerchantID: &active})
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = h.svc.Invite(ctx, ownerActor(), users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff, MerchantID: &active})
	require.NoError(t, err)
	_, err = h.svc.Invite(ctx, ownerActor(), users.InviteInput{Email: "a@example.com", Role: enums.UserRoleStaff, MerchantID: &active})
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestInviteExistingUserAppliesImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	merchantID := seedMerchant(t, h.conn, enums.MerchantStatusActive)
	seedUser(t, h.conn, "staff-1", "staff@example.com", enums.UserRoleStaff, &merchantID)

	res, err := h.svc.Invite(ctx, ownerActor(), users.InviteInput{
		Email:      "staff@example.com",
		Role:       enums.UserRoleMerchantAdmin,
		MerchantID: &merchantID,
	})
	require.NoError(t, err)
	assert.Equal(t, users.InviteStatusClaimed, res.Status)
	require.NotNil(t, res.UserID)
	assert.Equal(t, "staff-1", *res.UserID)

	var stored models.User
	require.NoError(t, h.conn.First(&stored, "uid = ?", "staff-1").Error)
	assert.Equal(t, enums.UserRoleMerchantAdmin, *stored.Role)
}

func TestDeleteRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m1 := seedMerchant(t, h.conn, enums.MerchantStatusActive)
	m2 := seedMerchant(t, h.conn, enums.MerchantStatusActive)
	seedUser(t, h.conn, "staff-m1", "s1@example.com", enums.UserRoleStaff, &m1)
	seedUser(t, h.conn, "staff-m2", "s2@example.com", enums.UserRoleStaff, &m2)
	owner := enums.UserRoleOwner
	require.NoError(t, h.conn.Create(&models.User{
		UID: "owner-1", Email: "owner@boost.test", Role: &owner, IsPrimary: true,
		Status: enums.UserStatusActive, CreatedAt: fixedNow,
	}).Error)

	admin := access.Actor{UID: "admin-m1", Role: roleRef(enums.UserRoleMerchantAdmin), MerchantID: &m1}

	_, err := h.svc.Delete(ctx, admin, "staff-m2")
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = h.svc.Delete(ctx, ownerActor(), "owner-1")
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	_, err = h.svc.Delete(ctx, ownerActor(), "ghost")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))

	res, err := h.svc.Delete(ctx, admin, "staff-m1")
	require.NoError(t, err)
	assert.True(t, res.Deleted)

	binding, err := h.svc.Resolve(ctx, users.Identity{UID: "staff-m1"})
	require.NoError(t, err)
	assert.Nil(t, binding.Role)

	_, err = h.svc.Delete(ctx, ownerActor(), "staff-m1")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListScopes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	m1 := seedMerchant(t, h.conn, enums.MerchantStatusActive)
	m2 := seedMerchant(t, h.conn, enums.MerchantStatusActive)
	seedUser(t, h.conn, "s1", "s1@example.com", enums.UserRoleStaff, &m1)
	seedUser(t, h.conn, "s2", "s2@example.com", enums.UserRoleStaff, &m2)

	page := pagination.Standard.Normalize(pagination.Params{})
	all, err := h.svc.List(ctx, ownerActor(), nil, page)
	require.NoError(t, err)
	assert.Len(t, all.Users, 2)

	admin := access.Actor{UID: "a1", Role: roleRef(enums.UserRoleMerchantAdmin), MerchantID: &m1}
	scoped, err := h.svc.List(ctx, admin, nil, page)
	require.NoError(t, err)
	require.Len(t, scoped.Users, 1)
	assert.Equal(t, "s1", scoped.Users[0].UID)

	_, err = h.svc.List(ctx, admin, &m2, page)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))

	staff := access.Actor{UID: "s1", Role: roleRef(enums.UserRoleStaff), MerchantID: &m1}
	_, err = h.svc.List(ctx, staff, nil, page)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
}

func TestBootstrapOwnerMovesPrimaryFlag(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.BootstrapOwner(ctx, users.Identity{UID: "first", Email: "first@boost.test"})
	require.NoError(t, err)
	dto, err := h.svc.BootstrapOwner(ctx, users.Identity{UID: "second", Email: "Second@boost.test"})
	require.NoError(t, err)
	assert.True(t, dto.IsPrimary)
	assert.Equal(t, "second@boost.test", dto.Email)

	var first models.User
	require.NoError(t, h.conn.First(&first, "uid = ?", "first").Error)
	assert.False(t, first.IsPrimary)
	assert.Equal(t, enums.UserRoleOwner, *first.Role)
}

func TestPurgeExpiredInvites(t *testing.T) {
	h := newHarness(t)
	for i, expires := range []time.Time{fixedNow.Add(-40 * 24 * time.Hour), fixedNow.Add(24 * time.Hour)} {
		require.NoError(t, h.conn.Create(&models.PendingRole{
			ID:        uuid.New(),
			Email:     []string{"old@example.com", "new@example.com"}[i],
			Role:      enums.UserRoleOwner,
			CreatedBy: "owner-1",
			CreatedAt: expires.Add(-7 * 24 * time.Hour),
			ExpiresAt: expires,
		}).Error)
	}

	n, err := h.svc.PurgeExpiredInvites(context.Background(), fixedNow.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func roleRef(r enums.UserRole) *enums.UserRole { return &r }
