package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/pkg/auth"
	"github.com/boostlocal/boost-api/pkg/db"
	"github.com/boostlocal/boost-api/pkg/db/models"
	"github.com/boostlocal/boost-api/pkg/enums"
	pkgerrors "github.com/boostlocal/boost-api/pkg/errors"
	"github.com/boostlocal/boost-api/pkg/logger"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

const (
	msgRoleClaimed        = "Role claimed successfully"
	msgRoleAlreadyClaimed = "Role already claimed"
	msgNoPendingRole      = "No pending role found for your email"
	msgInvitationExpired  = "Invitation expired"
	defaultInviteTTL      = 7 * 24 * time.Hour
)

type userRepository interface {
	FindByUID(ctx context.Context, uid string) (*models.User, error)
	FindByUIDWithTx(tx *gorm.DB, uid string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailWithTx(tx *gorm.DB, email string) (*models.User, error)
	SaveWithTx(tx *gorm.DB, user *models.User) error
	List(ctx context.Context, filter ListFilter) ([]models.User, error)
	ClearPrimaryWithTx(tx *gorm.DB, keep string) error
}

type pendingRepository interface {
	Create(ctx context.Context, pending *models.PendingRole) error
	FindOpen(ctx context.Context, email string, now time.Time) (*models.PendingRole, error)
	HasUnclaimed(ctx context.Context, email string) (bool, error)
	LockOpenWithTx(tx *gorm.DB, id uuid.UUID) (*models.PendingRole, error)
	MarkClaimedWithTx(tx *gorm.DB, id uuid.UUID, uid string, at time.Time) error
	ListOpen(ctx context.Context, merchantID *uuid.UUID, now time.Time) ([]models.PendingRole, error)
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type merchantLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Merchant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TokenMinter issues a refreshed identity token after a role change.
type TokenMinter func(payload auth.IdentityPayload) (string, error)

// Service is the role/claim authority.
type Service interface {
	Resolve(ctx context.Context, identity Identity) (Binding, error)
	ClaimRole(ctx context.Context, identity Identity) (*ClaimResult, error)
	Invite(ctx context.Context, actor access.Actor, input InviteInput) (*InviteResult, error)
	List(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, page pagination.Params) (*ListResult, error)
	Delete(ctx context.Context, actor access.Actor, uid string) (*DeleteResult, error)
	BootstrapOwner(ctx context.Context, identity Identity) (*UserDTO, error)
	PurgeExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error)
}

// ServiceParams wires the users service.
type ServiceParams struct {
	Users     userRepository
	Pending   pendingRepository
	Merchants merchantLookup
	DB        txRunner
	Bindings  *BindingCache
	Mint      TokenMinter
	Logger    *logger.Logger
	InviteTTL time.Duration
	Now       func() time.Time
}

type service struct {
	users     userRepository
	pending   pendingRepository
	merchants merchantLookup
	db        txRunner
	bindings  *BindingCache
	mint      TokenMinter
	logg      *logger.Logger
	inviteTTL time.Duration
	now       func() time.Time
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Pending == nil {
		return nil, fmt.Errorf("pending roles repository required")
	}
	if params.Merchants == nil {
		return nil, fmt.Errorf("merchant lookup required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	svc := &service{
		users:     params.Users,
		pending:   params.Pending,
		merchants: params.Merchants,
		db:        params.DB,
		bindings:  params.Bindings,
		mint:      params.Mint,
		logg:      params.Logger,
		inviteTTL: params.InviteTTL,
		now:       params.Now,
	}
	if svc.inviteTTL <= 0 {
		svc.inviteTTL = defaultInviteTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Resolve returns the stored binding of identity. Unknown subjects resolve to
// a binding without a role.
func (s *service) Resolve(ctx context.Context, identity Identity) (Binding, error) {
	if identity.UID == "" {
		return Binding{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing subject")
	}
	if cached, ok := s.bindings.Get(ctx, identity.UID); ok {
		return *cached, nil
	}
	user, err := s.users.FindByUID(ctx, identity.UID)
	var binding Binding
	switch {
	case err == nil:
		binding = BindingFromModel(user)
	case errors.Is(err, gorm.ErrRecordNotFound):
		binding = Binding{UID: identity.UID, Email: normalizeEmail(identity.Email)}
	default:
		return Binding{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load role binding")
	}
	s.bindings.Put(ctx, binding)
	return binding, nil
}

// ClaimRole binds the caller to the newest open invitation for their email.
// Calling it again after a successful claim returns the same role unchanged.
func (s *service) ClaimRole(ctx context.Context, identity Identity) (*ClaimResult, error) {
	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "User email not found")
	}
	if identity.UID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing subject")
	}

	if existing, err := s.users.FindByUID(ctx, identity.UID); err == nil {
		if existing.Status == enums.UserStatusActive && existing.Role != nil {
			return s.claimed(ctx, existing, msgRoleAlreadyClaimed)
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	now := s.now().UTC()
	pending, err := s.pending.FindOpen(ctx, email, now)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending role")
		}
		expired, err := s.pending.HasUnclaimed(ctx, email)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending role")
		}
		if expired {
			return &ClaimResult{Success: false, Message: msgInvitationExpired}, nil
		}
		return &ClaimResult{Success: false, Message: msgNoPendingRole}, nil
	}

	var user *models.User
	alreadyClaimed := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.pending.LockOpenWithTx(tx, pending.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				alreadyClaimed = true
				return nil
			}
			return err
		}

		if other, err := s.users.FindByEmailWithTx(tx, email); err == nil && other.UID != identity.UID {
			return pkgerrors.New(pkgerrors.CodeConflict, "Email is bound to another account")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user, err = s.users.FindByUIDWithTx(tx, identity.UID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = &models.User{UID: identity.UID, CreatedAt: now, CreatedBy: &locked.CreatedBy}
		case err != nil:
			return err
		}
		role := locked.Role
		user.Email = email
		user.Role = &role
		user.MerchantID = locked.MerchantID
		user.Status = enums.UserStatusActive
		if role != enums.UserRoleOwner {
			user.IsPrimary = false
		}
		if err := s.users.SaveWithTx(tx, user); err != nil {
			return err
		}
		return s.pending.MarkClaimedWithTx(tx, locked.ID, identity.UID, now)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "Email is bound to another account")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim role")
	}
	if alreadyClaimed {
		existing, err := s.users.FindByUID(ctx, identity.UID)
		if err != nil || existing.Status != enums.UserStatusActive || existing.Role == nil {
			return &ClaimResult{Success: false, Message: msgNoPendingRole}, nil
		}
		return s.claimed(ctx, existing, msgRoleAlreadyClaimed)
	}

	s.bindings.Invalidate(ctx, identity.UID)
	logCtx := s.logg.WithUserID(ctx, identity.UID)
	logCtx = s.logg.WithActorRole(logCtx, user.Role.String())
	s.logg.Info(logCtx, "role claimed")
	return s.claimed(ctx, user, msgRoleClaimed)
}

func (s *service) claimed(ctx context.Context, user *models.User, message string) (*ClaimResult, error) {
	result := &ClaimResult{
		Success:    true,
		Message:    message,
		Role:       user.Role,
		MerchantID: user.MerchantID,
	}
	if s.mint == nil {
		return result, nil
	}
	payload := auth.IdentityPayload{
		UID:       user.UID,
		Email:     user.Email,
		Role:      user.Role,
		IsPrimary: user.IsPrimary,
	}
	if user.MerchantID != nil {
		id := user.MerchantID.String()
		payload.MerchantID = &id
	}
	token, err := s.mint(payload)
	if err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.UID), "mint identity token", err)
		return result, nil
	}
	result.Token = token
	return result, nil
}

// Invite binds an email to a role. Existing users change role immediately;
// unknown emails get an invitation that expires after the invite TTL.
func (s *service) Invite(ctx context.Context, actor access.Actor, input InviteInput) (*InviteResult, error) {
	if err := access.RequireOwner(actor); err != nil {
		return nil, err
	}
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	merchantID := input.MerchantID
	if input.Role.RequiresMerchant() {
		if merchantID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant_id is required for merchant_admin and staff roles")
		}
		merchant, err := s.merchants.FindByID(ctx, *merchantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Merchant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merchant")
		}
		if merchant.Status == enums.MerchantStatusDeleted {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Cannot assign users to deleted merchant")
		}
	} else {
		merchantID = nil
	}

	now := s.now().UTC()
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return s.applyRole(ctx, actor, existing, input.Role, merchantID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	if _, err := s.pending.FindOpen(ctx, email, now); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "An invitation is already pending for this email")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending role")
	}

	pending := &models.PendingRole{
		ID:         uuid.New(),
		Email:      email,
		Role:       input.Role,
		MerchantID: merchantID,
		CreatedBy:  actor.UID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.inviteTTL),
	}
	if err := s.pending.Create(ctx, pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pending role")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"pending_id": pending.ID.String(),
		"role":       input.Role.String(),
	}), "invitation created")
	return &InviteResult{Email: email, Status: InviteStatusPending, PendingID: &pending.ID}, nil
}

func (s *service) applyRole(ctx context.Context, actor access.Actor, user *models.User, role enums.UserRole, merchantID *uuid.UUID) (*InviteResult, error) {
	if user.IsPrimary && role != enums.UserRoleOwner {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Cannot change the primary owner's role")
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.users.FindByUIDWithTx(tx, user.UID)
		if err != nil {
			return err
		}
		r := role
		current.Role = &r
		current.MerchantID = merchantID
		current.Status = enums.UserStatusActive
		return s.users.SaveWithTx(tx, current)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply role")
	}
	s.bindings.Invalidate(ctx, user.UID)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"target_uid": user.UID,
		"role":       role.String(),
		"actor_uid":  actor.UID,
	}), "role applied")
	uid := user.UID
	return &InviteResult{Email: user.Email, Status: InviteStatusClaimed, UserID: &uid}, nil
}

func (s *service) List(ctx context.Context, actor access.Actor, merchantID *uuid.UUID, page pagination.Params) (*ListResult, error) {
	var scope *uuid.UUID
	switch {
	case actor.IsOwner():
		scope = merchantID
	case actor.Role != nil && *actor.Role == enums.UserRoleMerchantAdmin && actor.MerchantID != nil:
		if merchantID != nil && *merchantID != *actor.MerchantID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Access denied")
		}
		own := *actor.MerchantID
		scope = &own
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Access denied")
	}

	rows, err := s.users.List(ctx, ListFilter{MerchantID: scope, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	pending, err := s.pending.ListOpen(ctx, scope, s.now().UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending roles")
	}

	out := &ListResult{
		Users:   make([]UserDTO, 0, len(rows)),
		Pending: make([]PendingRoleDTO, 0, len(pending)),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	for i := range rows {
		out.Users = append(out.Users, *FromModel(&rows[i]))
	}
	for i := range pending {
		out.Pending = append(out.Pending, *PendingFromModel(&pending[i]))
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, actor access.Actor, uid string) (*DeleteResult, error) {
	if err := access.RequireAnyRole(actor); err != nil {
		return nil, err
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		target, err := s.users.FindByUIDWithTx(tx, uid)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
			}
			return err
		}
		if target.Status == enums.UserStatusDeleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "User not found")
		}
		if !access.CanDeleteUser(actor, *target) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Cannot delete this user")
		}
		target.Status = enums.UserStatusDeleted
		target.Role = nil
		target.MerchantID = nil
		return s.users.SaveWithTx(tx, target)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user")
	}
	s.bindings.Invalidate(ctx, uid)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"target_uid": uid,
		"actor_uid":  actor.UID,
	}), "user deleted")
	return &DeleteResult{Deleted: true, UID: uid}, nil
}

// BootstrapOwner makes identity the primary owner and clears the flag from
// anyone else.
func (s *service) BootstrapOwner(ctx context.Context, identity Identity) (*UserDTO, error) {
	email := normalizeEmail(identity.Email)
	if identity.UID == "" || email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "uid and email are required")
	}
	now := s.now().UTC()
	var user *models.User
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if other, err := s.users.FindByEmailWithTx(tx, email); err == nil && other.UID != identity.UID {
			return pkgerrors.New(pkgerrors.CodeConflict, "Email is bound to another account")
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		var err error
		user, err = s.users.FindByUIDWithTx(tx, identity.UID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = &models.User{UID: identity.UID, CreatedAt: now}
		case err != nil:
			return err
		}
		owner := enums.UserRoleOwner
		user.Email = email
		user.Role = &owner
		user.MerchantID = nil
		user.IsPrimary = true
		user.Status = enums.UserStatusActive
		if err := s.users.SaveWithTx(tx, user); err != nil {
			return err
		}
		return s.users.ClearPrimaryWithTx(tx, identity.UID)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bootstrap owner")
	}
	s.bindings.Invalidate(ctx, identity.UID)
	s.logg.Info(s.logg.WithUserID(ctx, identity.UID), "primary owner bootstrapped")
	return FromModel(user), nil
}

// PurgeExpiredInvites deletes unclaimed invitations that expired before cutoff.
func (s *service) PurgeExpiredInvites(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.pending.PurgeExpired(ctx, cutoff.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "purge expired invitations")
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
