package controllers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/boostlocal/boost-api/api/middleware"
	"github.com/boostlocal/boost-api/internal/access"
	"github.com/boostlocal/boost-api/internal/ledger"
	"github.com/boostlocal/boost-api/internal/merchants"
	"github.com/boostlocal/boost-api/internal/offers"
	"github.com/boostlocal/boost-api/internal/redemptions"
	"github.com/boostlocal/boost-api/internal/tokens"
	"github.com/boostlocal/boost-api/internal/users"
	"github.com/boostlocal/boost-api/pkg/enums"
	"github.com/boostlocal/boost-api/pkg/pagination"
)

func withActor(req *http.Request, actor access.Actor) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), actor.UID, actor.Email)
	return req.WithContext(middleware.WithActor(ctx, actor))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func ownerActor() access.Actor {
	role := enums.UserRoleOwner
	return access.Actor{UID: "owner-1", Email: "owner@example.com", Role: &role, IsPrimary: true}
}

func adminActor(merchantID uuid.UUID) access.Actor {
	role := enums.UserRoleMerchantAdmin
	return access.Actor{UID: "admin-1", Email: "admin@example.com", Role: &role, MerchantID: &merchantID}
}

type stubRedemptionService struct {
	result     *redemptions.RedeemResult
	list       *redemptions.ListResult
	err        error
	gotInput   redemptions.RedeemInput
	gotFilter  redemptions.ListFilter
	gotActorID string
}

func (s *stubRedemptionService) Redeem(_ context.Context, actor access.Actor, input redemptions.RedeemInput) (*redemptions.RedeemResult, error) {
	s.gotInput = input
	s.gotActorID = actor.UID
	return s.result, s.err
}

func (s *stubRedemptionService) List(_ context.Context, _ access.Actor, filter redemptions.ListFilter) (*redemptions.ListResult, error) {
	s.gotFilter = filter
	return s.list, s.err
}

type stubOfferService struct {
	offer      *offers.OfferDTO
	list       *offers.ListResult
	deleted    *offers.DeleteResult
	err        error
	gotCreate  offers.CreateOfferInput
	gotUpdate  offers.UpdateOfferInput
	gotPage    pagination.Params
	gotScope   *uuid.UUID
	gotOfferID uuid.UUID
}

func (s *stubOfferService) Create(_ context.Context, _ access.Actor, input offers.CreateOfferInput) (*offers.OfferDTO, error) {
	s.gotCreate = input
	return s.offer, s.err
}

func (s *stubOfferService) List(_ context.Context, _ access.Actor, merchantID *uuid.UUID, page pagination.Params) (*offers.ListResult, error) {
	s.gotScope = merchantID
	s.gotPage = page
	return s.list, s.err
}

func (s *stubOfferService) Get(_ context.Context, _ access.Actor, id uuid.UUID) (*offers.OfferDTO, error) {
	s.gotOfferID = id
	return s.offer, s.err
}

func (s *stubOfferService) Update(_ context.Context, _ access.Actor, id uuid.UUID, input offers.UpdateOfferInput) (*offers.OfferDTO, error) {
	s.gotOfferID = id
	s.gotUpdate = input
	return s.offer, s.err
}

func (s *stubOfferService) Delete(_ context.Context, _ access.Actor, id uuid.UUID) (*offers.DeleteResult, error) {
	s.gotOfferID = id
	return s.deleted, s.err
}

func (s *stubOfferService) ExpireEnded(context.Context, time.Time) (int, error) {
	return 0, s.err
}

type stubTokenService struct {
	generated *tokens.GenerateResult
	list      *tokens.ListResult
	png       []byte
	public    *tokens.PublicOfferDTO
	err       error
	gotInput  tokens.GenerateInput
	gotList   tokens.ListInput
	gotRef    string
	singleUse bool
}

func (s *stubTokenService) EnsureUniversal(_ context.Context, _ access.Actor, _ uuid.UUID, input tokens.GenerateInput) (*tokens.GenerateResult, error) {
	s.gotInput = input
	return s.generated, s.err
}

func (s *stubTokenService) IssueSingleUse(_ context.Context, _ access.Actor, _ uuid.UUID, input tokens.GenerateInput) (*tokens.GenerateResult, error) {
	s.gotInput = input
	s.singleUse = true
	return s.generated, s.err
}

func (s *stubTokenService) List(_ context.Context, _ access.Actor, _ uuid.UUID, input tokens.ListInput) (*tokens.ListResult, error) {
	s.gotList = input
	return s.list, s.err
}

func (s *stubTokenService) QRCode(context.Context, access.Actor, uuid.UUID) ([]byte, error) {
	return s.png, s.err
}

func (s *stubTokenService) PublicOffer(_ context.Context, raw string) (*tokens.PublicOfferDTO, error) {
	s.gotRef = raw
	return s.public, s.err
}

func (s *stubTokenService) ExpireDue(context.Context, time.Time) (int64, error) {
	return 0, s.err
}

type stubLedgerService struct {
	summary     *ledger.SummaryDTO
	csv         string
	err         error
	gotRange    ledger.Range
	gotScope    *uuid.UUID
	gotExportID uuid.UUID
}

func (s *stubLedgerService) Summary(_ context.Context, _ access.Actor, merchantID *uuid.UUID, window ledger.Range) (*ledger.SummaryDTO, error) {
	s.gotScope = merchantID
	s.gotRange = window
	return s.summary, s.err
}

func (s *stubLedgerService) Export(_ context.Context, _ access.Actor, merchantID uuid.UUID, w io.Writer) error {
	s.gotExportID = merchantID
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, s.csv)
	return err
}

func (s *stubLedgerService) Reconcile(context.Context, uuid.UUID, ledger.Range) (*ledger.Reconciliation, error) {
	return nil, s.err
}

type stubUserService struct {
	claim       *users.ClaimResult
	invite      *users.InviteResult
	list        *users.ListResult
	deleted     *users.DeleteResult
	err         error
	gotIdentity users.Identity
	gotInvite   users.InviteInput
	gotUID      string
}

func (s *stubUserService) Resolve(_ context.Context, identity users.Identity) (users.Binding, error) {
	return users.Binding{UID: identity.UID}, s.err
}

func (s *stubUserService) ClaimRole(_ context.Context, identity users.Identity) (*users.ClaimResult, error) {
	s.gotIdentity = identity
	return s.claim, s.err
}

func (s *stubUserService) Invite(_ context.Context, _ access.Actor, input users.InviteInput) (*users.InviteResult, error) {
	s.gotInvite = input
	return s.invite, s.err
}

func (s *stubUserService) List(context.Context, access.Actor, *uuid.UUID, pagination.Params) (*users.ListResult, error) {
	return s.list, s.err
}

func (s *stubUserService) Delete(_ context.Context, _ access.Actor, uid string) (*users.DeleteResult, error) {
	s.gotUID = uid
	return s.deleted, s.err
}

func (s *stubUserService) BootstrapOwner(context.Context, users.Identity) (*users.UserDTO, error) {
	return nil, s.err
}

func (s *stubUserService) PurgeExpiredInvites(context.Context, time.Time) (int64, error) {
	return 0, s.err
}

type stubMerchantService struct {
	merchant  *merchants.MerchantDTO
	list      *merchants.ListResult
	deleted   *merchants.DeleteResult
	err       error
	gotCreate merchants.CreateMerchantInput
	gotUpdate merchants.UpdateMerchantInput
	gotID     uuid.UUID
}

func (s *stubMerchantService) Create(_ context.Context, _ access.Actor, input merchants.CreateMerchantInput) (*merchants.MerchantDTO, error) {
	s.gotCreate = input
	return s.merchant, s.err
}

func (s *stubMerchantService) List(context.Context, access.Actor, pagination.Params) (*merchants.ListResult, error) {
	return s.list, s.err
}

func (s *stubMerchantService) Get(_ context.Context, _ access.Actor, id uuid.UUID) (*merchants.MerchantDTO, error) {
	s.gotID = id
	return s.merchant, s.err
}

func (s *stubMerchantService) Update(_ context.Context, _ access.Actor, id uuid.UUID, input merchants.UpdateMerchantInput) (*merchants.MerchantDTO, error) {
	s.gotID = id
	s.gotUpdate = input
	return s.merchant, s.err
}

func (s *stubMerchantService) Delete(_ context.Context, _ access.Actor, id uuid.UUID) (*merchants.DeleteResult, error) {
	s.gotID = id
	return s.deleted, s.err
}

func (s *stubMerchantService) Restore(_ context.Context, _ access.Actor, id uuid.UUID) (*merchants.MerchantDTO, error) {
	s.gotID = id
	return s.merchant, s.err
}
